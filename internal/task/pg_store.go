// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	conversation_key TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	turns JSONB NOT NULL DEFAULT '[]'::jsonb
);
CREATE UNIQUE INDEX IF NOT EXISTS tasks_active_per_key
	ON tasks (conversation_key) WHERE status = 'in_progress';
`

// pgStore PostgreSQL 实现：tasks 表 + jsonb 回合列；
// 部分唯一索引保证同键最多一条 in_progress
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 创建基于 PostgreSQL 的任务存储并初始化表结构
func NewPostgresStore(ctx context.Context, dsn string) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &pgStore{pool: pool}, nil
}

// Close 关闭连接池（用于优雅退出）
func (s *pgStore) Close() {
	s.pool.Close()
}

func (s *pgStore) GetOrCreateActive(ctx context.Context, conversationKey string, now time.Time) (*Task, error) {
	// 先插入（同键已有 in_progress 时被部分唯一索引挡下），再读出当前活动行
	id := "task-" + uuid.New().String()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (id, conversation_key, status, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (conversation_key) WHERE status = 'in_progress' DO NOTHING`,
		id, conversationKey, string(StatusInProgress), now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	var t Task
	var status string
	var turnsJSON []byte
	err = s.pool.QueryRow(ctx, `
		SELECT id, conversation_key, status, started_at, updated_at, turns
		FROM tasks WHERE conversation_key = $1 AND status = $2`,
		conversationKey, string(StatusInProgress)).
		Scan(&t.ID, &t.ConversationKey, &status, &t.StartedAt, &t.UpdatedAt, &turnsJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	t.Status = Status(status)
	if len(turnsJSON) > 0 {
		if err := json.Unmarshal(turnsJSON, &t.Turns); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	return &t, nil
}

func (s *pgStore) AppendTurns(ctx context.Context, taskID string, userTurn, modelTurn Turn, now time.Time, newStatus Status) error {
	turnsJSON, err := json.Marshal([]Turn{userTurn, modelTurn})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET turns = turns || $2::jsonb,
		    updated_at = $3,
		    status = COALESCE(NULLIF($4, ''), status)
		WHERE id = $1`,
		taskID, turnsJSON, now, string(newStatus))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
