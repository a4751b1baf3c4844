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
	"errors"
	"time"
)

var (
	// ErrStorage 存储连接或读写失败；上层据此给用户「数据库错误」
	ErrStorage = errors.New("task: storage failure")
	// ErrNotFound 指定 taskID 不存在
	ErrNotFound = errors.New("task: not found")
)

// Store 任务存储；以会话键（发送者号码）为分区，同键内操作串行化
type Store interface {
	// GetOrCreateActive 返回该会话键下 in_progress 的任务（含有序 Turns）；
	// 没有则新建一条（status=in_progress，started_at=updated_at=now，空 Turns）
	GetOrCreateActive(ctx context.Context, conversationKey string, now time.Time) (*Task, error)
	// AppendTurns 原子地追加 user 与 model 两个回合并把 updated_at 置为 now；
	// newStatus 非空时同时更新状态
	AppendTurns(ctx context.Context, taskID string, userTurn, modelTurn Turn, now time.Time, newStatus Status) error
}
