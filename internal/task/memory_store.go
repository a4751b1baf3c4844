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
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore 内存实现：按会话键加锁，同键并发操作串行执行
type memoryStore struct {
	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	active map[string]*Task // conversationKey -> in_progress 任务
	byID   map[string]*Task
}

// NewMemoryStore 创建内存版任务存储
func NewMemoryStore() Store {
	return &memoryStore{
		locks:  make(map[string]*sync.Mutex),
		active: make(map[string]*Task),
		byID:   make(map[string]*Task),
	}
}

func (s *memoryStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *memoryStore) GetOrCreateActive(ctx context.Context, conversationKey string, now time.Time) (*Task, error) {
	l := s.keyLock(conversationKey)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.active[conversationKey]; ok {
		return copyTask(t), nil
	}
	t := &Task{
		ID:              "task-" + uuid.New().String(),
		ConversationKey: conversationKey,
		Status:          StatusInProgress,
		StartedAt:       now,
		UpdatedAt:       now,
	}
	s.active[conversationKey] = t
	s.byID[t.ID] = t
	return copyTask(t), nil
}

func (s *memoryStore) AppendTurns(ctx context.Context, taskID string, userTurn, modelTurn Turn, now time.Time, newStatus Status) error {
	s.mu.Lock()
	t, ok := s.byID[taskID]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	l := s.keyLock(t.ConversationKey)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	t.Turns = append(t.Turns, userTurn, modelTurn)
	t.UpdatedAt = now
	if newStatus != "" {
		t.Status = newStatus
		if newStatus != StatusInProgress && s.active[t.ConversationKey] == t {
			delete(s.active, t.ConversationKey)
		}
	}
	return nil
}

func copyTask(t *Task) *Task {
	out := *t
	out.Turns = make([]Turn, len(t.Turns))
	copy(out.Turns, t.Turns)
	return &out
}
