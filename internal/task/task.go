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

import "time"

// Status 任务状态
type Status string

const (
	// StatusInProgress 进行中；同一会话键最多一个
	StatusInProgress Status = "in_progress"
	// StatusCompleted 已完成；仅 complete_task 工具能触发
	StatusCompleted Status = "completed"
)

// Role 回合角色
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn 会话中的一个回合；user 回合额外携带入站消息的 id 和类型
type Turn struct {
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	MessageID   string    `json:"message_id,omitempty"`
	MessageType string    `json:"message_type,omitempty"`
}

// Task 一次多轮交互的任务；Turns 按时间有序
type Task struct {
	ID              string    `json:"id"`
	ConversationKey string    `json:"conversation_key"`
	Status          Status    `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Turns           []Turn    `json:"turns"`
}
