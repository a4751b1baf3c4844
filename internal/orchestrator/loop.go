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

package orchestrator

import (
	"context"
	"errors"

	"assistant-platform/internal/session"
	"assistant-platform/internal/tool/registry"
	"assistant-platform/pkg/log"
)

// defaultMaxRounds 单周期内模型往返上限
const defaultMaxRounds = 8

// ErrLoopExceeded 工具调用轮次超限，周期中止且不落库
var ErrLoopExceeded = errors.New("orchestrator: tool-calling rounds exceeded")

// Inbound 进入编排循环的用户回合：文本或内联媒体（二选一）
type Inbound struct {
	Text     string
	MIMEType string
	Data     string // base64
}

// Result 一个周期的产出
type Result struct {
	// Text 面向用户的最终回复
	Text string
	// TaskStatus 工具报告的任务状态（最后一个非空者生效）
	TaskStatus string
}

// Runner 编排循环；TracingRunner 以装饰器形式叠加链路追踪
type Runner interface {
	Run(ctx context.Context, sess *session.Session, inbound Inbound) (Result, error)
}

// Loop 工具调用编排循环。循环本身无存储、无消息副作用，
// 只在会话与工具注册表之间搬运结果。
type Loop struct {
	registry  *registry.Registry
	maxRounds int
	logger    *log.Logger
}

// NewLoop 创建编排循环；maxRounds ≤0 则取默认 8
func NewLoop(reg *registry.Registry, maxRounds int, logger *log.Logger) *Loop {
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Loop{registry: reg, maxRounds: maxRounds, logger: logger}
}

// Run 发送入站回合，处理模型要求的工具调用直到产出最终文本。
// 每轮的调用按数组顺序依次执行，每个结果单独回传给模型。
func (l *Loop) Run(ctx context.Context, sess *session.Session, inbound Inbound) (Result, error) {
	var outcome session.Outcome
	var err error
	if inbound.MIMEType != "" {
		outcome, err = sess.SendUserMedia(ctx, inbound.MIMEType, inbound.Data)
	} else {
		outcome, err = sess.SendUserTurn(ctx, inbound.Text)
	}
	if err != nil {
		return Result{}, err
	}

	var taskStatus string
	for round := 0; outcome.Pending(); round++ {
		if round >= l.maxRounds {
			if l.logger != nil {
				l.logger.Warn("tool-calling rounds exceeded", "max_rounds", l.maxRounds)
			}
			return Result{}, ErrLoopExceeded
		}
		for _, call := range outcome.Calls {
			result := l.registry.Invoke(ctx, call.Name, call.Args)
			if result.TaskStatus != "" {
				taskStatus = result.TaskStatus
			}
			if l.logger != nil {
				l.logger.Debug("tool invoked", "tool", call.Name, "success", result.Success)
			}
			outcome, err = sess.SendToolResult(ctx, call.Name, result.ToResponse())
			if err != nil {
				return Result{}, err
			}
		}
	}
	return Result{Text: outcome.Text, TaskStatus: taskStatus}, nil
}
