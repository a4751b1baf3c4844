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

package assistant

import (
	"context"
	"errors"
	"time"

	"assistant-platform/internal/messaging"
	"assistant-platform/internal/model/llm"
	"assistant-platform/internal/orchestrator"
	"assistant-platform/internal/session"
	"assistant-platform/internal/task"
	"assistant-platform/internal/tool/registry"
	apperrors "assistant-platform/pkg/errors"
	"assistant-platform/pkg/log"
	"assistant-platform/pkg/metrics"
)

// 面向用户的错误文案；技术细节只进日志
const (
	MsgUnauthorized = "⚠️ Unauthorized"
	MsgUnsupported  = "⚠️ Message type not supported"
	MsgDatabase     = "❌ Database error"
	MsgModel        = "❌ LLM call error"
	MsgMedia        = "❌ Media processing error"
	MsgUnknown      = "❌ Unknown error"
)

// Instructions 提供已渲染的系统指令（由 internal/prompt 实现）
type Instructions interface {
	Instructions(ctx context.Context, vars map[string]string) (string, error)
}

// Service 助手服务：任务、会话、编排循环与出站回复的粘合层
type Service struct {
	store    task.Store
	client   llm.Client
	registry *registry.Registry
	runner   orchestrator.Runner
	prompts  Instructions
	inbound  *messaging.Inbound
	sender   messaging.Sender
	logger   *log.Logger
	location *time.Location
	options  llm.GenerateOptions
}

// Options 服务装配参数
type Options struct {
	Store    task.Store
	Client   llm.Client
	Registry *registry.Registry
	Runner   orchestrator.Runner
	Prompts  Instructions
	Inbound  *messaging.Inbound
	Sender   messaging.Sender
	Logger   *log.Logger
	TimeZone string
	Generate llm.GenerateOptions
}

// NewService 创建助手服务；TimeZone 非法或为空时用 America/Los_Angeles
func NewService(opts Options) *Service {
	location, err := time.LoadLocation(opts.TimeZone)
	if err != nil || opts.TimeZone == "" {
		location, _ = time.LoadLocation("America/Los_Angeles")
	}
	return &Service{
		store:    opts.Store,
		client:   opts.Client,
		registry: opts.Registry,
		runner:   opts.Runner,
		prompts:  opts.Prompts,
		inbound:  opts.Inbound,
		sender:   opts.Sender,
		logger:   opts.Logger,
		location: location,
		options:  opts.Generate,
	}
}

// HandleWebhook 处理一条已回执的 webhook 载荷：归一化、跑周期、回复。
// 所有失败都转成用户文案回给发送者，不向上抛。
func (s *Service) HandleWebhook(ctx context.Context, payload messaging.WebhookPayload) {
	msg, err := s.inbound.Normalize(ctx, payload)
	if err != nil {
		status, userMsg := classify(err)
		metrics.CycleTotal.WithLabelValues(status).Inc()
		if s.logger != nil {
			s.logger.Warn("inbound rejected", "message_uuid", payload.MessageUUID, "error", err)
		}
		if payload.From != "" {
			s.reply(ctx, payload.From, userMsg)
		}
		return
	}
	s.HandleMessage(ctx, msg)
}

// HandleMessage 跑完整处理周期：取任务 → 渲染指令 → 会话 → 循环 → 回复 → 落库
func (s *Service) HandleMessage(ctx context.Context, msg *messaging.InboundMessage) {
	start := time.Now()
	status := s.handle(ctx, msg)
	metrics.CycleTotal.WithLabelValues(status).Inc()
	metrics.CycleDuration.WithLabelValues(cycleOutcome(status)).Observe(time.Since(start).Seconds())
}

func (s *Service) handle(ctx context.Context, msg *messaging.InboundMessage) string {
	now := time.Now()

	activeTask, err := s.store.GetOrCreateActive(ctx, msg.From, now)
	if err != nil {
		s.fail(ctx, msg.From, err)
		return "storage"
	}

	instructions, err := s.prompts.Instructions(ctx, map[string]string{
		"today": now.In(s.location).Format("Monday, January 2, 2006"),
		"time":  now.In(s.location).Format("3:04 PM"),
	})
	if err != nil {
		s.fail(ctx, msg.From, err)
		return "unknown"
	}

	sess, err := session.New(s.client, instructions, historyContents(activeTask.Turns), s.registry.Declarations(), s.options)
	if err != nil {
		s.fail(ctx, msg.From, err)
		return "unknown"
	}

	inbound := orchestrator.Inbound{Text: msg.Text}
	if msg.Type != "text" {
		inbound = orchestrator.Inbound{MIMEType: msg.MIMEType, Data: msg.Data}
	}
	result, err := s.runner.Run(ctx, sess, inbound)
	if err != nil {
		s.fail(ctx, msg.From, err)
		if errors.Is(err, session.ErrModelCall) {
			return "model"
		}
		if errors.Is(err, orchestrator.ErrLoopExceeded) {
			return "loop_exceeded"
		}
		return "unknown"
	}

	s.reply(ctx, msg.From, result.Text)

	var newStatus task.Status
	if result.TaskStatus == "success" {
		newStatus = task.StatusCompleted
	}
	err = s.store.AppendTurns(ctx, activeTask.ID,
		task.Turn{Role: task.RoleUser, Content: userTurnContent(msg), Timestamp: now, MessageID: msg.ID, MessageType: msg.Type},
		task.Turn{Role: task.RoleModel, Content: result.Text, Timestamp: time.Now()},
		time.Now(), newStatus)
	if err != nil {
		s.fail(ctx, msg.From, err)
		return "storage"
	}
	return "ok"
}

// fail 记录技术错误并把用户文案发给发送者
func (s *Service) fail(ctx context.Context, to string, err error) {
	if s.logger != nil {
		s.logger.Error("cycle failed", "to", to, "error", err)
	}
	_, userMsg := classify(err)
	s.reply(ctx, to, userMsg)
}

func (s *Service) reply(ctx context.Context, to, text string) {
	if text == "" {
		return
	}
	// 发送失败由 sender 记日志与计数，不影响已算出的结果
	_ = s.sender.SendText(ctx, to, text)
}

// classify 把错误归类为指标状态与用户文案；
// 错误链上显式附加的用户文案（apperrors.UserError）优先于哨兵映射
func classify(err error) (status, userMsg string) {
	switch {
	case errors.Is(err, messaging.ErrUnauthorized):
		status, userMsg = "validation", MsgUnauthorized
	case errors.Is(err, messaging.ErrUnsupportedType):
		status, userMsg = "validation", MsgUnsupported
	case errors.Is(err, messaging.ErrMedia):
		status, userMsg = "validation", MsgMedia
	case errors.Is(err, messaging.ErrValidation):
		status, userMsg = "validation", MsgUnknown
	case errors.Is(err, task.ErrStorage), errors.Is(err, task.ErrNotFound):
		status, userMsg = "storage", MsgDatabase
	case errors.Is(err, session.ErrModelCall):
		status, userMsg = "model", MsgModel
	case errors.Is(err, orchestrator.ErrLoopExceeded):
		status, userMsg = "loop_exceeded", MsgUnknown
	default:
		status, userMsg = "unknown", MsgUnknown
	}
	return status, apperrors.UserMessage(err, userMsg)
}

func cycleOutcome(status string) string {
	if status == "ok" {
		return "ok"
	}
	return "error"
}

// userTurnContent 用户回合的落库文本；媒体以占位符表示
func userTurnContent(msg *messaging.InboundMessage) string {
	switch msg.Type {
	case "text":
		return msg.Text
	case "audio":
		return "[audio message]"
	case "image":
		return "[image message]"
	case "file":
		if msg.FileName != "" {
			return "[file: " + msg.FileName + "]"
		}
		return "[file message]"
	default:
		return "[" + msg.Type + " message]"
	}
}

// historyContents 把既有回合转换为模型消息
func historyContents(turns []task.Turn) []llm.Content {
	out := make([]llm.Content, 0, len(turns))
	for _, t := range turns {
		out = append(out, llm.TextContent(string(t.Role), t.Content))
	}
	return out
}
