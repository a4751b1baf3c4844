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

package session

import (
	"context"
	"errors"
	"fmt"

	"assistant-platform/internal/model/llm"
)

var (
	// ErrModelCall 模型调用失败；会话内不重试
	ErrModelCall = errors.New("session: model call failed")
	// ErrInvalidHistory 历史不满足 user/model 交替
	ErrInvalidHistory = errors.New("session: history must alternate user/model turns")
)

// Outcome 一次模型往返的结果：Calls 非空时为待执行的工具调用，
// 否则 Text 为面向用户的最终回复
type Outcome struct {
	Text  string
	Calls []llm.FunctionCall
}

// Pending 模型是否在等待工具结果
func (o Outcome) Pending() bool { return len(o.Calls) > 0 }

// Session 单个处理周期内的会话。HTTP API 无状态，
// 会话持有周期内的交换日志，每次请求重放完整上下文。
type Session struct {
	client       llm.Client
	instructions string
	tools        []llm.FunctionDeclaration
	options      llm.GenerateOptions
	contents     []llm.Content
}

// New 创建会话；history 为既有任务回合（有序），必须 user/model 交替且以 user 开始
func New(client llm.Client, instructions string, history []llm.Content, tools []llm.FunctionDeclaration, options llm.GenerateOptions) (*Session, error) {
	if client == nil {
		return nil, errors.New("session: nil llm client")
	}
	if err := validateHistory(history); err != nil {
		return nil, err
	}
	contents := make([]llm.Content, len(history))
	copy(contents, history)
	return &Session{
		client:       client,
		instructions: instructions,
		tools:        tools,
		options:      options,
		contents:     contents,
	}, nil
}

func validateHistory(history []llm.Content) error {
	for i, c := range history {
		switch c.Role {
		case "user":
			if i%2 != 0 {
				return fmt.Errorf("%w: got user at %d", ErrInvalidHistory, i)
			}
		case "model":
			if i%2 != 1 {
				return fmt.Errorf("%w: got model at %d", ErrInvalidHistory, i)
			}
		default:
			return fmt.Errorf("%w: unknown role %q at %d", ErrInvalidHistory, c.Role, i)
		}
	}
	return nil
}

// SendUserTurn 发送文本回合并请求模型
func (s *Session) SendUserTurn(ctx context.Context, text string) (Outcome, error) {
	return s.send(ctx, llm.TextContent("user", text))
}

// SendUserMedia 发送内联媒体回合（data 为 base64）并请求模型
func (s *Session) SendUserMedia(ctx context.Context, mimeType, data string) (Outcome, error) {
	return s.send(ctx, llm.MediaContent("user", mimeType, data))
}

// SendToolResult 回传一次工具执行结果并请求模型
func (s *Session) SendToolResult(ctx context.Context, name string, response map[string]any) (Outcome, error) {
	return s.send(ctx, llm.Content{
		Role: "user",
		Parts: []llm.Part{{
			FunctionResponse: &llm.FunctionResponse{Name: name, Response: response},
		}},
	})
}

// History 返回截至当前的交换日志（含本周期内的回合）
func (s *Session) History() []llm.Content {
	out := make([]llm.Content, len(s.contents))
	copy(out, s.contents)
	return out
}

func (s *Session) send(ctx context.Context, turn llm.Content) (Outcome, error) {
	s.contents = append(s.contents, turn)

	resp, err := s.client.Chat(ctx, llm.ChatRequest{
		SystemInstruction: s.instructions,
		Contents:          s.contents,
		Tools:             s.tools,
		Options:           s.options,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrModelCall, err)
	}

	s.contents = append(s.contents, modelContent(resp))
	if len(resp.ToolCalls) > 0 {
		return Outcome{Text: resp.Text, Calls: resp.ToolCalls}, nil
	}
	return Outcome{Text: resp.Text}, nil
}

// modelContent 把模型响应还原为交换日志中的 model 回合
func modelContent(resp *llm.ChatResponse) llm.Content {
	var parts []llm.Part
	if resp.Text != "" {
		parts = append(parts, llm.Part{Text: resp.Text})
	}
	for i := range resp.ToolCalls {
		call := resp.ToolCalls[i]
		parts = append(parts, llm.Part{FunctionCall: &call})
	}
	if len(parts) == 0 {
		parts = append(parts, llm.Part{Text: ""})
	}
	return llm.Content{Role: "model", Parts: parts}
}
