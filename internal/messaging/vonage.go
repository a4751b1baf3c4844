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

package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"assistant-platform/pkg/log"
	"assistant-platform/pkg/metrics"
)

// Sender 出站消息发送
type Sender interface {
	SendText(ctx context.Context, to, text string) error
}

// VonageConfig 出站发送配置
type VonageConfig struct {
	APIHost    string // 默认 https://messages-sandbox.nexmo.com
	APIKey     string
	APISecret  string
	FromNumber string
}

// VonageSender 通过 Vonage Messages API 发送 WhatsApp 文本。
// 发送失败记日志并计数，不回滚已计算的结果。
type VonageSender struct {
	client *resty.Client
	from   string
	logger *log.Logger
}

// NewVonageSender 创建出站发送器
func NewVonageSender(cfg VonageConfig, logger *log.Logger) *VonageSender {
	host := cfg.APIHost
	if host == "" {
		host = "https://messages-sandbox.nexmo.com"
	}
	if logger == nil {
		logger = log.Discard()
	}
	client := resty.New()
	client.SetBaseURL(host)
	client.SetBasicAuth(cfg.APIKey, cfg.APISecret)
	client.SetTimeout(15 * time.Second)
	return &VonageSender{client: client, from: cfg.FromNumber, logger: logger}
}

// SendText 实现 Sender
func (s *VonageSender) SendText(ctx context.Context, to, text string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"message_type": "text",
			"channel":      "whatsapp",
			"from":         s.from,
			"to":           to,
			"text":         text,
		}).
		Post("/v1/messages")
	if err == nil && resp.IsError() {
		err = fmt.Errorf("vonage API HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	if err != nil {
		metrics.OutboundSendFailTotal.Inc()
		if s.logger != nil {
			s.logger.Error("outbound send failed", "to", to, "error", err)
		}
		return err
	}
	return nil
}
