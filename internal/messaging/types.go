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
	"errors"
	"time"
)

var (
	// ErrValidation 入站载荷缺字段或格式不合法
	ErrValidation = errors.New("messaging: invalid inbound payload")
	// ErrUnauthorized 签名校验失败或发送者不在允许名单
	ErrUnauthorized = errors.New("messaging: unauthorized sender")
	// ErrUnsupportedType 消息类型不支持
	ErrUnsupportedType = errors.New("messaging: unsupported message type")
	// ErrMedia 媒体拉取或处理失败
	ErrMedia = errors.New("messaging: media processing failed")
)

// MediaRef 媒体引用（audio/image）
type MediaRef struct {
	URL string `json:"url"`
}

// FileRef 文件引用
type FileRef struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// WebhookPayload 入站 webhook 载荷（Vonage Messages 形状）
type WebhookPayload struct {
	MessageUUID string    `json:"message_uuid"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Timestamp   string    `json:"timestamp"`
	MessageType string    `json:"message_type"`
	Text        string    `json:"text"`
	Audio       *MediaRef `json:"audio"`
	Image       *MediaRef `json:"image"`
	File        *FileRef  `json:"file"`
}

// InboundMessage 校验与归一化后的入站消息；媒体已拉取并转 base64
type InboundMessage struct {
	ID        string
	From      string
	Timestamp time.Time
	Type      string // text | audio | image | file
	Text      string // 仅 text；已清洗
	MIMEType  string // 仅媒体
	Data      string // 仅媒体；base64
	FileName  string // 仅 file
}
