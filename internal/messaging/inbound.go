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
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v4"

	"assistant-platform/pkg/log"
)

// defaultMediaMaxBytes 媒体大小上限（16MB，WhatsApp 单条媒体上限）
const defaultMediaMaxBytes = 16 << 20

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)
var whitespaceRe = regexp.MustCompile(`\s+`)

// InboundConfig 入站管线配置
type InboundConfig struct {
	SignatureSecret string
	AllowedSender   string
	MediaHostSuffix string // 媒体 URL 主机名必须以此结尾，防 SSRF
	MediaMaxBytes   int64
}

// Inbound 入站消息管线：签名校验、发送者过滤、清洗、媒体拉取
type Inbound struct {
	cfg    InboundConfig
	client *resty.Client
	logger *log.Logger
}

// NewInbound 创建入站管线
func NewInbound(cfg InboundConfig, logger *log.Logger) *Inbound {
	if cfg.MediaMaxBytes <= 0 {
		cfg.MediaMaxBytes = defaultMediaMaxBytes
	}
	if logger == nil {
		logger = log.Discard()
	}
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	return &Inbound{cfg: cfg, client: client, logger: logger}
}

// VerifySignature 校验 webhook 的 JWT 签名（HS256）与 payload_hash
func (p *Inbound) VerifySignature(authHeader string, body []byte) error {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(p.cfg.SignatureSecret), nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: bad signature", ErrUnauthorized)
	}
	payloadHash, _ := claims["payload_hash"].(string)
	sum := sha256.Sum256(body)
	if payloadHash != hex.EncodeToString(sum[:]) {
		return fmt.Errorf("%w: payload hash mismatch", ErrUnauthorized)
	}
	return nil
}

// Normalize 校验载荷并归一化为 InboundMessage；媒体在此拉取
func (p *Inbound) Normalize(ctx context.Context, payload WebhookPayload) (*InboundMessage, error) {
	if payload.MessageUUID == "" || payload.From == "" {
		return nil, fmt.Errorf("%w: message_uuid and from are required", ErrValidation)
	}
	if p.cfg.AllowedSender != "" && payload.From != p.cfg.AllowedSender {
		return nil, fmt.Errorf("%w: sender %s not allowed", ErrUnauthorized, payload.From)
	}

	msg := &InboundMessage{
		ID:   payload.MessageUUID,
		From: payload.From,
		Type: payload.MessageType,
	}
	if ts, err := time.Parse(time.RFC3339, payload.Timestamp); err == nil {
		msg.Timestamp = ts
	} else {
		msg.Timestamp = time.Now()
	}

	switch payload.MessageType {
	case "text":
		text := SanitizeText(payload.Text)
		if text == "" {
			return nil, fmt.Errorf("%w: empty text", ErrValidation)
		}
		msg.Text = text
	case "audio":
		if payload.Audio == nil {
			return nil, fmt.Errorf("%w: audio payload missing url", ErrValidation)
		}
		if err := p.fetchMedia(ctx, msg, payload.Audio.URL); err != nil {
			return nil, err
		}
	case "image":
		if payload.Image == nil {
			return nil, fmt.Errorf("%w: image payload missing url", ErrValidation)
		}
		if err := p.fetchMedia(ctx, msg, payload.Image.URL); err != nil {
			return nil, err
		}
	case "file":
		if payload.File == nil {
			return nil, fmt.Errorf("%w: file payload missing url", ErrValidation)
		}
		if err := p.fetchMedia(ctx, msg, payload.File.URL); err != nil {
			return nil, err
		}
		msg.FileName = payload.File.Name
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, payload.MessageType)
	}
	return msg, nil
}

// fetchMedia 拉取媒体并转 base64；主机名需匹配配置后缀
func (p *Inbound) fetchMedia(ctx context.Context, msg *InboundMessage, mediaURL string) error {
	parsed, err := url.Parse(mediaURL)
	if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		return fmt.Errorf("%w: bad media url", ErrMedia)
	}
	if p.cfg.MediaHostSuffix != "" && !strings.HasSuffix(parsed.Hostname(), p.cfg.MediaHostSuffix) {
		return fmt.Errorf("%w: media host %s not allowed", ErrMedia, parsed.Hostname())
	}

	resp, err := p.client.R().SetContext(ctx).Get(mediaURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMedia, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: HTTP %d", ErrMedia, resp.StatusCode())
	}
	body := resp.Body()
	if int64(len(body)) > p.cfg.MediaMaxBytes {
		return fmt.Errorf("%w: media exceeds %d bytes", ErrMedia, p.cfg.MediaMaxBytes)
	}

	mimeType := resp.Header().Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	msg.MIMEType = mimeType
	msg.Data = base64.StdEncoding.EncodeToString(body)
	return nil
}

// SanitizeText 清洗用户文本：去 HTML 标签、合并空白、去首尾空白
func SanitizeText(text string) string {
	text = htmlTagRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
