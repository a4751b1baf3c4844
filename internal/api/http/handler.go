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

package http

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"assistant-platform/internal/messaging"
	"assistant-platform/pkg/metrics"
)

// cycleTimeout 异步处理周期的总超时
const cycleTimeout = 5 * time.Minute

// WebhookService 处理已回执的入站载荷（由 internal/assistant 实现）
type WebhookService interface {
	HandleWebhook(ctx context.Context, payload messaging.WebhookPayload)
}

// Handler HTTP 处理器
type Handler struct {
	service WebhookService
	inbound *messaging.Inbound
	// verifySignature 为 false 时跳过 JWT 校验（本地调试）
	verifySignature bool
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(service WebhookService, inbound *messaging.Inbound, verifySignature bool) *Handler {
	return &Handler{
		service:         service,
		inbound:         inbound,
		verifySignature: verifySignature,
	}
}

// Webhook 入站消息回调：校验签名、解析载荷、立即回执，周期异步执行
// POST <webhook_path>
func (h *Handler) Webhook(c context.Context, ctx *app.RequestContext) {
	body := ctx.Request.Body()

	if h.verifySignature {
		auth := string(ctx.GetHeader("Authorization"))
		if err := h.inbound.VerifySignature(auth, body); err != nil {
			hlog.CtxWarnf(c, "webhook signature rejected: %v", err)
			ctx.JSON(consts.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
	}

	var payload messaging.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "malformed payload"})
		return
	}

	// 先回执 200，再异步跑处理周期；provider 的投递超时远短于一个周期
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})

	go func() {
		cycleCtx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
		defer cancel()
		h.service.HandleWebhook(cycleCtx, payload)
	}()
}

// Status 状态页
// GET <webhook_path>
func (h *Handler) Status(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "assistant-api",
		"timestamp": time.Now().Unix(),
	})
}

// MessageStatus 投递回执收纳口；记录后丢弃
// POST <webhook_path>/message-status
func (h *Handler) MessageStatus(c context.Context, ctx *app.RequestContext) {
	var receipt map[string]any
	if err := json.Unmarshal(ctx.Request.Body(), &receipt); err == nil {
		hlog.CtxDebugf(c, "message status: %v", receipt)
	}
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

// Metrics Prometheus 指标暴露
// GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	ctx.Response.Header.Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := metrics.WritePrometheus(ctx.Response.BodyWriter()); err != nil {
		hlog.CtxErrorf(c, "write metrics failed: %v", err)
		ctx.SetStatusCode(consts.StatusInternalServerError)
	}
}
