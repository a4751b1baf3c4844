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
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
)

// Router HTTP 路由器
type Router struct {
	handler     *Handler
	webhookPath string
}

// NewRouter 创建新的 HTTP 路由器；webhookPath 如 "/webhooks/inbound"
func NewRouter(handler *Handler, webhookPath string) *Router {
	if webhookPath == "" {
		webhookPath = "/webhooks/inbound"
	}
	return &Router{handler: handler, webhookPath: webhookPath}
}

// Build 创建 Hertz server 并挂载路由；opts 供上层附加 tracer 等选项
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	options := append([]config.Option{
		server.WithHostPorts(addr),
	}, opts...)
	h := server.Default(options...)
	r.Register(h)
	return h
}

// Register 挂载路由
func (r *Router) Register(h *server.Hertz) {
	h.POST(r.webhookPath, r.handler.Webhook)
	h.GET(r.webhookPath, r.handler.Status)
	h.POST(r.webhookPath+"/message-status", r.handler.MessageStatus)
	h.GET("/metrics", r.handler.Metrics)
}
