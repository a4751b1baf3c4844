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

package llm

import (
	"context"
)

// RateLimitedClient 带限流的 Client 装饰器
type RateLimitedClient struct {
	inner   Client
	limiter *LLMRateLimiter
}

// NewRateLimitedClient 包装 client，调用前经过 provider 维度限流
func NewRateLimitedClient(inner Client, limiter *LLMRateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, limiter: limiter}
}

// estimateTokens 粗略估算请求 token 数（约 4 字符/token）
func estimateTokens(req ChatRequest) int {
	chars := len(req.SystemInstruction)
	for _, c := range req.Contents {
		for _, p := range c.Parts {
			chars += len(p.Text)
			if p.InlineData != nil {
				// 媒体按固定成本估算
				chars += 4096
			}
		}
	}
	n := chars / 4
	if n < 1 {
		n = 1
	}
	return n
}

// Chat 实现 Client
func (c *RateLimitedClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.inner.Provider(), estimateTokens(req)); err != nil {
			return nil, err
		}
		defer c.limiter.Release(c.inner.Provider())
	}
	return c.inner.Chat(ctx, req)
}

// Model 实现 Client
func (c *RateLimitedClient) Model() string { return c.inner.Model() }

// Provider 实现 Client
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }
