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

package prompt

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"

	"assistant-platform/internal/storage/cache"
	"assistant-platform/pkg/log"
)

// defaultCacheTTL 提示词缓存时长
const defaultCacheTTL = 3 * time.Minute

// placeholderRe 匹配 {{var}} 占位符
var placeholderRe = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Config 提示词服务配置（Langfuse 风格 prompt API）
type Config struct {
	Host      string        `mapstructure:"host"`
	PublicKey string        `mapstructure:"public_key"`
	SecretKey string        `mapstructure:"secret_key"`
	Name      string        `mapstructure:"name"`
	Label     string        `mapstructure:"label"` // latest | production
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// Source 系统提示词来源：远端拉取 + 缓存 + 变量编译
type Source struct {
	client *resty.Client
	cfg    Config
	cache  cache.Store
	logger *log.Logger
}

// promptResponse prompt API 返回体（text 类型）
type promptResponse struct {
	Name    string `json:"name"`
	Prompt  string `json:"prompt"`
	Version int    `json:"version"`
}

// NewSource 创建提示词来源
func NewSource(cfg Config, store cache.Store, logger *log.Logger) *Source {
	if cfg.Label == "" {
		cfg.Label = "latest"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if logger == nil {
		logger = log.Discard()
	}
	client := resty.New()
	client.SetBaseURL(cfg.Host)
	client.SetBasicAuth(cfg.PublicKey, cfg.SecretKey)
	client.SetTimeout(10 * time.Second)
	return &Source{client: client, cfg: cfg, cache: store, logger: logger}
}

func (s *Source) cacheKey() string {
	return "prompt:" + s.cfg.Name + ":" + s.cfg.Label
}

// Raw 返回未编译的提示词文本；优先走缓存，过期后重新拉取
func (s *Source) Raw(ctx context.Context) (string, error) {
	if s.cache != nil {
		if text, hit, err := s.cache.Get(ctx, s.cacheKey()); err == nil && hit {
			return text, nil
		}
	}

	var body promptResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("label", s.cfg.Label).
		SetResult(&body).
		Get("/api/public/v2/prompts/" + s.cfg.Name)
	if err != nil {
		return "", fmt.Errorf("拉取提示词失败: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("拉取提示词失败: HTTP %d", resp.StatusCode())
	}
	if body.Prompt == "" {
		return "", fmt.Errorf("提示词 %s 为空", s.cfg.Name)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cacheKey(), body.Prompt, s.cfg.CacheTTL); err != nil && s.logger != nil {
			s.logger.Warn("prompt cache write failed", "error", err)
		}
	}
	return body.Prompt, nil
}

// Instructions 返回以 vars 编译后的系统指令；
// 编译后仍有未解析占位符时退回原始文本
func (s *Source) Instructions(ctx context.Context, vars map[string]string) (string, error) {
	raw, err := s.Raw(ctx)
	if err != nil {
		return "", err
	}
	compiled := Compile(raw, vars)
	if placeholderRe.MatchString(compiled) {
		if s.logger != nil {
			s.logger.Warn("prompt compile left unresolved placeholders, using raw text",
				"prompt", s.cfg.Name)
		}
		return raw, nil
	}
	return compiled, nil
}

// Warm 启动时预热缓存；失败只记日志，首条消息时再重试
func (s *Source) Warm(ctx context.Context) {
	if _, err := s.Raw(ctx); err != nil && s.logger != nil {
		s.logger.Warn("prompt warm-up failed", "error", err)
	}
}

// Compile 替换文本中的 {{var}} 占位符；未知变量保留原样
func Compile(text string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}
