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

package cache

import (
	"context"
	"fmt"
	"time"
)

// Store 带 TTL 的字符串缓存
type Store interface {
	// Get 返回值与是否命中；未命中不算错误
	Get(ctx context.Context, key string) (string, bool, error)
	// Set 写入并设置过期时间；ttl ≤0 表示不过期
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete 删除键；键不存在不算错误
	Delete(ctx context.Context, key string) error
}

// Config 缓存配置
type Config struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// NewStore 按配置创建缓存；type 为空默认 memory
func NewStore(cfg Config) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.Addr, cfg.DB, cfg.Password), nil
	default:
		return nil, fmt.Errorf("不支持的缓存类型: %s", cfg.Type)
	}
}
