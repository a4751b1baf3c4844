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

package app

import (
	"context"
	"fmt"

	"assistant-platform/internal/storage/cache"
	"assistant-platform/internal/task"
	"assistant-platform/pkg/config"
	"assistant-platform/pkg/log"
	"assistant-platform/pkg/secrets"
)

// Bootstrap 统一初始化：日志、任务存储、缓存、密钥，供 cmd 层复用
type Bootstrap struct {
	Config    *config.Config
	Logger    *log.Logger
	TaskStore task.Store
	Cache     cache.Store
	Secrets   secrets.Store
}

// NewBootstrap 根据配置创建 Bootstrap
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	var taskStore task.Store
	if cfg != nil && cfg.TaskStore.Type == "postgres" && cfg.TaskStore.DSN != "" {
		taskStore, err = task.NewPostgresStore(context.Background(), cfg.TaskStore.DSN)
		if err != nil {
			return nil, fmt.Errorf("初始化任务存储(postgres)失败: %w", err)
		}
		logger.Info("任务存储使用 PostgreSQL 后端")
	} else {
		taskStore = task.NewMemoryStore()
	}

	cacheCfg := cache.Config{}
	if cfg != nil {
		cacheCfg = cache.Config{
			Type:     cfg.Cache.Type,
			Addr:     cfg.Cache.Addr,
			DB:       cfg.Cache.DB,
			Password: cfg.Cache.Password,
		}
	}
	cacheStore, err := cache.NewStore(cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存失败: %w", err)
	}

	secretsCfg := secrets.Config{}
	if cfg != nil {
		secretsCfg.Provider = cfg.Secrets.Provider
		secretsCfg.Config = cfg.Secrets.Config
	}
	secretStore, err := secrets.NewStore(secretsCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化密钥存储失败: %w", err)
	}

	return &Bootstrap{
		Config:    cfg,
		Logger:    logger,
		TaskStore: taskStore,
		Cache:     cacheStore,
		Secrets:   secretStore,
	}, nil
}
