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

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	TaskStore    TaskStoreConfig    `mapstructure:"task_store"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Model        ModelConfig        `mapstructure:"model"`
	Messaging    MessagingConfig    `mapstructure:"messaging"`
	Prompt       PromptConfig       `mapstructure:"prompt"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Secrets      SecretsConfig      `mapstructure:"secrets"`
	RateLimits   RateLimitsConfig   `mapstructure:"rate_limits"`
	Log          LogConfig          `mapstructure:"log"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port        int    `mapstructure:"port"`
	Host        string `mapstructure:"host"`
	WebhookPath string `mapstructure:"webhook_path"` // 入站消息回调路径，如 "/webhooks/inbound"
	Timeout     string `mapstructure:"timeout"`
}

// TaskStoreConfig 任务存储配置
type TaskStoreConfig struct {
	Type     string `mapstructure:"type"`      // memory | postgres
	DSN      string `mapstructure:"dsn"`       // Postgres 连接串，type=postgres 时必填
	PoolSize int    `mapstructure:"pool_size"` // 连接池大小，<=0 使用 pgx 默认
}

// OrchestratorConfig 编排循环配置
type OrchestratorConfig struct {
	MaxRounds int    `mapstructure:"max_rounds"` // 单周期最大模型/工具轮次，<=0 使用默认 8
	TimeZone  string `mapstructure:"time_zone"`  // 指令渲染用时区（IANA），空则默认 America/Los_Angeles
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name        string  `mapstructure:"name"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型配置
type DefaultsConfig struct {
	LLM string `mapstructure:"llm"`
}

// MessagingConfig 消息通道配置（Vonage Messages API）
type MessagingConfig struct {
	APIHost         string `mapstructure:"api_host"`         // 如 https://messages-sandbox.nexmo.com
	APIKey          string `mapstructure:"api_key"`          // 支持 ${ENV_VAR}
	APISecret       string `mapstructure:"api_secret"`       // 支持 ${ENV_VAR}
	SignatureSecret string `mapstructure:"signature_secret"` // 入站 JWT 签名校验密钥，支持 ${ENV_VAR}
	FromNumber      string `mapstructure:"from_number"`      // 出站发送号码
	AllowedSender   string `mapstructure:"allowed_sender"`   // 允许的入站号码（单会话部署）
	MediaHostSuffix string `mapstructure:"media_host_suffix"` // 媒体下载主机后缀白名单，如 ".nexmo.com"
	MediaMaxBytes   int64  `mapstructure:"media_max_bytes"`   // 媒体大小上限，<=0 默认 16MiB
}

// PromptConfig 系统提示词来源配置（Langfuse prompt API）
type PromptConfig struct {
	Host      string `mapstructure:"host"`       // 如 https://us.cloud.langfuse.com
	PublicKey string `mapstructure:"public_key"` // 支持 ${ENV_VAR}
	SecretKey string `mapstructure:"secret_key"` // 支持 ${ENV_VAR}
	Name      string `mapstructure:"name"`       // prompt 名称
	Label     string `mapstructure:"label"`      // latest | production
	CacheTTL  string `mapstructure:"cache_ttl"`  // 如 "3m"，空则默认 3m
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// SecretsConfig Secret Store 配置
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // env | vault | memory
	Config   map[string]string `mapstructure:"config"`
}

// RateLimitsConfig 限流配置（LLM Provider 维度）
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	// 替换环境变量
	replaceEnvVars(&config)

	return &config, nil
}

// expandEnv 将 "${ENV_VAR}" 形式的值替换为环境变量内容；无匹配则原样返回
func expandEnv(value string) string {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	envVar := strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}")
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return value
}

// replaceEnvVars 替换配置中的环境变量
func replaceEnvVars(config *Config) {
	for provider, providerConfig := range config.Model.LLM.Providers {
		providerConfig.APIKey = expandEnv(providerConfig.APIKey)
		config.Model.LLM.Providers[provider] = providerConfig
	}

	config.Messaging.APIKey = expandEnv(config.Messaging.APIKey)
	config.Messaging.APISecret = expandEnv(config.Messaging.APISecret)
	config.Messaging.SignatureSecret = expandEnv(config.Messaging.SignatureSecret)
	config.Messaging.AllowedSender = expandEnv(config.Messaging.AllowedSender)
	config.Prompt.PublicKey = expandEnv(config.Prompt.PublicKey)
	config.Prompt.SecretKey = expandEnv(config.Prompt.SecretKey)
	config.Cache.Password = expandEnv(config.Cache.Password)
}

// LoadAPIConfig 加载 API 配置（仅 configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadAPIConfigWithModel 加载 API 配置并合并 model 配置；model.yaml 缺失时保留 api.yaml 中的 model 段
func LoadAPIConfigWithModel() (*Config, error) {
	cfg, err := LoadConfig("configs/api.yaml")
	if err != nil {
		return nil, err
	}
	modelCfg, err := LoadConfig("configs/model.yaml")
	if err == nil {
		cfg.Model = modelCfg.Model
	}
	return cfg, nil
}
