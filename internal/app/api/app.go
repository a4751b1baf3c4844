package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"assistant-platform/internal/api/http"
	"assistant-platform/internal/app"
	"assistant-platform/internal/assistant"
	"assistant-platform/internal/messaging"
	"assistant-platform/internal/model/llm"
	"assistant-platform/internal/orchestrator"
	"assistant-platform/internal/prompt"
	"assistant-platform/internal/tool/builtin"
	"assistant-platform/internal/tool/registry"
	"assistant-platform/pkg/config"
	"assistant-platform/pkg/tracing"
	"assistant-platform/pkg/utils"
)

// App API 应用（装配消息管线、助手服务与 HTTP Router）
type App struct {
	bootstrap      *app.Bootstrap
	router         *http.Router
	prompts        *prompt.Source
	hertz          *server.Hertz
	tracerProvider *sdktrace.TracerProvider
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	if cfg == nil {
		return nil, fmt.Errorf("缺少配置")
	}

	client, options, err := newLLMClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化 LLM 客户端失败: %w", err)
	}

	splitwiseKey, _ := bootstrap.Secrets.Get(context.Background(), "SPLITWISE_API_KEY")
	reg := registry.New()
	builtin.RegisterBuiltin(reg, builtin.SplitwiseConfig{APIKey: splitwiseKey})

	var runner orchestrator.Runner = orchestrator.NewLoop(reg, cfg.Orchestrator.MaxRounds, bootstrap.Logger)
	if cfg.Monitoring.Tracing.Enable {
		runner = orchestrator.NewTracingRunner(runner)
	}

	prompts := prompt.NewSource(prompt.Config{
		Host:      cfg.Prompt.Host,
		PublicKey: cfg.Prompt.PublicKey,
		SecretKey: cfg.Prompt.SecretKey,
		Name:      cfg.Prompt.Name,
		Label:     cfg.Prompt.Label,
		CacheTTL:  utils.ParseDurationOr(cfg.Prompt.CacheTTL, 3*time.Minute),
	}, bootstrap.Cache, bootstrap.Logger)

	inbound := messaging.NewInbound(messaging.InboundConfig{
		SignatureSecret: cfg.Messaging.SignatureSecret,
		AllowedSender:   cfg.Messaging.AllowedSender,
		MediaHostSuffix: cfg.Messaging.MediaHostSuffix,
		MediaMaxBytes:   cfg.Messaging.MediaMaxBytes,
	}, bootstrap.Logger)
	sender := messaging.NewVonageSender(messaging.VonageConfig{
		APIHost:    cfg.Messaging.APIHost,
		APIKey:     cfg.Messaging.APIKey,
		APISecret:  cfg.Messaging.APISecret,
		FromNumber: cfg.Messaging.FromNumber,
	}, bootstrap.Logger)

	service := assistant.NewService(assistant.Options{
		Store:    bootstrap.TaskStore,
		Client:   client,
		Registry: reg,
		Runner:   runner,
		Prompts:  prompts,
		Inbound:  inbound,
		Sender:   sender,
		Logger:   bootstrap.Logger,
		TimeZone: cfg.Orchestrator.TimeZone,
		Generate: options,
	})

	handler := http.NewHandler(service, inbound, cfg.Messaging.SignatureSecret != "")
	router := http.NewRouter(handler, cfg.API.WebhookPath)

	return &App{
		bootstrap: bootstrap,
		router:    router,
		prompts:   prompts,
	}, nil
}

// newLLMClient 按配置装配 LLM 客户端（含 provider 维度限流）
func newLLMClient(cfg *config.Config) (llm.Client, llm.GenerateOptions, error) {
	providerName := utils.CoalesceString(cfg.Model.Defaults.LLM, "gemini")
	pc := cfg.Model.LLM.Providers[providerName]

	modelName := "gemini-2.5-flash"
	options := llm.GenerateOptions{Temperature: 0.5}
	for _, info := range pc.Models {
		if info.Name != "" {
			modelName = info.Name
			options.Temperature = info.Temperature
			options.MaxTokens = info.MaxTokens
			break
		}
	}

	client, err := llm.NewClient(providerName, modelName, pc.APIKey, pc.BaseURL)
	if err != nil {
		return nil, options, err
	}

	if len(cfg.RateLimits.LLM) > 0 {
		limits := make(map[string]llm.LLMLimitConfig, len(cfg.RateLimits.LLM))
		for name, lc := range cfg.RateLimits.LLM {
			limits[name] = llm.LLMLimitConfig{
				TokensPerMinute:   lc.TokensPerMinute,
				RequestsPerMinute: lc.RequestsPerMinute,
				MaxConcurrent:     lc.MaxConcurrent,
			}
		}
		limiter := llm.NewLLMRateLimiter(limits, nil)
		return llm.NewRateLimitedClient(client, limiter), options, nil
	}
	return client, options, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 配置对齐
	output := os.Stdout
	if a.bootstrap.Config != nil && a.bootstrap.Config.Log.File != "" {
		f, err := os.OpenFile(a.bootstrap.Config.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	if a.bootstrap.Config != nil {
		levelVar.Set(logLevel(a.bootstrap.Config.Log.Level))
	}
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)

	// 启动即预热提示词缓存，首条消息不用等远端
	go a.prompts.Warm(context.Background())

	// 可选：启用链路追踪（OpenTelemetry）
	tracingCfg := a.bootstrap.Config.Monitoring.Tracing
	if tracingCfg.Enable {
		serviceName := utils.CoalesceString(tracingCfg.ServiceName, "assistant-api")
		exportEndpoint := utils.CoalesceString(tracingCfg.ExportEndpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
		if exportEndpoint != "" {
			tp, err := tracing.InitTracer(tracing.OTelConfig{
				ServiceName:    serviceName,
				ExportEndpoint: exportEndpoint,
				Insecure:       tracingCfg.Insecure,
			})
			if err != nil {
				return fmt.Errorf("初始化链路追踪失败: %w", err)
			}
			a.tracerProvider = tp
			tracerOpt, tracerCfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
			a.bootstrap.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		} else {
			a.hertz = a.router.Build(addr)
		}
	} else {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.tracerProvider != nil {
		_ = tracing.Shutdown(ctx, a.tracerProvider)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// logLevel 解析日志级别，默认 info
func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
