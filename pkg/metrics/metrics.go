package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		CycleDuration, CycleTotal,
		ModelCallDuration, ModelCallTotal,
		ToolDuration, ToolTotal,
		LLMTokensTotal,
		OutboundSendFailTotal,
	)
}

// CycleDuration 一次编排周期耗时（秒），从收到消息到产出最终回复
var CycleDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "assistant_cycle_duration_seconds",
		Help:    "编排周期耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"status"}, // ok | error
)

// CycleTotal 编排周期总数（按结果）
var CycleTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_cycle_total",
		Help: "编排周期总数（按结果）",
	},
	[]string{"status"}, // ok | validation | storage | model | loop_exceeded | unknown
)

// ModelCallDuration 单次模型调用耗时（秒）
var ModelCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "assistant_model_call_duration_seconds",
		Help:    "模型调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider"},
)

// ModelCallTotal 模型调用总数
var ModelCallTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_model_call_total",
		Help: "模型调用总数",
	},
	[]string{"provider", "status"}, // status: ok | error
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "assistant_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolTotal 工具调用总数（按成败）
var ToolTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_tool_total",
		Help: "工具调用总数（按成败）",
	},
	[]string{"tool", "status"}, // success | failure
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "assistant_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// OutboundSendFailTotal 出站消息发送失败数（发送失败不回滚已计算的结果）
var OutboundSendFailTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "assistant_outbound_send_fail_total",
		Help: "出站消息发送失败总数",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
