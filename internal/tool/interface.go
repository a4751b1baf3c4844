package tool

import (
	"context"
)

// Schema 表示工具的 JSON Schema（供 LLM function-calling 使用）
type Schema struct {
	Type        string                    `json:"type,omitempty"`
	Description string                    `json:"description,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
}

// SchemaProperty 表示 Schema 中单个属性的描述
type SchemaProperty struct {
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Result 工具执行结果；整体序列化后作为 functionResponse 回传给模型
type Result struct {
	Success bool `json:"success"`
	// TaskStatus 非空时向编排层传递任务状态（complete_task 专用通道）
	TaskStatus string `json:"taskStatus,omitempty"`
	// Fields 由模型消费的附加字段（title、link、summary 等）
	Fields map[string]any `json:"-"`
}

// Failure 构造失败结果
func Failure(message string) Result {
	return Result{Success: false, Fields: map[string]any{"message": message}}
}

// ToResponse 将 Result 展开为回传模型的 map
func (r Result) ToResponse() map[string]any {
	out := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["success"] = r.Success
	if r.TaskStatus != "" {
		out["taskStatus"] = r.TaskStatus
	}
	return out
}

// Tool 可被模型调用的工具接口
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	Execute(ctx context.Context, input map[string]any) (Result, error)
}
