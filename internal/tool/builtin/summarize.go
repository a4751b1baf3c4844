package builtin

import (
	"context"

	"assistant-platform/internal/tool"
)

// SummarizeTool 实现 summarize：模型产出摘要，工具原样确认
type SummarizeTool struct{}

// NewSummarizeTool 创建 summarize 工具
func NewSummarizeTool() *SummarizeTool {
	return &SummarizeTool{}
}

// Name 实现 tool.Tool
func (t *SummarizeTool) Name() string { return "summarize" }

// Description 实现 tool.Tool
func (t *SummarizeTool) Description() string {
	return "Creates a concise summary of the message in a single paragraph"
}

// Schema 实现 tool.Tool
func (t *SummarizeTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"summary": {
				Type:        "string",
				Description: "A concise paragraph summarizing the key points or action items from messages",
			},
		},
		Required: []string{"summary"},
	}
}

// Execute 实现 tool.Tool
func (t *SummarizeTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	summary, _ := input["summary"].(string)
	if summary == "" {
		return tool.Failure("summary is required"), nil
	}
	return tool.Result{
		Success: true,
		Fields:  map[string]any{"summary": summary},
	}, nil
}
