package builtin

import (
	"context"

	"assistant-platform/internal/tool"
)

// CompleteTaskTool 实现 complete_task：任务进入 completed 的唯一通道
type CompleteTaskTool struct{}

// NewCompleteTaskTool 创建 complete_task 工具
func NewCompleteTaskTool() *CompleteTaskTool {
	return &CompleteTaskTool{}
}

// Name 实现 tool.Tool
func (t *CompleteTaskTool) Name() string { return "complete_task" }

// Description 实现 tool.Tool
func (t *CompleteTaskTool) Description() string {
	return "Completes the task at hand by updating its status in the database"
}

// Schema 实现 tool.Tool
func (t *CompleteTaskTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"taskStatus": {
				Type:        "string",
				Enum:        []string{"success"},
				Description: "Pass 'success' status to complete the task (with the user's confirmation)",
			},
		},
		Required: []string{"taskStatus"},
	}
}

// Execute 实现 tool.Tool
func (t *CompleteTaskTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	status, _ := input["taskStatus"].(string)
	if status != "success" {
		return tool.Failure("taskStatus must be 'success'"), nil
	}
	return tool.Result{
		Success:    true,
		TaskStatus: status,
	}, nil
}
