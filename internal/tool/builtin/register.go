package builtin

import (
	"assistant-platform/internal/tool"
	"assistant-platform/internal/tool/registry"
)

// RegisterBuiltin 将内置工具按固定顺序注册到 ToolRegistry。
// 注册顺序即模型看到的声明顺序，改动会影响提示可复现性。
func RegisterBuiltin(reg *registry.Registry, splitwise SplitwiseConfig) {
	if reg == nil {
		return
	}
	reg.Register(NewCalendarTool())
	reg.Register(NewSummarizeTool())
	reg.Register(NewSplitwiseTool(splitwise))
	reg.Register(NewCompleteTaskTool())
}

// RegisterTools 仅注册给定工具（用于测试或最小装配）
func RegisterTools(reg *registry.Registry, tools ...tool.Tool) {
	if reg == nil {
		return
	}
	for _, t := range tools {
		reg.Register(t)
	}
}
