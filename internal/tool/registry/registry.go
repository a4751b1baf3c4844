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

package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"assistant-platform/internal/model/llm"
	"assistant-platform/internal/tool"
	"assistant-platform/pkg/metrics"
)

// Registry 工具注册表：注册、发现、供 LLM 使用的声明列表。
// List 与 Declarations 按注册顺序返回，保证模型提示可复现。
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]tool.Tool
}

// New 创建新的 ToolRegistry
func New() *Registry {
	return &Registry{
		tools: make(map[string]tool.Tool),
	}
}

// Register 注册工具；同名重复注册覆盖实现，保留原位置
func (r *Registry) Register(t tool.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get 按名称获取工具
func (r *Registry) Get(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List 按注册顺序返回所有已注册工具
func (r *Registry) List() []tool.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tool.Tool, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name])
	}
	return list
}

// Declarations 返回所有工具的声明（按注册顺序，供模型 function calling 使用）
func (r *Registry) Declarations() []llm.FunctionDeclaration {
	list := r.List()
	decls := make([]llm.FunctionDeclaration, 0, len(list))
	for _, t := range list {
		decls = append(decls, llm.FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return decls
}

// Invoke 执行工具调用。未注册的名称、handler 返回错误或 panic 都转成
// 非致命的失败 Result 回传给模型，编排循环继续而不是中断对话。
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (result tool.Result) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = tool.Failure(fmt.Sprintf("Error calling tool %s", name))
		}
		status := "failure"
		if result.Success {
			status = "success"
		}
		metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		metrics.ToolTotal.WithLabelValues(name, status).Inc()
	}()

	t, ok := r.Get(name)
	if !ok {
		return tool.Failure(fmt.Sprintf("Error calling tool %s", name))
	}

	res, err := t.Execute(ctx, args)
	if err != nil {
		return tool.Failure(fmt.Sprintf("Error calling tool %s", name))
	}
	return res
}
