package llm

import (
	"context"
	"fmt"
)

// Client LLM 客户端接口（支持 function calling）
type Client interface {
	// Chat 以完整上下文调用模型，返回文本与/或工具调用
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
}

// ChatRequest 单次模型调用的完整输入
type ChatRequest struct {
	SystemInstruction string
	Contents          []Content
	Tools             []FunctionDeclaration
	Options           GenerateOptions
}

// ChatResponse 模型输出：最终文本或待执行的工具调用（二者可同时出现，工具调用优先处理）
type ChatResponse struct {
	Text      string
	ToolCalls []FunctionCall
	Usage     Usage
}

// Usage token 用量
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Content 一条对话内容（role: user | model）
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part 内容片段：文本、内联媒体、函数调用或函数响应之一
type Part struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// Blob 内联媒体数据（Data 为 base64 编码）
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FunctionCall 模型请求的工具调用
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse 工具执行结果回传
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// FunctionDeclaration 工具声明（供模型 function calling 使用）
type FunctionDeclaration struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// TextContent 构造单条文本内容
func TextContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

// MediaContent 构造单条内联媒体内容
func MediaContent(role, mimeType, data string) Content {
	return Content{Role: role, Parts: []Part{{InlineData: &Blob{MIMEType: mimeType, Data: data}}}}
}

// NewClient 创建新的 LLM 客户端；baseURL 为空则用默认或环境变量
func NewClient(provider, model, apiKey string, baseURL string) (Client, error) {
	switch provider {
	case "", "gemini":
		return NewGeminiClient(model, apiKey, baseURL)
	default:
		return nil, fmt.Errorf("不支持的 LLM provider: %s", provider)
	}
}
