package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-platform/internal/model/llm"
	"assistant-platform/internal/session"
	"assistant-platform/internal/tool"
	"assistant-platform/internal/tool/registry"
)

// scriptedClient 按脚本依次返回响应；脚本耗尽后重复最后一条
type scriptedClient struct {
	responses []*llm.ChatResponse
	calls     int
}

func (c *scriptedClient) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	c.calls++
	resp := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	return resp, nil
}

func (c *scriptedClient) Model() string    { return "test-model" }
func (c *scriptedClient) Provider() string { return "test" }

// recordingTool 记录调用顺序
type recordingTool struct {
	name   string
	status string
	log    *[]string
}

func (t *recordingTool) Name() string        { return t.name }
func (t *recordingTool) Description() string { return t.name }
func (t *recordingTool) Schema() tool.Schema { return tool.Schema{Type: "object"} }
func (t *recordingTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	*t.log = append(*t.log, t.name)
	return tool.Result{Success: true, TaskStatus: t.status}, nil
}

func newSession(t *testing.T, client llm.Client) *session.Session {
	t.Helper()
	sess, err := session.New(client, "instr", nil, nil, llm.GenerateOptions{})
	require.NoError(t, err)
	return sess
}

func TestRunImmediateFinal(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{{Text: "Hello!"}}}
	var order []string
	reg := registry.New()
	reg.Register(&recordingTool{name: "summarize", log: &order})

	loop := NewLoop(reg, 0, nil)
	result, err := loop.Run(context.Background(), newSession(t, client), Inbound{Text: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", result.Text)
	assert.Empty(t, result.TaskStatus)
	assert.Empty(t, order)
	assert.Equal(t, 1, client.calls)
}

func TestRunSingleToolCycle(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.FunctionCall{{Name: "complete_task", Args: map[string]any{"taskStatus": "success"}}}},
		{Text: "Done!"},
	}}
	var order []string
	reg := registry.New()
	reg.Register(&recordingTool{name: "complete_task", status: "success", log: &order})

	loop := NewLoop(reg, 0, nil)
	result, err := loop.Run(context.Background(), newSession(t, client), Inbound{Text: "Yes, confirm"})
	require.NoError(t, err)
	assert.Equal(t, "Done!", result.Text)
	assert.Equal(t, "success", result.TaskStatus)
	assert.Equal(t, []string{"complete_task"}, order)
}

func TestRunAllCallsSequentially(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.FunctionCall{{Name: "first"}, {Name: "second"}}},
		{ToolCalls: nil, Text: ""}, // first 结果回传后
		{Text: "Both done."},
	}}
	var order []string
	reg := registry.New()
	reg.Register(&recordingTool{name: "first", log: &order})
	reg.Register(&recordingTool{name: "second", log: &order})

	loop := NewLoop(reg, 0, nil)
	result, err := loop.Run(context.Background(), newSession(t, client), Inbound{Text: "do both"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, "Both done.", result.Text)
	// 初始请求 + 两次结果回传
	assert.Equal(t, 3, client.calls)
}

func TestRunUnknownToolNeverRaises(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.FunctionCall{{Name: "nonexistent_tool"}}},
		{Text: "Sorry, I could not do that."},
	}}
	reg := registry.New()

	loop := NewLoop(reg, 0, nil)
	result, err := loop.Run(context.Background(), newSession(t, client), Inbound{Text: "hm"})
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I could not do that.", result.Text)
}

func TestRunLoopExceeded(t *testing.T) {
	// 模型永远要求再调一次工具
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.FunctionCall{{Name: "summarize"}}},
	}}
	var order []string
	reg := registry.New()
	reg.Register(&recordingTool{name: "summarize", log: &order})

	loop := NewLoop(reg, 3, nil)
	_, err := loop.Run(context.Background(), newSession(t, client), Inbound{Text: "loop"})
	assert.ErrorIs(t, err, ErrLoopExceeded)
	assert.Len(t, order, 3)
}

func TestRunDefaultMaxRounds(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.FunctionCall{{Name: "summarize"}}},
	}}
	var order []string
	reg := registry.New()
	reg.Register(&recordingTool{name: "summarize", log: &order})

	loop := NewLoop(reg, 0, nil)
	_, err := loop.Run(context.Background(), newSession(t, client), Inbound{Text: "loop"})
	assert.ErrorIs(t, err, ErrLoopExceeded)
	assert.Len(t, order, 8)
}

func TestRunMediaInbound(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{{Text: "Heard you."}}}
	reg := registry.New()

	loop := NewLoop(reg, 0, nil)
	result, err := loop.Run(context.Background(), newSession(t, client), Inbound{MIMEType: "audio/ogg", Data: "b64"})
	require.NoError(t, err)
	assert.Equal(t, "Heard you.", result.Text)
}
