package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-platform/internal/messaging"
	"assistant-platform/internal/model/llm"
	"assistant-platform/internal/orchestrator"
	"assistant-platform/internal/task"
	"assistant-platform/internal/tool"
	"assistant-platform/internal/tool/registry"
	apperrors "assistant-platform/pkg/errors"
)

type scriptedClient struct {
	responses []*llm.ChatResponse
	err       error
}

func (c *scriptedClient) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	resp := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	return resp, nil
}

func (c *scriptedClient) Model() string    { return "test-model" }
func (c *scriptedClient) Provider() string { return "test" }

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSender) SendText(ctx context.Context, to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *recordingSender) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return ""
	}
	return s.sent[len(s.sent)-1]
}

type staticPrompts struct{ text string }

func (p staticPrompts) Instructions(ctx context.Context, vars map[string]string) (string, error) {
	return p.text, nil
}

type completeTool struct{}

func (completeTool) Name() string        { return "complete_task" }
func (completeTool) Description() string { return "complete" }
func (completeTool) Schema() tool.Schema { return tool.Schema{Type: "object"} }
func (completeTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	return tool.Result{Success: true, TaskStatus: "success"}, nil
}

func newService(client llm.Client, store task.Store, sender messaging.Sender) *Service {
	reg := registry.New()
	reg.Register(completeTool{})
	return NewService(Options{
		Store:    store,
		Client:   client,
		Registry: reg,
		Runner:   orchestrator.NewLoop(reg, 0, nil),
		Prompts:  staticPrompts{text: "You are a task assistant."},
		Inbound:  messaging.NewInbound(messaging.InboundConfig{AllowedSender: "14155550100"}, nil),
		Sender:   sender,
		TimeZone: "America/Los_Angeles",
	})
}

func textMessage(text string) *messaging.InboundMessage {
	return &messaging.InboundMessage{
		ID: "m1", From: "14155550100", Type: "text", Text: text, Timestamp: time.Now(),
	}
}

func TestHandleMessageEndToEnd(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{{Text: "Booked."}}}
	store := task.NewMemoryStore()
	sender := &recordingSender{}
	svc := newService(client, store, sender)

	svc.HandleMessage(context.Background(), textMessage("Book a meeting with Ana tomorrow at 10"))

	assert.Equal(t, "Booked.", sender.last())

	got, err := store.GetOrCreateActive(context.Background(), "14155550100", time.Now())
	require.NoError(t, err)
	require.Len(t, got.Turns, 2)
	assert.Equal(t, task.RoleUser, got.Turns[0].Role)
	assert.Equal(t, "Book a meeting with Ana tomorrow at 10", got.Turns[0].Content)
	assert.Equal(t, task.RoleModel, got.Turns[1].Role)
	assert.Equal(t, "Booked.", got.Turns[1].Content)
}

func TestHandleMessageCompletesTask(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.FunctionCall{{Name: "complete_task", Args: map[string]any{"taskStatus": "success"}}}},
		{Text: "Done!"},
	}}
	store := task.NewMemoryStore()
	sender := &recordingSender{}
	svc := newService(client, store, sender)

	first, err := store.GetOrCreateActive(context.Background(), "14155550100", time.Now())
	require.NoError(t, err)

	svc.HandleMessage(context.Background(), textMessage("Yes, confirm"))
	assert.Equal(t, "Done!", sender.last())

	// 任务完成后同键再取应得到新任务
	next, err := store.GetOrCreateActive(context.Background(), "14155550100", time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, next.ID)
}

func TestHandleMessageModelFailure(t *testing.T) {
	client := &scriptedClient{err: errors.New("HTTP 500")}
	sender := &recordingSender{}
	svc := newService(client, task.NewMemoryStore(), sender)

	svc.HandleMessage(context.Background(), textMessage("hi"))
	assert.Equal(t, MsgModel, sender.last())
}

type failingStore struct{}

func (failingStore) GetOrCreateActive(ctx context.Context, key string, now time.Time) (*task.Task, error) {
	return nil, task.ErrStorage
}

func (failingStore) AppendTurns(ctx context.Context, taskID string, u, m task.Turn, now time.Time, s task.Status) error {
	return task.ErrStorage
}

func TestHandleMessageStorageFailure(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{{Text: "ok"}}}
	sender := &recordingSender{}
	svc := newService(client, failingStore{}, sender)

	svc.HandleMessage(context.Background(), textMessage("hi"))
	assert.Equal(t, MsgDatabase, sender.last())
}

func TestHandleWebhookUnauthorizedSender(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{{Text: "ok"}}}
	sender := &recordingSender{}
	svc := newService(client, task.NewMemoryStore(), sender)

	svc.HandleWebhook(context.Background(), messaging.WebhookPayload{
		MessageUUID: "u1", From: "14155550999", MessageType: "text", Text: "hi",
	})
	assert.Equal(t, MsgUnauthorized, sender.last())
}

func TestHandleWebhookUnsupportedType(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{{Text: "ok"}}}
	sender := &recordingSender{}
	svc := newService(client, task.NewMemoryStore(), sender)

	svc.HandleWebhook(context.Background(), messaging.WebhookPayload{
		MessageUUID: "u1", From: "14155550100", MessageType: "video",
	})
	assert.Equal(t, MsgUnsupported, sender.last())
}

func TestHandleMessageHistoryReplayed(t *testing.T) {
	var lastReq llm.ChatRequest
	client := &capturingClient{resp: &llm.ChatResponse{Text: "When?"}, last: &lastReq}
	store := task.NewMemoryStore()
	sender := &recordingSender{}
	svc := newService(client, store, sender)

	svc.HandleMessage(context.Background(), textMessage("Book a meeting"))
	svc.HandleMessage(context.Background(), &messaging.InboundMessage{
		ID: "m2", From: "14155550100", Type: "text", Text: "Tomorrow at 10", Timestamp: time.Now(),
	})

	// 第二个周期的请求必须带上第一轮的 user/model 回合
	require.Len(t, lastReq.Contents, 3)
	assert.Equal(t, "user", lastReq.Contents[0].Role)
	assert.Equal(t, "model", lastReq.Contents[1].Role)
	assert.Equal(t, "user", lastReq.Contents[2].Role)
}

type capturingClient struct {
	resp *llm.ChatResponse
	last *llm.ChatRequest
}

func (c *capturingClient) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	*c.last = req
	return c.resp, nil
}

func (c *capturingClient) Model() string    { return "test-model" }
func (c *capturingClient) Provider() string { return "test" }

func TestClassifyHonorsAttachedUserMessage(t *testing.T) {
	status, msg := classify(apperrors.WithUserMessage(task.ErrStorage, "❌ Ledger unavailable"))
	assert.Equal(t, "storage", status)
	assert.Equal(t, "❌ Ledger unavailable", msg)

	status, msg = classify(task.ErrStorage)
	assert.Equal(t, "storage", status)
	assert.Equal(t, MsgDatabase, msg)
}
