package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*GeminiClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewGeminiClient("gemini-flash-latest", "test-key", server.URL)
	require.NoError(t, err)
	return client, server
}

func TestGeminiChat_TextResponse(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[{"text":"Booked."}]}}],
			"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":3}
		}`))
	})

	resp, err := client.Chat(context.Background(), ChatRequest{
		SystemInstruction: "You are a task assistant.",
		Contents:          []Content{TextContent("user", "Book a meeting")},
		Tools: []FunctionDeclaration{
			{Name: "create_calendar_event", Description: "Creates a calendar event"},
		},
		Options: GenerateOptions{Temperature: 0.4},
	})
	require.NoError(t, err)
	assert.Equal(t, "Booked.", resp.Text)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)

	// 请求体包含 systemInstruction、tools 与 AUTO 模式
	assert.Contains(t, gotBody, "systemInstruction")
	assert.Contains(t, gotBody, "tools")
	toolConfig := gotBody["toolConfig"].(map[string]any)
	fcc := toolConfig["functionCallingConfig"].(map[string]any)
	assert.Equal(t, "AUTO", fcc["mode"])
}

func TestGeminiChat_FunctionCall(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[
				{"functionCall":{"name":"create_calendar_event","args":{"title":"Sync","timeZone":"America/Los_Angeles"}}}
			]}}]
		}`))
	})

	resp, err := client.Chat(context.Background(), ChatRequest{
		Contents: []Content{TextContent("user", "Book it")},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "create_calendar_event", resp.ToolCalls[0].Name)
	assert.Equal(t, "Sync", resp.ToolCalls[0].Args["title"])
}

func TestGeminiChat_HTTPError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
	})

	_, err := client.Chat(context.Background(), ChatRequest{
		Contents: []Content{TextContent("user", "hi")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGeminiChat_EmptyCandidates(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := client.Chat(context.Background(), ChatRequest{
		Contents: []Content{TextContent("user", "hi")},
	})
	assert.Error(t, err)
}

func TestNewGeminiClient_RequiresAPIKey(t *testing.T) {
	_, err := NewGeminiClient("gemini-flash-latest", "", "")
	assert.Error(t, err)
}

func TestMediaContent(t *testing.T) {
	c := MediaContent("user", "audio/ogg", "b64data")
	require.Len(t, c.Parts, 1)
	require.NotNil(t, c.Parts[0].InlineData)
	assert.Equal(t, "audio/ogg", c.Parts[0].InlineData.MIMEType)
}
