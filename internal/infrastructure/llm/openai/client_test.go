package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

func TestCompleteKeepsSystemMessagesSeparate(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Fatalf("unexpected authorization header: %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"model":"gpt-test","choices":[{"message":{"content":"Done."},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`))
	}))
	defer server.Close()

	client := New("key", Options{BaseURL: server.URL})
	resp, err := client.Complete(context.Background(), domain.CompletionRequest{
		SystemPrompt: "You are Steward.",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "Module: maintenance."},
			{Role: domain.RoleUser, Content: "list open requests"},
			{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "call_1", Name: "get_maintenance_requests", Arguments: map[string]any{"status": "open"}}}},
			{Role: domain.RoleTool, ToolCallID: "call_1", Content: `[]`},
		},
		Tools: []domain.ToolDefinition{{Name: "get_maintenance_requests", Description: "List requests"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	roles := make([]string, 0, len(captured.Messages))
	for _, msg := range captured.Messages {
		roles = append(roles, msg.Role)
	}
	if got := strings.Join(roles, ","); got != "system,system,user,assistant,tool" {
		t.Fatalf("unexpected roles: %s", got)
	}
	assistant := captured.Messages[3]
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].Function.Arguments != `{"status":"open"}` {
		t.Fatalf("expected string arguments on assistant tool call, got %+v", assistant.ToolCalls)
	}
	if captured.Messages[4].ToolCallID != "call_1" {
		t.Fatalf("tool message lost its call id: %+v", captured.Messages[4])
	}
	if len(captured.Tools) != 1 || captured.Tools[0].Type != "function" || captured.Tools[0].Function.Parameters["type"] != "object" {
		t.Fatalf("unexpected tools payload: %+v", captured.Tools)
	}

	if resp.Content != "Done." || resp.Usage.TotalTokens != 10 || resp.Model != "gpt-test" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCompleteSurfacesMalformedArguments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":null,"tool_calls":[{"id":"call_x","type":"function","function":{"name":"navigate","arguments":"{not json"}}]},"finish_reason":"tool_calls"}]}`))
	}))
	defer server.Close()

	client := New("key", Options{BaseURL: server.URL})
	resp, err := client.Complete(context.Background(), domain.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ParseError == "" {
		t.Fatalf("expected surfaced call with parse error, got %+v", resp.ToolCalls)
	}
	if resp.FinishReason != domain.FinishReasonToolCalls {
		t.Fatalf("unexpected finish reason: %s", resp.FinishReason)
	}
}

func TestCompleteReturnsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer server.Close()

	client := New("key", Options{BaseURL: server.URL})
	_, err := client.Complete(context.Background(), domain.CompletionRequest{})
	providerErr, ok := domain.AsProviderError(err)
	if !ok {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.StatusCode != http.StatusTooManyRequests || providerErr.Message != "Rate limit reached" {
		t.Fatalf("unexpected provider error: %+v", providerErr)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("429 should be classified temporary, got %v", err)
	}
}

func TestEmbedText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req embeddingsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Input != "late rent" || req.Model != DefaultEmbeddingModel {
			t.Fatalf("unexpected embeddings request: %+v", req)
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	client := New("key", Options{BaseURL: server.URL})
	vector, err := client.EmbedText(context.Background(), "late rent")
	if err != nil {
		t.Fatalf("EmbedText() error = %v", err)
	}
	if len(vector) != 3 {
		t.Fatalf("unexpected vector: %v", vector)
	}
}

func TestStreamCompleteAccumulatesToolCalls(t *testing.T) {
	lines := []string{
		`{"model":"gpt-test","choices":[{"index":0,"delta":{"content":"Checking"},"finish_reason":null}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"navigate","arguments":""}}]},"finish_reason":null}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"get_tenants","arguments":"{\"sta"}}]},"finish_reason":null}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"tus\":\"active\"}"}}]},"finish_reason":null}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"function":{"arguments":"{\"path\":\"/tenants\"}"}}]},"finish_reason":null}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`{"choices":[],"usage":{"prompt_tokens":11,"completion_tokens":9,"total_tokens":20}}`,
		`[DONE]`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", line)
		}
	}))
	defer server.Close()

	client := New("key", Options{BaseURL: server.URL})
	var (
		calls  []domain.ToolCall
		text   string
		last   domain.StreamChunk
		chunks int
	)
	for chunk, err := range client.StreamComplete(context.Background(), domain.CompletionRequest{}) {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		chunks++
		text += chunk.Content
		if chunk.ToolCall != nil {
			calls = append(calls, *chunk.ToolCall)
		}
		last = chunk
	}

	if text != "Checking" {
		t.Fatalf("unexpected text: %q", text)
	}
	if len(calls) != 2 || calls[0].ID != "call_a" || calls[1].ID != "call_b" {
		t.Fatalf("expected calls in index order, got %+v", calls)
	}
	if calls[0].Arguments["status"] != "active" || calls[1].Arguments["path"] != "/tenants" {
		t.Fatalf("unexpected arguments: %+v", calls)
	}
	if !last.Done || last.FinishReason != domain.FinishReasonToolCalls || last.Usage.TotalTokens != 20 {
		t.Fatalf("unexpected terminal chunk: %+v", last)
	}
	if chunks != 4 {
		t.Fatalf("expected 4 chunks, got %d", chunks)
	}
}

func TestStreamCompleteStopsEarly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 3; i++ {
			_, _ = fmt.Fprintf(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"part%d\"}}]}\n\n", i)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := New("key", Options{BaseURL: server.URL})
	seen := 0
	for chunk, err := range client.StreamComplete(context.Background(), domain.CompletionRequest{}) {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		seen++
		if chunk.Content == "part0" {
			break
		}
	}
	if seen != 1 {
		t.Fatalf("expected iteration to stop after first chunk, saw %d", seen)
	}
}

func TestCompleteHonoursTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	client := New("key", Options{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	if _, err := client.Complete(context.Background(), domain.CompletionRequest{}); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestStreamOutlivesProviderTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		for i := 0; i < 4; i++ {
			time.Sleep(25 * time.Millisecond)
			_, _ = fmt.Fprintf(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"p%d\"}}]}\n\n", i)
			flusher.Flush()
		}
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := New("key", Options{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	var (
		text strings.Builder
		done bool
	)
	for chunk, err := range client.StreamComplete(context.Background(), domain.CompletionRequest{}) {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		text.WriteString(chunk.Content)
		done = done || chunk.Done
	}
	if text.String() != "p0p1p2p3" || !done {
		t.Fatalf("expected complete stream, got %q done=%v", text.String(), done)
	}
}
