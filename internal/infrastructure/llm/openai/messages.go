package openai

import (
	"encoding/json"
	"strings"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []wireMessage  `json:"messages"`
	Tools         []wireTool     `json:"tools,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	Index    *int         `json:"index,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string           `json:"type"`
	Function wireToolFunction `json:"function"`
}

type wireToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   *string        `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage wireUsage `json:"usage"`
}

type embeddingsRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// convertMessages keeps the system prompt and every system message as their
// own system entries. Tool results travel as tool messages carrying the id
// of the call they answer.
func convertMessages(systemPrompt string, messages []domain.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages)+1)
	if text := strings.TrimSpace(systemPrompt); text != "" {
		out = append(out, wireMessage{Role: "system", Content: stringPtr(text)})
	}
	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem, domain.RoleUser:
			out = append(out, wireMessage{Role: string(msg.Role), Content: stringPtr(msg.Content), Name: msg.Name})
		case domain.RoleAssistant:
			wire := wireMessage{Role: "assistant"}
			if msg.Content != "" || len(msg.ToolCalls) == 0 {
				wire.Content = stringPtr(msg.Content)
			}
			for _, call := range msg.ToolCalls {
				wire.ToolCalls = append(wire.ToolCalls, wireToolCall{
					ID:       call.ID,
					Type:     "function",
					Function: wireFunction{Name: call.Name, Arguments: encodeArguments(call.Arguments)},
				})
			}
			out = append(out, wire)
		case domain.RoleTool:
			out = append(out, wireMessage{Role: "tool", Content: stringPtr(msg.Content), ToolCallID: msg.ToolCallID})
		}
	}
	return out
}

func encodeArguments(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func stringPtr(s string) *string {
	return &s
}
