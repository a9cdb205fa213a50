package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

// placeholderUserText opens a transcript that would otherwise not start
// with a user turn.
const placeholderUserText = "(continuing conversation)"

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type wireMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      wireUsage      `json:"usage"`
}

// convertMessages folds system entries into one system string and produces
// a strictly alternating user/assistant transcript that opens with a user
// turn. Tool results travel as tool_result blocks inside user turns.
func convertMessages(systemPrompt string, messages []domain.Message) (string, []wireMessage) {
	systemParts := make([]string, 0, 2)
	if text := strings.TrimSpace(systemPrompt); text != "" {
		systemParts = append(systemParts, text)
	}

	out := make([]wireMessage, 0, len(messages)+1)
	for _, msg := range messages {
		var (
			role   string
			blocks []contentBlock
		)
		switch msg.Role {
		case domain.RoleSystem:
			if text := strings.TrimSpace(msg.Content); text != "" {
				systemParts = append(systemParts, text)
			}
			continue
		case domain.RoleUser:
			role = "user"
			blocks = textBlocks(msg.Content)
		case domain.RoleAssistant:
			role = "assistant"
			blocks = textBlocks(msg.Content)
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, toolUseBlock(call))
			}
		case domain.RoleTool:
			role = "user"
			blocks = []contentBlock{{
				Type:      "tool_result",
				ToolUseID: msg.ToolCallID,
				Content:   msg.Content,
				IsError:   isErrorPayload(msg.Content),
			}}
		default:
			continue
		}
		if len(blocks) == 0 {
			continue
		}

		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			continue
		}
		out = append(out, wireMessage{Role: role, Content: blocks})
	}

	if len(out) == 0 || out[0].Role != "user" {
		out = append([]wireMessage{{Role: "user", Content: textBlocks(placeholderUserText)}}, out...)
	}

	return strings.Join(systemParts, "\n\n"), out
}

func textBlocks(text string) []contentBlock {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []contentBlock{{Type: "text", Text: text}}
}

func toolUseBlock(call domain.ToolCall) contentBlock {
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	input, err := json.Marshal(args)
	if err != nil {
		input = []byte("{}")
	}
	return contentBlock{Type: "tool_use", ID: call.ID, Name: call.Name, Input: input}
}

func isErrorPayload(content string) bool {
	var payload map[string]any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return false
	}
	_, hasError := payload["error"]
	return hasError && len(payload) == 1
}
