package domain

import "time"

type StewardState string

const (
	StewardIdle      StewardState = "idle"
	StewardThinking  StewardState = "thinking"
	StewardSpeaking  StewardState = "speaking"
	StewardListening StewardState = "listening"
)

// Conversation is owned by the Steward's in-memory table.
type Conversation struct {
	ID          string       `json:"id"`
	Messages    []Message    `json:"messages"`
	Module      string       `json:"module,omitempty"`
	ContextType string       `json:"context_type,omitempty"`
	ContextID   string       `json:"context_id,omitempty"`
	State       StewardState `json:"state"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type ChatContext struct {
	Module      string         `json:"module,omitempty"`
	ContextType string         `json:"contextType,omitempty"`
	ContextID   string         `json:"contextId,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type ChatRequest struct {
	Message        string       `json:"message"`
	ConversationID string       `json:"conversationId,omitempty"`
	Context        *ChatContext `json:"context,omitempty"`
}

type ClientAction struct {
	Type  string         `json:"type"`
	Label string         `json:"label"`
	Data  map[string]any `json:"data,omitempty"`
}

type ChatResponse struct {
	Message          string         `json:"message"`
	ConversationID   string         `json:"conversationId"`
	Suggestions      []string       `json:"suggestions,omitempty"`
	Actions          []ClientAction `json:"actions,omitempty"`
	Module           string         `json:"module,omitempty"`
	RequiresApproval bool           `json:"requiresApproval,omitempty"`
}

// ModuleContext describes what a module action is about; it is recorded with
// the action log entry.
type ModuleContext struct {
	ContextType string         `json:"context_type,omitempty"`
	ContextID   string         `json:"context_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type ModuleResult[T any] struct {
	Data             T               `json:"data"`
	LogID            string          `json:"log_id"`
	RequiresApproval bool            `json:"requires_approval"`
	AutomationLevel  AutomationLevel `json:"automation_level"`
}
