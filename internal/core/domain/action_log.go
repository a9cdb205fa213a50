package domain

import "time"

type HumanDecision string

const (
	DecisionPending      HumanDecision = "pending"
	DecisionApproved     HumanDecision = "approved"
	DecisionRejected     HumanDecision = "rejected"
	DecisionModified     HumanDecision = "modified"
	DecisionAutoExecuted HumanDecision = "auto_executed"
)

// Terminal reports whether d is a final human (or automatic) decision.
func (d HumanDecision) Terminal() bool {
	switch d {
	case DecisionApproved, DecisionRejected, DecisionModified, DecisionAutoExecuted:
		return true
	default:
		return false
	}
}

type ActionInput struct {
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context,omitempty"`
}

type ActionOutput struct {
	Response  string     `json:"response"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ActionLogEntry is one audited action. It is created pending, receives the
// model output once and a terminal decision at most once.
type ActionLogEntry struct {
	ID              string          `json:"id"`
	Module          string          `json:"module"`
	ActionType      string          `json:"action_type"`
	AutomationLevel AutomationLevel `json:"automation_level"`
	Input           ActionInput     `json:"input"`
	Output          *ActionOutput   `json:"output,omitempty"`
	HumanDecision   HumanDecision   `json:"human_decision"`
	ModifiedContent string          `json:"modified_content,omitempty"`
	DecidedBy       string          `json:"decided_by,omitempty"`
	TokensUsed      int             `json:"tokens_used"`
	LatencyMs       int64           `json:"latency_ms"`
	Provider        string          `json:"provider,omitempty"`
	Model           string          `json:"model,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	RespondedAt     *time.Time      `json:"responded_at,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
}

// ActionResponsePatch attaches the model output to a pending entry.
type ActionResponsePatch struct {
	Output      ActionOutput
	TokensUsed  int
	LatencyMs   int64
	Provider    string
	Model       string
	RespondedAt time.Time
}

// ActionDecisionPatch attaches the terminal decision.
type ActionDecisionPatch struct {
	Decision        HumanDecision
	ModifiedContent string
	DecidedBy       string
	DecidedAt       time.Time
}

// ActionLogUpdate carries exactly one of Response or Decision.
type ActionLogUpdate struct {
	Response *ActionResponsePatch
	Decision *ActionDecisionPatch
}

type ActionFilter struct {
	Module     string
	ActionType string
	Decision   HumanDecision
	Limit      int
}

type ActionEventType string

const (
	ActionEventStarted   ActionEventType = "started"
	ActionEventResponded ActionEventType = "responded"
	ActionEventDecided   ActionEventType = "decided"
)

type ActionEvent struct {
	Type            ActionEventType `json:"type"`
	ActionID        string          `json:"action_id"`
	Module          string          `json:"module"`
	ActionType      string          `json:"action_type"`
	AutomationLevel AutomationLevel `json:"automation_level"`
	Decision        HumanDecision   `json:"decision,omitempty"`
	TokensUsed      int             `json:"tokens_used,omitempty"`
	Failed          bool            `json:"failed,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
}
