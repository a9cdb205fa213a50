package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

const (
	ActionDraftMessage  = "draftMessage"
	ActionSendMessage   = "sendMessage"
	ActionTriageRequest = "triageRequest"
	ActionChat          = "chat"
	ActionNavigate      = "navigate"
)

type CommunicationsModule struct {
	*BaseModule
}

func NewCommunicationsModule(completer Completer, actions *ActionLogger, automation domain.AutomationConfig) *CommunicationsModule {
	return &CommunicationsModule{BaseModule: NewBaseModule(
		domain.ModuleCommunications,
		"You help a property manager write clear, courteous messages to tenants. "+
			"Use the draft_message tool to prepare drafts; never claim a message was sent.",
		[]string{
			"Remind tenants with late rent",
			"Draft a lease renewal notice",
			"Announce upcoming maintenance",
		},
		completer, actions, automation,
	)}
}

type DraftMessageInput struct {
	TenantName   string `json:"tenantName"`
	PropertyName string `json:"propertyName,omitempty"`
	Purpose      string `json:"purpose"`
	Tone         string `json:"tone,omitempty"`
	Details      string `json:"details,omitempty"`
}

type MessageDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (m *CommunicationsModule) DraftMessage(ctx context.Context, in DraftMessageInput, mctx domain.ModuleContext) (*domain.ModuleResult[MessageDraft], error) {
	if strings.TrimSpace(in.Purpose) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "draft message", fmt.Errorf("purpose is required"))
	}
	tone := in.Tone
	if tone == "" {
		tone = "friendly"
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Draft a %s message to %s about: %s.\n", tone, orDefault(in.TenantName, "the tenant"), in.Purpose)
	if in.PropertyName != "" {
		fmt.Fprintf(&prompt, "Property: %s\n", in.PropertyName)
	}
	if in.Details != "" {
		fmt.Fprintf(&prompt, "Details: %s\n", in.Details)
	}
	prompt.WriteString(`Reply with JSON only: {"subject": "...", "body": "..."}`)

	return ExecuteWithLogging(ctx, m.BaseModule, mctx, ActionDraftMessage, domain.CompletionRequest{
		Messages:    []domain.Message{{Role: domain.RoleUser, Content: prompt.String()}},
		Temperature: domain.Float64Ptr(0.4),
	}, parseMessageDraft)
}

func parseMessageDraft(resp *domain.CompletionResponse) (MessageDraft, error) {
	var draft MessageDraft
	if err := json.Unmarshal([]byte(extractJSONObject(resp.Content)), &draft); err != nil || strings.TrimSpace(draft.Body) == "" {
		return MessageDraft{Body: strings.TrimSpace(resp.Content)}, nil
	}
	return draft, nil
}

type MaintenanceModule struct {
	*BaseModule
}

func NewMaintenanceModule(completer Completer, actions *ActionLogger, automation domain.AutomationConfig) *MaintenanceModule {
	return &MaintenanceModule{BaseModule: NewBaseModule(
		domain.ModuleMaintenance,
		"You triage maintenance requests for a property manager. "+
			"Classify the issue, judge its urgency and suggest the kind of vendor needed.",
		[]string{
			"Show open maintenance requests",
			"Which requests are urgent?",
			"Triage the newest request",
		},
		completer, actions, automation,
	)}
}

type TriageInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	PropertyName string `json:"propertyName,omitempty"`
	Unit         string `json:"unit,omitempty"`
}

type TriageResult struct {
	Category      string `json:"category"`
	Priority      string `json:"priority"`
	Summary       string `json:"summary"`
	VendorType    string `json:"vendorType,omitempty"`
	TenantCanFix  bool   `json:"tenantCanFix"`
	SafetyConcern bool   `json:"safetyConcern"`
}

var triagePriorities = map[string]bool{"emergency": true, "high": true, "medium": true, "low": true}

func (m *MaintenanceModule) TriageRequest(ctx context.Context, in TriageInput, mctx domain.ModuleContext) (*domain.ModuleResult[TriageResult], error) {
	if strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.Description) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "triage request", fmt.Errorf("title or description is required"))
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Maintenance request: %s\n", in.Title)
	if in.Description != "" {
		fmt.Fprintf(&prompt, "Description: %s\n", in.Description)
	}
	if in.PropertyName != "" || in.Unit != "" {
		fmt.Fprintf(&prompt, "Location: %s %s\n", in.PropertyName, in.Unit)
	}
	prompt.WriteString(`Reply with JSON only: {"category": "plumbing|electrical|hvac|appliance|structural|pest|other", ` +
		`"priority": "emergency|high|medium|low", "summary": "...", "vendorType": "...", "tenantCanFix": false, "safetyConcern": false}`)

	return ExecuteWithLogging(ctx, m.BaseModule, mctx, ActionTriageRequest, domain.CompletionRequest{
		Messages:    []domain.Message{{Role: domain.RoleUser, Content: prompt.String()}},
		Temperature: domain.Float64Ptr(0.1),
	}, parseTriage)
}

func parseTriage(resp *domain.CompletionResponse) (TriageResult, error) {
	var result TriageResult
	if err := json.Unmarshal([]byte(extractJSONObject(resp.Content)), &result); err != nil {
		return TriageResult{}, fmt.Errorf("parse triage json: %w", err)
	}
	result.Priority = strings.ToLower(strings.TrimSpace(result.Priority))
	if !triagePriorities[result.Priority] {
		result.Priority = "medium"
	}
	if result.SafetyConcern && result.Priority != "emergency" {
		result.Priority = "high"
	}
	result.Category = strings.ToLower(strings.TrimSpace(result.Category))
	if result.Category == "" {
		result.Category = "other"
	}
	return result, nil
}

// NewLeasingModule and NewAccountingModule only contribute prompts to the
// Steward; their actions run through ExecuteWithLogging when added.
func NewLeasingModule(completer Completer, actions *ActionLogger, automation domain.AutomationConfig) *BaseModule {
	return NewBaseModule(
		domain.ModuleLeasing,
		"You help a property manager with leasing: screening applications, drafting leases and renewal offers. "+
			"Recommendations about applicants must rely only on the application data provided.",
		[]string{
			"Show pending applications",
			"Which leases end in the next 60 days?",
			"Draft a renewal offer",
		},
		completer, actions, automation,
	)
}

func NewAccountingModule(completer Completer, actions *ActionLogger, automation domain.AutomationConfig) *BaseModule {
	return NewBaseModule(
		domain.ModuleAccounting,
		"You help a property manager with rent collection and bookkeeping. "+
			"Amounts are in cents in tool results; present them in dollars.",
		[]string{
			"Who is late on rent?",
			"Summarize this month's payments",
			"Send a payment reminder",
		},
		completer, actions, automation,
	)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
