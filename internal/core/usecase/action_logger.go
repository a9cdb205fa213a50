package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/ports"
)

const systemDecider = "system"

// ActionStart describes an action about to call the model.
type ActionStart struct {
	Module          string
	ActionType      string
	AutomationLevel domain.AutomationLevel
	Prompt          string
	Context         map[string]any
}

// ActionResult is what the model produced for a started action.
type ActionResult struct {
	Output    domain.ActionOutput
	Usage     domain.Usage
	LatencyMs int64
	Provider  domain.ProviderType
	Model     string
}

// ActionLogger records the audit trail of model-backed actions. Entries are
// created pending, receive one response and at most one terminal decision.
type ActionLogger struct {
	store  ports.ActionLogStore
	events ports.ActionEventPublisher
	now    func() time.Time
}

// NewActionLogger falls back to the in-memory store when store is nil; events
// may be nil.
func NewActionLogger(store ports.ActionLogStore, events ports.ActionEventPublisher) *ActionLogger {
	if store == nil {
		store = NewMemoryActionLogStore()
	}
	return &ActionLogger{
		store:  store,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *ActionLogger) StartAction(ctx context.Context, start ActionStart) (string, error) {
	if strings.TrimSpace(start.Module) == "" || strings.TrimSpace(start.ActionType) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "start action", fmt.Errorf("module and action type are required"))
	}
	level := start.AutomationLevel
	if !level.Valid() {
		level = domain.AutomationManual
	}

	entry := &domain.ActionLogEntry{
		Module:          start.Module,
		ActionType:      start.ActionType,
		AutomationLevel: level,
		Input:           domain.ActionInput{Prompt: start.Prompt, Context: start.Context},
		HumanDecision:   domain.DecisionPending,
		CreatedAt:       l.now(),
	}
	id, err := l.store.Create(ctx, entry)
	if err != nil {
		return "", fmt.Errorf("create action log entry: %w", err)
	}

	l.publish(ctx, domain.ActionEvent{
		Type:            domain.ActionEventStarted,
		ActionID:        id,
		Module:          entry.Module,
		ActionType:      entry.ActionType,
		AutomationLevel: level,
		OccurredAt:      entry.CreatedAt,
	})
	return id, nil
}

func (l *ActionLogger) RecordResponse(ctx context.Context, logID string, result ActionResult) error {
	if strings.TrimSpace(logID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record response", fmt.Errorf("log id is required"))
	}
	entry, err := l.store.Update(ctx, logID, domain.ActionLogUpdate{
		Response: &domain.ActionResponsePatch{
			Output:      result.Output,
			TokensUsed:  result.Usage.TotalTokens,
			LatencyMs:   result.LatencyMs,
			Provider:    string(result.Provider),
			Model:       result.Model,
			RespondedAt: l.now(),
		},
	})
	if err != nil {
		return fmt.Errorf("record action response: %w", err)
	}

	l.publish(ctx, domain.ActionEvent{
		Type:            domain.ActionEventResponded,
		ActionID:        logID,
		Module:          entry.Module,
		ActionType:      entry.ActionType,
		AutomationLevel: entry.AutomationLevel,
		TokensUsed:      result.Usage.TotalTokens,
		Failed:          result.Output.Error != "",
		OccurredAt:      l.now(),
	})
	return nil
}

func (l *ActionLogger) RecordDecision(
	ctx context.Context,
	logID string,
	decision domain.HumanDecision,
	modifiedContent string,
	decidedBy string,
) (*domain.ActionLogEntry, error) {
	if strings.TrimSpace(logID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "record decision", fmt.Errorf("log id is required"))
	}
	if !decision.Terminal() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "record decision", fmt.Errorf("decision %q is not terminal", decision))
	}
	if decision == domain.DecisionModified && strings.TrimSpace(modifiedContent) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "record decision", fmt.Errorf("modified decision requires content"))
	}

	entry, err := l.store.Update(ctx, logID, domain.ActionLogUpdate{
		Decision: &domain.ActionDecisionPatch{
			Decision:        decision,
			ModifiedContent: modifiedContent,
			DecidedBy:       decidedBy,
			DecidedAt:       l.now(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("record action decision: %w", err)
	}

	l.publish(ctx, domain.ActionEvent{
		Type:            domain.ActionEventDecided,
		ActionID:        logID,
		Module:          entry.Module,
		ActionType:      entry.ActionType,
		AutomationLevel: entry.AutomationLevel,
		Decision:        decision,
		OccurredAt:      l.now(),
	})
	return entry, nil
}

// Run wraps one model call in the action lifecycle. Audit failures are
// logged and never fail the call; a failed call is still recorded before
// its error is returned.
func (l *ActionLogger) Run(
	ctx context.Context,
	start ActionStart,
	fn func(context.Context) (*domain.CompletionResponse, error),
) (*domain.CompletionResponse, string, error) {
	logID, err := l.StartAction(ctx, start)
	if err != nil {
		slog.Error("action_log_failed", "stage", "start", "module", start.Module, "action_type", start.ActionType, "error", err)
		logID = ""
	}

	started := time.Now()
	resp, callErr := fn(ctx)
	latency := time.Since(started).Milliseconds()

	if logID != "" {
		result := ActionResult{}
		if callErr != nil {
			result.Output = domain.ActionOutput{Error: callErr.Error()}
		} else {
			result = ActionResult{
				Output:    domain.ActionOutput{Response: resp.Content, ToolCalls: resp.ToolCalls},
				Usage:     resp.Usage,
				LatencyMs: latency,
				Provider:  resp.Provider,
				Model:     resp.Model,
			}
		}
		if err := l.RecordResponse(ctx, logID, result); err != nil {
			slog.Error("action_log_failed", "stage", "response", "log_id", logID, "error", err)
		}
	}
	if callErr != nil {
		return nil, logID, callErr
	}

	if logID != "" && start.AutomationLevel == domain.AutomationFullyAuto {
		if _, err := l.RecordDecision(ctx, logID, domain.DecisionAutoExecuted, "", systemDecider); err != nil {
			slog.Error("action_log_failed", "stage", "auto_execute", "log_id", logID, "error", err)
		}
	}
	return resp, logID, nil
}

func (l *ActionLogger) ListActions(ctx context.Context, filter domain.ActionFilter) ([]domain.ActionLogEntry, error) {
	if filter.Decision != "" && filter.Decision != domain.DecisionPending && !filter.Decision.Terminal() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list actions", fmt.Errorf("unknown decision %q", filter.Decision))
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	entries, err := l.store.FindMany(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return entries, nil
}

func (l *ActionLogger) publish(ctx context.Context, event domain.ActionEvent) {
	if l.events == nil {
		return
	}
	if err := l.events.PublishActionEvent(ctx, event); err != nil {
		slog.Warn("action_event_publish_failed", "type", event.Type, "action_id", event.ActionID, "error", err)
	}
}
