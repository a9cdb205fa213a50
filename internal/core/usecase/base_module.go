package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

// Completer is the slice of ProviderFactory the modules and the Steward need.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error)
}

// BaseModule carries what every domain module shares: its prompt, the
// completion backends, the audit logger and the automation policy.
type BaseModule struct {
	name             string
	systemPrompt     string
	suggestedPrompts []string
	completer        Completer
	actions          *ActionLogger
	automation       domain.AutomationConfig
}

func NewBaseModule(
	name string,
	systemPrompt string,
	suggestedPrompts []string,
	completer Completer,
	actions *ActionLogger,
	automation domain.AutomationConfig,
) *BaseModule {
	if automation == nil {
		automation = domain.DefaultAutomationConfig()
	}
	return &BaseModule{
		name:             name,
		systemPrompt:     systemPrompt,
		suggestedPrompts: suggestedPrompts,
		completer:        completer,
		actions:          actions,
		automation:       automation,
	}
}

func (m *BaseModule) Name() string {
	return m.name
}

func (m *BaseModule) SystemPrompt() string {
	return m.systemPrompt
}

func (m *BaseModule) SuggestedPrompts() []string {
	return append([]string(nil), m.suggestedPrompts...)
}

func (m *BaseModule) AutomationLevel(actionType string) domain.AutomationLevel {
	return domain.GetAutomationLevel(m.automation, m.name, actionType)
}

// ExecuteWithLogging runs one audited completion for actionType and maps
// the response with transform. The module prompt applies when req has none.
func ExecuteWithLogging[T any](
	ctx context.Context,
	m *BaseModule,
	mctx domain.ModuleContext,
	actionType string,
	req domain.CompletionRequest,
	transform func(*domain.CompletionResponse) (T, error),
) (*domain.ModuleResult[T], error) {
	if transform == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, m.name+"."+actionType, fmt.Errorf("transform is required"))
	}
	level := m.AutomationLevel(actionType)
	if strings.TrimSpace(req.SystemPrompt) == "" {
		req.SystemPrompt = m.systemPrompt
	}

	start := ActionStart{
		Module:          m.name,
		ActionType:      actionType,
		AutomationLevel: level,
		Prompt:          lastUserContent(req.Messages),
		Context:         moduleContextMap(mctx),
	}
	resp, logID, err := m.actions.Run(ctx, start, func(callCtx context.Context) (*domain.CompletionResponse, error) {
		return m.completer.Complete(callCtx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", m.name, actionType, err)
	}

	data, err := transform(resp)
	if err != nil {
		return nil, fmt.Errorf("%s.%s transform: %w", m.name, actionType, err)
	}
	return &domain.ModuleResult[T]{
		Data:             data,
		LogID:            logID,
		RequiresApproval: level.RequiresApproval(),
		AutomationLevel:  level,
	}, nil
}

// TextResult is the identity transform for free-text actions.
func TextResult(resp *domain.CompletionResponse) (string, error) {
	return strings.TrimSpace(resp.Content), nil
}

func lastUserContent(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func moduleContextMap(mctx domain.ModuleContext) map[string]any {
	out := make(map[string]any, 3)
	if mctx.ContextType != "" {
		out["contextType"] = mctx.ContextType
	}
	if mctx.ContextID != "" {
		out["contextId"] = mctx.ContextID
	}
	if len(mctx.Metadata) > 0 {
		out["metadata"] = mctx.Metadata
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
