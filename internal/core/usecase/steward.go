package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/ports"
)

const DefaultMaxToolSteps = 5

const stewardSystemPrompt = "You are Steward, the assistant inside a property management application. " +
	"Answer questions about properties, tenants, maintenance, applications and payments using the tools provided. " +
	"Prefer looking data up over guessing. Drafted messages are reviewed by the manager before anything is sent."

var stewardSuggestions = []string{
	"What needs my attention today?",
	"Show open maintenance requests",
	"Who is late on rent?",
}

const (
	ClientActionNavigate    = "navigate"
	ClientActionSendMessage = "send_message"
)

// StewardObserver receives run and tool outcomes, e.g. for metrics.
type StewardObserver interface {
	ObserveRun(module string, steps int, outcome string)
	ObserveToolCall(tool string, failed bool)
}

type StewardOptions struct {
	MaxToolSteps int
	Automation   domain.AutomationConfig
	Observer     StewardObserver
}

// Steward drives the chat loop: model call, tool execution, repeat until the
// model answers without tools or the step bound is hit.
type Steward struct {
	completer  Completer
	tools      *ToolRegistry
	actions    *ActionLogger
	modules    map[string]ports.PromptModule
	automation domain.AutomationConfig
	maxSteps   int
	observer   StewardObserver
	now        func() time.Time

	mu            sync.RWMutex
	conversations map[string]*conversationEntry
}

// conversationEntry serializes chats on one conversation with run while
// mu guards the snapshot read by GetConversation.
type conversationEntry struct {
	run  sync.Mutex
	mu   sync.RWMutex
	conv domain.Conversation
}

func NewSteward(
	completer Completer,
	tools *ToolRegistry,
	actions *ActionLogger,
	modules []ports.PromptModule,
	opts StewardOptions,
) *Steward {
	if opts.MaxToolSteps <= 0 {
		opts.MaxToolSteps = DefaultMaxToolSteps
	}
	if opts.Automation == nil {
		opts.Automation = domain.DefaultAutomationConfig()
	}
	if actions == nil {
		actions = NewActionLogger(nil, nil)
	}
	byName := make(map[string]ports.PromptModule, len(modules))
	for _, module := range modules {
		byName[module.Name()] = module
	}
	return &Steward{
		completer:     completer,
		tools:         tools,
		actions:       actions,
		modules:       byName,
		automation:    opts.Automation,
		maxSteps:      opts.MaxToolSteps,
		observer:      opts.Observer,
		now:           func() time.Time { return time.Now().UTC() },
		conversations: make(map[string]*conversationEntry),
	}
}

func (s *Steward) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "steward chat", fmt.Errorf("message is required"))
	}

	moduleName := domain.ModuleSteward
	if req.Context != nil && strings.TrimSpace(req.Context.Module) != "" {
		moduleName = strings.TrimSpace(req.Context.Module)
	}
	systemPrompt := stewardSystemPrompt
	suggestions := stewardSuggestions
	if module, ok := s.modules[moduleName]; ok {
		systemPrompt = module.SystemPrompt()
		suggestions = module.SuggestedPrompts()
	}

	entry := s.conversation(req.ConversationID)
	entry.run.Lock()
	defer entry.run.Unlock()

	s.mutate(entry, func(conv *domain.Conversation) {
		conv.State = domain.StewardThinking
		if req.Context != nil {
			conv.Module = moduleName
			conv.ContextType = req.Context.ContextType
			conv.ContextID = req.Context.ContextID
		}
		conv.Messages = append(conv.Messages, domain.Message{Role: domain.RoleUser, Content: text})
	})
	defer s.mutate(entry, func(conv *domain.Conversation) { conv.State = domain.StewardIdle })

	conversationID := entry.conv.ID
	definitions := s.tools.Definitions()
	var actions []domain.ClientAction

	for step := 1; step <= s.maxSteps; step++ {
		completion := domain.CompletionRequest{
			Messages:     s.snapshotMessages(entry),
			Tools:        definitions,
			SystemPrompt: systemPrompt,
		}
		start := ActionStart{
			Module:          moduleName,
			ActionType:      ActionChat,
			AutomationLevel: domain.AutomationSuggest,
			Prompt:          text,
			Context:         chatContextMap(conversationID, step, req.Context),
		}

		resp, _, err := s.actions.Run(ctx, start, func(callCtx context.Context) (*domain.CompletionResponse, error) {
			return s.completer.Complete(callCtx, completion)
		})
		if err != nil {
			s.observe(moduleName, step, "error")
			return nil, fmt.Errorf("steward chat step %d: %w", step, err)
		}

		if len(resp.ToolCalls) == 0 {
			s.mutate(entry, func(conv *domain.Conversation) {
				conv.Messages = append(conv.Messages, domain.Message{Role: domain.RoleAssistant, Content: resp.Content})
			})
			s.observe(moduleName, step, "answered")
			return &domain.ChatResponse{
				Message:          resp.Content,
				ConversationID:   conversationID,
				Suggestions:      suggestions,
				Actions:          actions,
				Module:           moduleName,
				RequiresApproval: s.requiresApproval(actions),
			}, nil
		}

		calls := make([]domain.ToolCall, len(resp.ToolCalls))
		for i, call := range resp.ToolCalls {
			if strings.TrimSpace(call.ID) == "" {
				call.ID = "call_" + uuid.NewString()
			}
			calls[i] = call
		}

		results := make([]domain.Message, 0, len(calls))
		for _, call := range calls {
			content, action := s.runTool(ctx, call)
			results = append(results, domain.Message{
				Role:       domain.RoleTool,
				Name:       call.Name,
				ToolCallID: call.ID,
				Content:    content,
			})
			if action != nil {
				actions = append(actions, *action)
			}
		}
		s.mutate(entry, func(conv *domain.Conversation) {
			conv.Messages = append(conv.Messages, domain.Message{Role: domain.RoleAssistant, Content: resp.Content, ToolCalls: calls})
			conv.Messages = append(conv.Messages, results...)
		})
	}

	s.observe(moduleName, s.maxSteps, "loop_exceeded")
	return nil, domain.WrapError(domain.ErrToolLoopExceeded, "steward chat",
		fmt.Errorf("no final answer after %d model calls", s.maxSteps))
}

// runTool executes one call and returns the tool message content plus the
// client action it implies, if any. Failures become {"error": ...} content.
func (s *Steward) runTool(ctx context.Context, call domain.ToolCall) (string, *domain.ClientAction) {
	if call.ParseError != "" {
		s.observeTool(call.Name, true)
		return errorContent(call.ParseError), nil
	}

	result, err := s.tools.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		slog.Warn("tool_call_failed", "tool", call.Name, "tool_call_id", call.ID, "error", err)
		s.observeTool(call.Name, true)
		return errorContent(err.Error()), nil
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		s.observeTool(call.Name, true)
		return errorContent(fmt.Sprintf("encode tool result: %v", err)), nil
	}
	s.observeTool(call.Name, false)
	return string(encoded), deriveClientAction(call.Name, result)
}

func deriveClientAction(tool string, result any) *domain.ClientAction {
	fields, ok := result.(map[string]any)
	if !ok {
		return nil
	}
	if _, failed := fields["error"]; failed {
		return nil
	}
	switch tool {
	case ToolNavigate:
		path, _ := fields["path"].(string)
		label, _ := fields["label"].(string)
		return &domain.ClientAction{
			Type:  ClientActionNavigate,
			Label: label,
			Data:  map[string]any{"path": path},
		}
	case ToolDraftMessage:
		recipient, _ := fields["recipient"].(string)
		return &domain.ClientAction{
			Type:  ClientActionSendMessage,
			Label: "Send message to " + recipient,
			Data: map[string]any{
				"subject":   fields["subject"],
				"body":      fields["body"],
				"recipient": recipient,
				"purpose":   fields["purpose"],
			},
		}
	default:
		return nil
	}
}

// requiresApproval maps each derived action to the policy entry that governs
// it and reports whether any of them needs a human.
func (s *Steward) requiresApproval(actions []domain.ClientAction) bool {
	for _, action := range actions {
		var level domain.AutomationLevel
		switch action.Type {
		case ClientActionNavigate:
			level = domain.GetAutomationLevel(s.automation, domain.ModuleSteward, ActionNavigate)
		case ClientActionSendMessage:
			level = domain.GetAutomationLevel(s.automation, domain.ModuleCommunications, ActionSendMessage)
		default:
			level = domain.AutomationManual
		}
		if level.RequiresApproval() {
			return true
		}
	}
	return false
}

func (s *Steward) GetConversation(id string) (*domain.Conversation, error) {
	s.mu.RLock()
	entry, ok := s.conversations[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrConversationNotFound, "get conversation", fmt.Errorf("id %q", id))
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()
	out := entry.conv
	out.Messages = append([]domain.Message(nil), entry.conv.Messages...)
	return &out, nil
}

func (s *Steward) ClearConversation(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return false
	}
	delete(s.conversations, id)
	return true
}

func (s *Steward) ConversationState(id string) (domain.StewardState, bool) {
	conv, err := s.GetConversation(id)
	if err != nil {
		return domain.StewardIdle, false
	}
	return conv.State, true
}

// conversation returns the entry for id, creating it when absent. An empty
// id allocates a fresh one.
func (s *Steward) conversation(id string) *conversationEntry {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.conversations[id]; ok {
		return entry
	}
	now := s.now()
	entry := &conversationEntry{conv: domain.Conversation{
		ID:        id,
		Module:    domain.ModuleSteward,
		State:     domain.StewardIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	s.conversations[id] = entry
	return entry
}

func (s *Steward) mutate(entry *conversationEntry, fn func(*domain.Conversation)) {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	fn(&entry.conv)
	entry.conv.UpdatedAt = s.now()
}

func (s *Steward) snapshotMessages(entry *conversationEntry) []domain.Message {
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return append([]domain.Message(nil), entry.conv.Messages...)
}

func (s *Steward) observe(module string, steps int, outcome string) {
	if s.observer != nil {
		s.observer.ObserveRun(module, steps, outcome)
	}
}

func (s *Steward) observeTool(tool string, failed bool) {
	if s.observer != nil {
		s.observer.ObserveToolCall(tool, failed)
	}
}

func errorContent(message string) string {
	encoded, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return `{"error":"tool failed"}`
	}
	return string(encoded)
}

func chatContextMap(conversationID string, step int, chat *domain.ChatContext) map[string]any {
	out := map[string]any{
		"conversationId": conversationID,
		"step":           step,
	}
	if chat != nil {
		if chat.ContextType != "" {
			out["contextType"] = chat.ContextType
		}
		if chat.ContextID != "" {
			out["contextId"] = chat.ContextID
		}
		if len(chat.Metadata) > 0 {
			out["metadata"] = chat.Metadata
		}
	}
	return out
}
