package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

const defaultActionListLimit = 50

// MemoryActionLogStore is used when no database is configured. Entries live
// for the life of the process, ids are prefixed with "mock-" and every write
// also reaches the structured log. It enforces the same response and
// decision guards as the postgres store.
type MemoryActionLogStore struct {
	mu      sync.Mutex
	entries map[string]*domain.ActionLogEntry
	order   []string
}

func NewMemoryActionLogStore() *MemoryActionLogStore {
	return &MemoryActionLogStore{entries: make(map[string]*domain.ActionLogEntry)}
}

func (s *MemoryActionLogStore) Create(_ context.Context, entry *domain.ActionLogEntry) (string, error) {
	id := "mock-" + uuid.NewString()
	entry.ID = id
	if entry.HumanDecision == "" {
		entry.HumanDecision = domain.DecisionPending
	}

	stored := *entry
	s.mu.Lock()
	s.entries[id] = &stored
	s.order = append(s.order, id)
	s.mu.Unlock()

	slog.Info("action_logged",
		"log_id", id,
		"module", entry.Module,
		"action_type", entry.ActionType,
		"automation_level", entry.AutomationLevel,
	)
	return id, nil
}

func (s *MemoryActionLogStore) Update(_ context.Context, id string, update domain.ActionLogUpdate) (*domain.ActionLogEntry, error) {
	if (update.Response == nil) == (update.Decision == nil) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update action log", fmt.Errorf("exactly one of response or decision is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrActionNotFound, "update action log", fmt.Errorf("id %s", id))
	}

	if patch := update.Response; patch != nil {
		if entry.RespondedAt != nil {
			return nil, domain.WrapError(domain.ErrActionAlreadyResponded, "record response", fmt.Errorf("id %s", id))
		}
		output := patch.Output
		respondedAt := patch.RespondedAt
		entry.Output = &output
		entry.TokensUsed = patch.TokensUsed
		entry.LatencyMs = patch.LatencyMs
		entry.Provider = patch.Provider
		entry.Model = patch.Model
		entry.RespondedAt = &respondedAt
		slog.Info("action_response_logged", "log_id", id, "tokens_used", entry.TokensUsed, "latency_ms", entry.LatencyMs)
	}

	if patch := update.Decision; patch != nil {
		if entry.HumanDecision != domain.DecisionPending {
			return nil, domain.WrapError(domain.ErrDecisionAlreadyRecorded, "record decision", fmt.Errorf("id %s", id))
		}
		decidedAt := patch.DecidedAt
		entry.HumanDecision = patch.Decision
		entry.ModifiedContent = patch.ModifiedContent
		entry.DecidedBy = patch.DecidedBy
		entry.DecidedAt = &decidedAt
		slog.Info("action_decision_logged", "log_id", id, "decision", entry.HumanDecision, "decided_by", entry.DecidedBy)
	}

	copied := *entry
	return &copied, nil
}

// FindMany returns the newest entries first, matching the postgres store.
func (s *MemoryActionLogStore) FindMany(ctx context.Context, filter domain.ActionFilter) ([]domain.ActionLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultActionListLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ActionLogEntry, 0)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		entry := s.entries[s.order[i]]
		if filter.Module != "" && entry.Module != filter.Module {
			continue
		}
		if filter.ActionType != "" && entry.ActionType != filter.ActionType {
			continue
		}
		if filter.Decision != "" && entry.HumanDecision != filter.Decision {
			continue
		}
		out = append(out, *entry)
	}
	return out, nil
}
