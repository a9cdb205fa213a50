package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

type fakeProvider struct {
	name       domain.ProviderType
	available  bool
	embeddings bool

	mu        sync.Mutex
	responses []*domain.CompletionResponse
	errs      []error
	calls     int
	requests  []domain.CompletionRequest
	embedErr  error
	repeat    *domain.CompletionResponse
}

func (f *fakeProvider) Name() domain.ProviderType { return f.name }
func (f *fakeProvider) IsAvailable() bool         { return f.available }
func (f *fakeProvider) SupportsEmbeddings() bool  { return f.embeddings }

func (f *fakeProvider) Complete(_ context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.repeat != nil {
		copied := *f.repeat
		return &copied, nil
	}
	if len(f.responses) == 0 {
		return &domain.CompletionResponse{Content: "ok", FinishReason: domain.FinishReasonStop, Provider: f.name}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	if resp.Provider == "" {
		resp.Provider = f.name
	}
	return resp, nil
}

func (f *fakeProvider) StreamComplete(context.Context, domain.CompletionRequest) iter.Seq2[domain.StreamChunk, error] {
	return func(yield func(domain.StreamChunk, error) bool) {
		if !yield(domain.StreamChunk{Content: "hello", Provider: f.name}, nil) {
			return
		}
		yield(domain.StreamChunk{Done: true, FinishReason: domain.FinishReasonStop, Provider: f.name}, nil)
	}
}

func (f *fakeProvider) EmbedText(context.Context, string) ([]float32, error) {
	if !f.embeddings {
		return nil, domain.WrapError(domain.ErrUnsupportedOperation, "embed", errors.New("not supported"))
	}
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{1, 2}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeActionStore mirrors the guards of the postgres store.
type fakeActionStore struct {
	mu        sync.Mutex
	seq       int
	entries   map[string]*domain.ActionLogEntry
	order     []string
	createErr error
}

func newFakeActionStore() *fakeActionStore {
	return &fakeActionStore{entries: make(map[string]*domain.ActionLogEntry)}
}

func (s *fakeActionStore) Create(_ context.Context, entry *domain.ActionLogEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return "", s.createErr
	}
	s.seq++
	id := fmt.Sprintf("act-%d", s.seq)
	copied := *entry
	copied.ID = id
	s.entries[id] = &copied
	s.order = append(s.order, id)
	return id, nil
}

func (s *fakeActionStore) Update(_ context.Context, id string, update domain.ActionLogUpdate) (*domain.ActionLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrActionNotFound, "update", fmt.Errorf("id %s", id))
	}
	if update.Response != nil {
		if entry.RespondedAt != nil {
			return nil, domain.WrapError(domain.ErrActionAlreadyResponded, "update", fmt.Errorf("id %s", id))
		}
		output := update.Response.Output
		respondedAt := update.Response.RespondedAt
		entry.Output = &output
		entry.TokensUsed = update.Response.TokensUsed
		entry.LatencyMs = update.Response.LatencyMs
		entry.Provider = update.Response.Provider
		entry.Model = update.Response.Model
		entry.RespondedAt = &respondedAt
	}
	if update.Decision != nil {
		if entry.HumanDecision != domain.DecisionPending {
			return nil, domain.WrapError(domain.ErrDecisionAlreadyRecorded, "update", fmt.Errorf("id %s", id))
		}
		decidedAt := update.Decision.DecidedAt
		entry.HumanDecision = update.Decision.Decision
		entry.ModifiedContent = update.Decision.ModifiedContent
		entry.DecidedBy = update.Decision.DecidedBy
		entry.DecidedAt = &decidedAt
	}
	copied := *entry
	return &copied, nil
}

func (s *fakeActionStore) FindMany(_ context.Context, filter domain.ActionFilter) ([]domain.ActionLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ActionLogEntry, 0, len(s.order))
	for _, id := range s.order {
		entry := s.entries[id]
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
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *fakeActionStore) all() []domain.ActionLogEntry {
	entries, _ := s.FindMany(context.Background(), domain.ActionFilter{})
	return entries
}

type fakeEventPublisher struct {
	mu     sync.Mutex
	events []domain.ActionEvent
	err    error
}

func (p *fakeEventPublisher) PublishActionEvent(_ context.Context, event domain.ActionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type fakeDirectory struct {
	properties []domain.Property
	tenants    []domain.Tenant
	requests   []domain.MaintenanceRequest
	apps       []domain.RentalApplication
	payments   []domain.Payment
}

func (d *fakeDirectory) ListProperties(_ context.Context, filter domain.DirectoryFilter) ([]domain.Property, error) {
	out := make([]domain.Property, 0)
	for _, item := range d.properties {
		if filter.ID != "" && item.ID != filter.ID {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (d *fakeDirectory) ListTenants(_ context.Context, filter domain.DirectoryFilter) ([]domain.Tenant, error) {
	out := make([]domain.Tenant, 0)
	for _, item := range d.tenants {
		if filter.ID != "" && item.ID != filter.ID {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (d *fakeDirectory) ListMaintenanceRequests(_ context.Context, filter domain.DirectoryFilter) ([]domain.MaintenanceRequest, error) {
	out := make([]domain.MaintenanceRequest, 0)
	for _, item := range d.requests {
		if filter.ID != "" && item.ID != filter.ID {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (d *fakeDirectory) ListApplications(_ context.Context, filter domain.DirectoryFilter) ([]domain.RentalApplication, error) {
	out := make([]domain.RentalApplication, 0)
	for _, item := range d.apps {
		if filter.ID != "" && item.ID != filter.ID {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (d *fakeDirectory) ListPayments(_ context.Context, filter domain.DirectoryFilter) ([]domain.Payment, error) {
	out := make([]domain.Payment, 0)
	for _, item := range d.payments {
		if filter.ID != "" && item.ID != filter.ID {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
