package ports

import (
	"context"
	"iter"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

// CompletionProvider is one language-model backend.
type CompletionProvider interface {
	Name() domain.ProviderType
	// IsAvailable reports whether credentials are configured.
	IsAvailable() bool
	SupportsEmbeddings() bool
	Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error)
	// StreamComplete is lazy: nothing is sent until the first pull. The
	// sequence ends with a Done chunk or an error.
	StreamComplete(ctx context.Context, req domain.CompletionRequest) iter.Seq2[domain.StreamChunk, error]
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ActionLogStore persists action log entries. Update enforces the
// single-response and single-decision guards.
type ActionLogStore interface {
	Create(ctx context.Context, entry *domain.ActionLogEntry) (string, error)
	Update(ctx context.Context, id string, update domain.ActionLogUpdate) (*domain.ActionLogEntry, error)
	FindMany(ctx context.Context, filter domain.ActionFilter) ([]domain.ActionLogEntry, error)
}

// ActionEventPublisher fans out action lifecycle events.
type ActionEventPublisher interface {
	PublishActionEvent(ctx context.Context, event domain.ActionEvent) error
}

// ActionEventSubscriber consumes action lifecycle events until ctx is done.
type ActionEventSubscriber interface {
	SubscribeActionEvents(ctx context.Context, handler func(context.Context, domain.ActionEvent) error) error
}

// PropertyDirectory is the read-only view of the property-management data.
type PropertyDirectory interface {
	ListProperties(ctx context.Context, filter domain.DirectoryFilter) ([]domain.Property, error)
	ListTenants(ctx context.Context, filter domain.DirectoryFilter) ([]domain.Tenant, error)
	ListMaintenanceRequests(ctx context.Context, filter domain.DirectoryFilter) ([]domain.MaintenanceRequest, error)
	ListApplications(ctx context.Context, filter domain.DirectoryFilter) ([]domain.RentalApplication, error)
	ListPayments(ctx context.Context, filter domain.DirectoryFilter) ([]domain.Payment, error)
}

// PromptModule is a domain module the Steward can route a conversation to.
type PromptModule interface {
	Name() string
	SystemPrompt() string
	SuggestedPrompts() []string
}
