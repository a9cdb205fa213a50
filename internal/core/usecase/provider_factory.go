package usecase

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/ports"
)

// ProviderStatus is the health view of one configured backend.
type ProviderStatus struct {
	Type      domain.ProviderType `json:"type"`
	Available bool                `json:"available"`
	Primary   bool                `json:"primary"`
}

// ProviderFactory picks a completion backend. The primary is tried first
// and a failed call is retried once on the secondary; the pair is fixed at
// construction.
type ProviderFactory struct {
	primary   ports.CompletionProvider
	secondary ports.CompletionProvider
	onFallback func(from, to domain.ProviderType)
}

func NewProviderFactory(primary, secondary ports.CompletionProvider) *ProviderFactory {
	return &ProviderFactory{primary: primary, secondary: secondary}
}

// OnFallback registers a hook invoked when a call moves from the primary to
// the secondary. It must be set before the factory is shared.
func (f *ProviderFactory) OnFallback(hook func(from, to domain.ProviderType)) {
	f.onFallback = hook
}

func (f *ProviderFactory) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	primaryUp := available(f.primary)
	secondaryUp := available(f.secondary)

	if !primaryUp && !secondaryUp {
		return nil, domain.WrapError(domain.ErrNoProviderAvailable, "complete", fmt.Errorf("no provider has credentials configured"))
	}
	if !primaryUp {
		return f.secondary.Complete(ctx, req)
	}

	resp, err := f.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if !secondaryUp || ctx.Err() != nil {
		return nil, err
	}

	slog.Warn("provider_fallback",
		"from", f.primary.Name(),
		"to", f.secondary.Name(),
		"error", err,
	)
	if f.onFallback != nil {
		f.onFallback(f.primary.Name(), f.secondary.Name())
	}

	resp, fallbackErr := f.secondary.Complete(ctx, req)
	if fallbackErr != nil {
		return nil, fmt.Errorf("fallback to %s after %s failed: %w", f.secondary.Name(), f.primary.Name(), fallbackErr)
	}
	return resp, nil
}

// GetProvider returns the preferred available backend.
func (f *ProviderFactory) GetProvider() (ports.CompletionProvider, error) {
	if available(f.primary) {
		return f.primary, nil
	}
	if available(f.secondary) {
		return f.secondary, nil
	}
	return nil, domain.WrapError(domain.ErrNoProviderAvailable, "get provider", fmt.Errorf("no provider has credentials configured"))
}

// StreamComplete streams from the preferred backend. Streams never fail
// over mid-flight.
func (f *ProviderFactory) StreamComplete(ctx context.Context, req domain.CompletionRequest) iter.Seq2[domain.StreamChunk, error] {
	provider, err := f.GetProvider()
	if err != nil {
		return func(yield func(domain.StreamChunk, error) bool) {
			yield(domain.StreamChunk{}, err)
		}
	}
	return provider.StreamComplete(ctx, req)
}

func (f *ProviderFactory) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var firstAvailable ports.CompletionProvider
	for _, provider := range f.ordered() {
		if !available(provider) {
			continue
		}
		if provider.SupportsEmbeddings() {
			return provider.EmbedText(ctx, text)
		}
		if firstAvailable == nil {
			firstAvailable = provider
		}
	}
	if firstAvailable != nil {
		return firstAvailable.EmbedText(ctx, text)
	}
	return nil, domain.WrapError(domain.ErrNoProviderAvailable, "embed text", fmt.Errorf("no provider has credentials configured"))
}

func (f *ProviderFactory) Providers() []ProviderStatus {
	out := make([]ProviderStatus, 0, 2)
	for _, provider := range f.ordered() {
		out = append(out, ProviderStatus{
			Type:      provider.Name(),
			Available: provider.IsAvailable(),
			Primary:   provider == f.primary,
		})
	}
	return out
}

func (f *ProviderFactory) ordered() []ports.CompletionProvider {
	out := make([]ports.CompletionProvider, 0, 2)
	if f.primary != nil {
		out = append(out, f.primary)
	}
	if f.secondary != nil {
		out = append(out, f.secondary)
	}
	return out
}

func available(provider ports.CompletionProvider) bool {
	return provider != nil && provider.IsAvailable()
}
