package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

func TestProviderFactoryFallsBackOnce(t *testing.T) {
	primary := &fakeProvider{
		name:      domain.ProviderAnthropic,
		available: true,
		errs:      []error{&domain.ProviderError{Provider: domain.ProviderAnthropic, StatusCode: http.StatusServiceUnavailable, Message: "overloaded"}},
	}
	secondary := &fakeProvider{name: domain.ProviderOpenAI, available: true}

	var fallbacks []string
	factory := NewProviderFactory(primary, secondary)
	factory.OnFallback(func(from, to domain.ProviderType) {
		fallbacks = append(fallbacks, string(from)+"->"+string(to))
	})

	resp, err := factory.Complete(context.Background(), domain.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Provider != domain.ProviderOpenAI {
		t.Fatalf("expected secondary to serve, got %s", resp.Provider)
	}
	if primary.callCount() != 1 || secondary.callCount() != 1 {
		t.Fatalf("expected one call each, got primary=%d secondary=%d", primary.callCount(), secondary.callCount())
	}
	if len(fallbacks) != 1 || fallbacks[0] != "anthropic->openai" {
		t.Fatalf("unexpected fallback hook calls: %v", fallbacks)
	}
}

func TestProviderFactoryPropagatesSecondaryError(t *testing.T) {
	primaryErr := errors.New("primary down")
	secondaryErr := &domain.ProviderError{Provider: domain.ProviderOpenAI, StatusCode: http.StatusBadRequest, Message: "bad request"}
	primary := &fakeProvider{name: domain.ProviderAnthropic, available: true, errs: []error{primaryErr}}
	secondary := &fakeProvider{name: domain.ProviderOpenAI, available: true, errs: []error{secondaryErr}}

	_, err := NewProviderFactory(primary, secondary).Complete(context.Background(), domain.CompletionRequest{})
	if err == nil {
		t.Fatalf("expected error")
	}
	providerErr, ok := domain.AsProviderError(err)
	if !ok || providerErr.Provider != domain.ProviderOpenAI {
		t.Fatalf("expected secondary ProviderError, got %v", err)
	}
	if primary.callCount()+secondary.callCount() != 2 {
		t.Fatalf("expected exactly two upstream calls, got %d", primary.callCount()+secondary.callCount())
	}
}

func TestProviderFactoryUsesSecondaryWhenPrimaryUnavailable(t *testing.T) {
	primary := &fakeProvider{name: domain.ProviderAnthropic, available: false}
	secondary := &fakeProvider{name: domain.ProviderOpenAI, available: true}

	factory := NewProviderFactory(primary, secondary)
	if _, err := factory.Complete(context.Background(), domain.CompletionRequest{}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if primary.callCount() != 0 || secondary.callCount() != 1 {
		t.Fatalf("unexpected calls primary=%d secondary=%d", primary.callCount(), secondary.callCount())
	}

	provider, err := factory.GetProvider()
	if err != nil || provider.Name() != domain.ProviderOpenAI {
		t.Fatalf("GetProvider() = %v, %v", provider, err)
	}
}

func TestProviderFactoryNoProvider(t *testing.T) {
	factory := NewProviderFactory(&fakeProvider{name: domain.ProviderAnthropic}, nil)

	if _, err := factory.Complete(context.Background(), domain.CompletionRequest{}); !errors.Is(err, domain.ErrNoProviderAvailable) {
		t.Fatalf("expected ErrNoProviderAvailable, got %v", err)
	}
	if _, err := factory.GetProvider(); !errors.Is(err, domain.ErrNoProviderAvailable) {
		t.Fatalf("expected ErrNoProviderAvailable, got %v", err)
	}
	var streamErr error
	for _, err := range factory.StreamComplete(context.Background(), domain.CompletionRequest{}) {
		streamErr = err
	}
	if !errors.Is(streamErr, domain.ErrNoProviderAvailable) {
		t.Fatalf("expected stream to surface ErrNoProviderAvailable, got %v", streamErr)
	}
}

func TestProviderFactoryNoRetryWithoutSecondary(t *testing.T) {
	primary := &fakeProvider{name: domain.ProviderAnthropic, available: true, errs: []error{errors.New("boom")}}

	_, err := NewProviderFactory(primary, nil).Complete(context.Background(), domain.CompletionRequest{})
	if err == nil || primary.callCount() != 1 {
		t.Fatalf("expected single failed call, got err=%v calls=%d", err, primary.callCount())
	}
}

func TestProviderFactoryEmbedPrefersCapableProvider(t *testing.T) {
	primary := &fakeProvider{name: domain.ProviderAnthropic, available: true}
	secondary := &fakeProvider{name: domain.ProviderOpenAI, available: true, embeddings: true}

	vector, err := NewProviderFactory(primary, secondary).EmbedText(context.Background(), "hello")
	if err != nil || len(vector) != 2 {
		t.Fatalf("EmbedText() = %v, %v", vector, err)
	}

	onlyAnthropic := NewProviderFactory(primary, &fakeProvider{name: domain.ProviderOpenAI, available: false, embeddings: true})
	if _, err := onlyAnthropic.EmbedText(context.Background(), "hello"); !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
}

func TestProviderFactoryProviders(t *testing.T) {
	factory := NewProviderFactory(
		&fakeProvider{name: domain.ProviderOpenAI, available: true},
		&fakeProvider{name: domain.ProviderAnthropic, available: false},
	)
	statuses := factory.Providers()
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Primary || statuses[0].Type != domain.ProviderOpenAI || !statuses[0].Available {
		t.Fatalf("unexpected primary status: %+v", statuses[0])
	}
	if statuses[1].Primary || statuses[1].Available {
		t.Fatalf("unexpected secondary status: %+v", statuses[1])
	}
}

func TestProviderFactoryProvidersWithoutPrimary(t *testing.T) {
	factory := NewProviderFactory(nil, &fakeProvider{name: domain.ProviderAnthropic, available: true})
	statuses := factory.Providers()
	if len(statuses) != 1 || statuses[0].Type != domain.ProviderAnthropic {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
	if statuses[0].Primary {
		t.Fatalf("secondary must not be reported as primary: %+v", statuses[0])
	}
}

func TestProviderFactoryStreamsFromPreferred(t *testing.T) {
	factory := NewProviderFactory(
		&fakeProvider{name: domain.ProviderAnthropic, available: false},
		&fakeProvider{name: domain.ProviderOpenAI, available: true},
	)
	var last domain.StreamChunk
	for chunk, err := range factory.StreamComplete(context.Background(), domain.CompletionRequest{}) {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		last = chunk
	}
	if !last.Done || last.Provider != domain.ProviderOpenAI {
		t.Fatalf("unexpected final chunk: %+v", last)
	}
}
