package metrics

import (
	"context"
	"iter"
	"time"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/ports"
)

// ProviderRecorder is the subset of HTTPServerMetrics used by
// InstrumentedProvider.
type ProviderRecorder interface {
	RecordProviderCall(provider domain.ProviderType, operation, status string, duration time.Duration)
	RecordTokenUsage(provider domain.ProviderType, model string, usage domain.Usage)
}

// InstrumentedProvider records calls, latency and token usage of the wrapped
// provider. Availability checks are passed through unrecorded.
type InstrumentedProvider struct {
	next     ports.CompletionProvider
	recorder ProviderRecorder
}

func InstrumentProvider(next ports.CompletionProvider, recorder ProviderRecorder) ports.CompletionProvider {
	if next == nil || recorder == nil {
		return next
	}
	return &InstrumentedProvider{next: next, recorder: recorder}
}

func (p *InstrumentedProvider) Name() domain.ProviderType { return p.next.Name() }

func (p *InstrumentedProvider) IsAvailable() bool { return p.next.IsAvailable() }

func (p *InstrumentedProvider) SupportsEmbeddings() bool { return p.next.SupportsEmbeddings() }

func (p *InstrumentedProvider) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	start := time.Now()
	resp, err := p.next.Complete(ctx, req)
	p.recorder.RecordProviderCall(p.next.Name(), "complete", callStatus(err), time.Since(start))
	if err == nil && resp != nil {
		p.recorder.RecordTokenUsage(p.next.Name(), resp.Model, resp.Usage)
	}
	return resp, err
}

func (p *InstrumentedProvider) StreamComplete(ctx context.Context, req domain.CompletionRequest) iter.Seq2[domain.StreamChunk, error] {
	return func(yield func(domain.StreamChunk, error) bool) {
		start := time.Now()
		status := "cancelled"
		defer func() {
			p.recorder.RecordProviderCall(p.next.Name(), "stream", status, time.Since(start))
		}()

		for chunk, err := range p.next.StreamComplete(ctx, req) {
			if err != nil {
				status = "error"
				yield(chunk, err)
				return
			}
			if chunk.Done {
				status = "success"
				if chunk.Usage != nil {
					p.recorder.RecordTokenUsage(p.next.Name(), chunk.Model, *chunk.Usage)
				}
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

func (p *InstrumentedProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := p.next.EmbedText(ctx, text)
	p.recorder.RecordProviderCall(p.next.Name(), "embed", callStatus(err), time.Since(start))
	return vector, err
}

func callStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
