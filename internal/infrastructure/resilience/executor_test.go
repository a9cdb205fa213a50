package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

func TestExecuteRetriesRetryableProviderError(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	err := exec.Execute(context.Background(), "anthropic.complete", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &domain.ProviderError{Provider: domain.ProviderAnthropic, Operation: "complete", StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryClientError(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		BreakerEnabled:      false,
	})

	attempts := 0
	badRequest := &domain.ProviderError{Provider: domain.ProviderOpenAI, Operation: "complete", StatusCode: http.StatusBadRequest, Message: "bad tool schema"}
	err := exec.Execute(context.Background(), "openai.complete", func(context.Context) error {
		attempts++
		return badRequest
	}, nil)
	if !errors.Is(err, badRequest) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestDefaultConfigMakesSingleAttempt(t *testing.T) {
	exec := NewExecutor(Config{BreakerEnabled: false})

	attempts := 0
	_ = exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return &domain.ProviderError{StatusCode: http.StatusTooManyRequests}
	}, nil)
	if attempts != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	var transitions []string
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
		OnStateChange: func(operation, from, to string) {
			transitions = append(transitions, operation+":"+from+"->"+to)
		},
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if exec.State("op") != gobreaker.StateOpen.String() {
		t.Fatalf("expected open state, got %s", exec.State("op"))
	}
	if len(transitions) != 1 || transitions[0] != "op:closed->open" {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
}

func TestCallReturnsValue(t *testing.T) {
	exec := NewExecutor(DefaultConfig())
	got, err := Call(context.Background(), exec, "op", func(context.Context) (int, error) {
		return 42, nil
	}, nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestWrapTemporaryIfNeededKeepsProviderError(t *testing.T) {
	err := WrapTemporaryIfNeeded("openai complete", &domain.ProviderError{Provider: domain.ProviderOpenAI, StatusCode: http.StatusBadGateway})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
	if _, ok := domain.AsProviderError(err); !ok {
		t.Fatalf("expected provider error to remain reachable, got %v", err)
	}

	permanent := &domain.ProviderError{StatusCode: http.StatusUnauthorized}
	if WrapTemporaryIfNeeded("op", permanent) != error(permanent) {
		t.Fatalf("expected permanent error returned unchanged")
	}
}
