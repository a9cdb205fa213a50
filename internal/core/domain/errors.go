package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrTemporary               = errors.New("temporary failure")
	ErrNoProviderAvailable     = errors.New("no completion provider available")
	ErrUnsupportedOperation    = errors.New("unsupported operation")
	ErrToolNotFound            = errors.New("tool not found")
	ErrInvalidToolArguments    = errors.New("invalid tool arguments")
	ErrToolExecution           = errors.New("tool execution failed")
	ErrToolLoopExceeded        = errors.New("tool loop exceeded")
	ErrConversationNotFound    = errors.New("conversation not found")
	ErrActionNotFound          = errors.New("action log entry not found")
	ErrActionAlreadyResponded  = errors.New("action response already recorded")
	ErrDecisionAlreadyRecorded = errors.New("action decision already recorded")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ProviderError is returned by completion backends for non-2xx responses.
type ProviderError struct {
	Provider   ProviderType
	Operation  string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("%s %s status %d", e.Provider, e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s %s status %d: %s", e.Provider, e.Operation, e.StatusCode, msg)
}

func AsProviderError(err error) (*ProviderError, bool) {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr, true
	}
	return nil, false
}
