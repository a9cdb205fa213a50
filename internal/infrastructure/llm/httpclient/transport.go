// Package httpclient holds the JSON-over-HTTP plumbing shared by the
// completion backends.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

const maxErrorBody = 4096

// NewClient returns the client a backend shares across calls. timeout only
// bounds the wait for response headers; request bodies and streamed
// responses are bounded by the caller's context.
func NewClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}

// Do posts payload as JSON and returns the open response for 2xx statuses.
// The caller owns the body. Non-2xx responses are drained and returned as
// *domain.ProviderError.
func Do(
	ctx context.Context,
	client *http.Client,
	provider domain.ProviderType,
	operation string,
	url string,
	headers map[string]string,
	payload any,
) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s %s request: %w", provider, operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s %s request: %w", provider, operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s request: %w", provider, operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, DecodeError(provider, operation, resp)
	}
	return resp, nil
}

// PostJSON is Do followed by decoding the body into out.
func PostJSON(
	ctx context.Context,
	client *http.Client,
	provider domain.ProviderType,
	operation string,
	url string,
	headers map[string]string,
	payload any,
	out any,
) error {
	resp, err := Do(ctx, client, provider, operation, url, headers, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", provider, operation, err)
	}
	return nil
}

// DecodeError extracts the vendor message from {"error":{"message":...}}
// bodies and falls back to the raw body text.
func DecodeError(provider domain.ProviderType, operation string, resp *http.Response) *domain.ProviderError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := strings.TrimSpace(string(raw))

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Error) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &detail); err == nil && detail.Message != "" {
			message = detail.Message
		} else {
			var text string
			if err := json.Unmarshal(envelope.Error, &text); err == nil && text != "" {
				message = text
			}
		}
	}
	if message == "" {
		message = resp.Status
	}

	return &domain.ProviderError{
		Provider:   provider,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}
