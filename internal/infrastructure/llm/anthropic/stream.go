package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/llm/httpclient"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/llm/sse"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/resilience"
)

type streamEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index"`
	Message      *streamMessage  `json:"message,omitempty"`
	ContentBlock *contentBlock   `json:"content_block,omitempty"`
	Delta        json.RawMessage `json:"delta,omitempty"`
	Usage        *wireUsage      `json:"usage,omitempty"`
	Error        *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type streamMessage struct {
	ID    string    `json:"id"`
	Model string    `json:"model"`
	Usage wireUsage `json:"usage"`
}

type streamDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	PartialJSON string `json:"partial_json"`
	StopReason  string `json:"stop_reason"`
}

type toolAccumulator struct {
	id   string
	name string
	args strings.Builder
}

// StreamComplete streams a Messages API completion. The request is sent on
// the first pull and the response body is released when iteration stops.
func (c *Client) StreamComplete(ctx context.Context, req domain.CompletionRequest) iter.Seq2[domain.StreamChunk, error] {
	return func(yield func(domain.StreamChunk, error) bool) {
		payload := c.buildRequest(req, true)

		resp, err := resilience.Call(ctx, c.executor, "anthropic.stream", func(callCtx context.Context) (*http.Response, error) {
			return httpclient.Do(callCtx, c.httpClient, domain.ProviderAnthropic, "stream", c.baseURL+"/v1/messages", c.headers(), payload)
		}, resilience.ClassifyUpstreamError)
		if err != nil {
			yield(domain.StreamChunk{}, resilience.WrapTemporaryIfNeeded("anthropic stream", err))
			return
		}
		defer resp.Body.Close()

		state := &streamState{
			model:      payload.Model,
			byIndex:    make(map[int]string),
			toolsByID:  make(map[string]*toolAccumulator),
			stopReason: "",
		}
		reader := sse.NewReader(resp.Body)
		for {
			event, err := reader.Next()
			if errors.Is(err, io.EOF) {
				yield(domain.StreamChunk{}, fmt.Errorf("anthropic stream: %w", io.ErrUnexpectedEOF))
				return
			}
			if err != nil {
				yield(domain.StreamChunk{}, fmt.Errorf("anthropic stream read: %w", err))
				return
			}
			if strings.TrimSpace(event.Data) == "" {
				continue
			}

			chunks, done, err := state.handle(event.Data)
			if err != nil {
				yield(domain.StreamChunk{}, err)
				return
			}
			for _, chunk := range chunks {
				if !yield(chunk, nil) {
					return
				}
			}
			if done {
				return
			}
		}
	}
}

type streamState struct {
	model        string
	byIndex      map[int]string
	toolsByID    map[string]*toolAccumulator
	inputTokens  int
	outputTokens int
	stopReason   string
}

func (s *streamState) handle(data string) ([]domain.StreamChunk, bool, error) {
	var event streamEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, false, fmt.Errorf("decode anthropic stream event: %w", err)
	}

	switch event.Type {
	case "message_start":
		if event.Message != nil {
			if event.Message.Model != "" {
				s.model = event.Message.Model
			}
			s.inputTokens = event.Message.Usage.InputTokens
			s.outputTokens = event.Message.Usage.OutputTokens
		}
	case "content_block_start":
		if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
			id := event.ContentBlock.ID
			s.byIndex[event.Index] = id
			s.toolsByID[id] = &toolAccumulator{id: id, name: event.ContentBlock.Name}
		}
		if event.ContentBlock != nil && event.ContentBlock.Type == "text" && event.ContentBlock.Text != "" {
			return []domain.StreamChunk{s.chunk(domain.StreamChunk{Content: event.ContentBlock.Text})}, false, nil
		}
	case "content_block_delta":
		var delta streamDelta
		if err := json.Unmarshal(event.Delta, &delta); err != nil {
			return nil, false, fmt.Errorf("decode anthropic content delta: %w", err)
		}
		switch delta.Type {
		case "text_delta":
			if delta.Text != "" {
				return []domain.StreamChunk{s.chunk(domain.StreamChunk{Content: delta.Text})}, false, nil
			}
		case "input_json_delta":
			if acc, ok := s.toolsByID[s.byIndex[event.Index]]; ok {
				acc.args.WriteString(delta.PartialJSON)
			}
		}
	case "content_block_stop":
		id, ok := s.byIndex[event.Index]
		if !ok {
			return nil, false, nil
		}
		acc := s.toolsByID[id]
		delete(s.byIndex, event.Index)
		delete(s.toolsByID, id)
		call := parseToolInput(acc.id, acc.name, []byte(acc.args.String()))
		return []domain.StreamChunk{s.chunk(domain.StreamChunk{ToolCall: &call})}, false, nil
	case "message_delta":
		var delta streamDelta
		if len(event.Delta) > 0 {
			if err := json.Unmarshal(event.Delta, &delta); err != nil {
				return nil, false, fmt.Errorf("decode anthropic message delta: %w", err)
			}
		}
		if delta.StopReason != "" {
			s.stopReason = delta.StopReason
		}
		if event.Usage != nil {
			s.outputTokens = event.Usage.OutputTokens
		}
	case "message_stop":
		usage := domain.Usage{
			PromptTokens:     s.inputTokens,
			CompletionTokens: s.outputTokens,
			TotalTokens:      s.inputTokens + s.outputTokens,
		}
		return []domain.StreamChunk{s.chunk(domain.StreamChunk{
			FinishReason: mapStopReason(s.stopReason),
			Usage:        &usage,
			Done:         true,
		})}, true, nil
	case "error":
		message := "stream error"
		if event.Error != nil && event.Error.Message != "" {
			message = event.Error.Message
		}
		return nil, false, &domain.ProviderError{
			Provider:   domain.ProviderAnthropic,
			Operation:  "stream",
			StatusCode: streamErrorStatus(event),
			Message:    message,
		}
	}
	return nil, false, nil
}

func (s *streamState) chunk(c domain.StreamChunk) domain.StreamChunk {
	c.Provider = domain.ProviderAnthropic
	c.Model = s.model
	return c
}

func streamErrorStatus(event streamEvent) int {
	if event.Error == nil {
		return http.StatusInternalServerError
	}
	switch event.Error.Type {
	case "overloaded_error":
		return 529
	case "rate_limit_error":
		return http.StatusTooManyRequests
	case "invalid_request_error":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
