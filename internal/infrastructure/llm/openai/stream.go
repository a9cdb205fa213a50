package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"slices"
	"strings"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/llm/httpclient"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/llm/sse"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/resilience"
)

const doneSentinel = "[DONE]"

type streamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *wireUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type toolAccumulator struct {
	index int
	id    string
	name  string
	args  strings.Builder
}

// StreamComplete streams a chat completion. Nothing is sent until the first
// pull; the response body is closed when iteration ends for any reason.
func (c *Client) StreamComplete(ctx context.Context, req domain.CompletionRequest) iter.Seq2[domain.StreamChunk, error] {
	return func(yield func(domain.StreamChunk, error) bool) {
		payload := c.buildRequest(req, true)

		resp, err := resilience.Call(ctx, c.executor, "openai.stream", func(callCtx context.Context) (*http.Response, error) {
			return httpclient.Do(callCtx, c.httpClient, domain.ProviderOpenAI, "stream", c.baseURL+"/chat/completions", c.headers(), payload)
		}, resilience.ClassifyUpstreamError)
		if err != nil {
			yield(domain.StreamChunk{}, resilience.WrapTemporaryIfNeeded("openai stream", err))
			return
		}
		defer resp.Body.Close()

		state := &streamState{
			model:     payload.Model,
			byIndex:   make(map[int]string),
			toolsByID: make(map[string]*toolAccumulator),
		}
		reader := sse.NewReader(resp.Body)
		for {
			event, err := reader.Next()
			if errors.Is(err, io.EOF) {
				if state.finishReason != "" {
					yield(state.done(), nil)
					return
				}
				yield(domain.StreamChunk{}, fmt.Errorf("openai stream: %w", io.ErrUnexpectedEOF))
				return
			}
			if err != nil {
				yield(domain.StreamChunk{}, fmt.Errorf("openai stream read: %w", err))
				return
			}

			data := strings.TrimSpace(event.Data)
			if data == "" {
				continue
			}
			if data == doneSentinel {
				for _, chunk := range state.flush() {
					if !yield(chunk, nil) {
						return
					}
				}
				yield(state.done(), nil)
				return
			}

			chunks, err := state.handle(data)
			if err != nil {
				yield(domain.StreamChunk{}, err)
				return
			}
			for _, chunk := range chunks {
				if !yield(chunk, nil) {
					return
				}
			}
		}
	}
}

type streamState struct {
	model        string
	byIndex      map[int]string
	toolsByID    map[string]*toolAccumulator
	finishReason string
	usage        domain.Usage
}

func (s *streamState) handle(data string) ([]domain.StreamChunk, error) {
	var chunk streamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return nil, fmt.Errorf("decode openai stream chunk: %w", err)
	}
	if chunk.Error != nil {
		return nil, &domain.ProviderError{
			Provider:   domain.ProviderOpenAI,
			Operation:  "stream",
			StatusCode: http.StatusInternalServerError,
			Message:    chunk.Error.Message,
		}
	}
	if chunk.Model != "" {
		s.model = chunk.Model
	}
	if chunk.Usage != nil {
		s.usage = domain.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}

	var out []domain.StreamChunk
	for _, choice := range chunk.Choices {
		if choice.Delta.Content != "" {
			out = append(out, s.chunk(domain.StreamChunk{Content: choice.Delta.Content}))
		}
		for _, call := range choice.Delta.ToolCalls {
			index := 0
			if call.Index != nil {
				index = *call.Index
			}
			if call.ID != "" {
				s.byIndex[index] = call.ID
				s.toolsByID[call.ID] = &toolAccumulator{index: index, id: call.ID, name: call.Function.Name}
			}
			acc, ok := s.toolsByID[s.byIndex[index]]
			if !ok {
				continue
			}
			if acc.name == "" {
				acc.name = call.Function.Name
			}
			acc.args.WriteString(call.Function.Arguments)
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			s.finishReason = *choice.FinishReason
			out = append(out, s.flush()...)
		}
	}
	return out, nil
}

// flush closes every open accumulator in index order.
func (s *streamState) flush() []domain.StreamChunk {
	if len(s.toolsByID) == 0 {
		return nil
	}
	open := make([]*toolAccumulator, 0, len(s.toolsByID))
	for _, acc := range s.toolsByID {
		open = append(open, acc)
	}
	slices.SortFunc(open, func(a, b *toolAccumulator) int { return a.index - b.index })

	out := make([]domain.StreamChunk, 0, len(open))
	for _, acc := range open {
		call := parseArguments(acc.id, acc.name, acc.args.String())
		out = append(out, s.chunk(domain.StreamChunk{ToolCall: &call}))
	}
	clear(s.toolsByID)
	clear(s.byIndex)
	return out
}

func (s *streamState) done() domain.StreamChunk {
	usage := s.usage
	return s.chunk(domain.StreamChunk{
		FinishReason: mapFinishReason(s.finishReason),
		Usage:        &usage,
		Done:         true,
	})
}

func (s *streamState) chunk(c domain.StreamChunk) domain.StreamChunk {
	c.Provider = domain.ProviderOpenAI
	c.Model = s.model
	return c
}
