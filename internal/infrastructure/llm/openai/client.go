package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/llm/httpclient"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultModel          = "gpt-4o"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

type Options struct {
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
	Executor       *resilience.Executor
}

// Client is the completion backend for the OpenAI chat completions API.
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	embeddingModel string
	httpClient     *http.Client
	timeout        time.Duration
	executor       *resilience.Executor
}

func New(apiKey string, options Options) *Client {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := options.Model
	if model == "" {
		model = DefaultModel
	}
	embeddingModel := options.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:         strings.TrimSpace(apiKey),
		baseURL:        strings.TrimRight(baseURL, "/"),
		model:          model,
		embeddingModel: embeddingModel,
		httpClient:     httpclient.NewClient(timeout),
		timeout:        timeout,
		executor:       options.Executor,
	}
}

func (c *Client) Name() domain.ProviderType {
	return domain.ProviderOpenAI
}

func (c *Client) IsAvailable() bool {
	return c.apiKey != ""
}

func (c *Client) SupportsEmbeddings() bool {
	return true
}

func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	payload := c.buildRequest(req, false)

	resp, err := resilience.Call(ctx, c.executor, "openai.complete", func(callCtx context.Context) (*chatResponse, error) {
		callCtx, cancel := context.WithTimeout(callCtx, c.timeout)
		defer cancel()
		var out chatResponse
		if err := httpclient.PostJSON(callCtx, c.httpClient, domain.ProviderOpenAI, "complete", c.baseURL+"/chat/completions", c.headers(), payload, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}, resilience.ClassifyUpstreamError)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("openai complete", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai complete: response has no choices")
	}

	choice := resp.Choices[0]
	out := &domain.CompletionResponse{
		FinishReason: mapFinishReason(choice.FinishReason),
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Provider: domain.ProviderOpenAI,
		Model:    resp.Model,
	}
	if out.Model == "" {
		out.Model = payload.Model
	}
	if choice.Message.Content != nil {
		out.Content = *choice.Message.Content
	}
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, parseArguments(call.ID, call.Function.Name, call.Function.Arguments))
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = domain.FinishReasonToolCalls
	}
	return out, nil
}

func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "openai embed", fmt.Errorf("text is empty"))
	}
	payload := embeddingsRequest{Model: c.embeddingModel, Input: text}

	resp, err := resilience.Call(ctx, c.executor, "openai.embed", func(callCtx context.Context) (*embeddingsResponse, error) {
		callCtx, cancel := context.WithTimeout(callCtx, c.timeout)
		defer cancel()
		var out embeddingsResponse
		if err := httpclient.PostJSON(callCtx, c.httpClient, domain.ProviderOpenAI, "embed", c.baseURL+"/embeddings", c.headers(), payload, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}, resilience.ClassifyUpstreamError)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("openai embed", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embed: empty embedding result")
	}
	return resp.Data[0].Embedding, nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

func (c *Client) buildRequest(req domain.CompletionRequest, stream bool) chatRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	payload := chatRequest{
		Model:       model,
		Messages:    convertMessages(req.SystemPrompt, req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if stream {
		payload.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	for _, tool := range req.Tools {
		params := tool.Parameters
		if len(params) == 0 {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		payload.Tools = append(payload.Tools, wireTool{
			Type: "function",
			Function: wireToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return payload
}

func parseArguments(id, name, raw string) domain.ToolCall {
	call := domain.ToolCall{ID: id, Name: name, Arguments: map[string]any{}}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return call
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		call.ParseError = fmt.Sprintf("invalid tool arguments: %v", err)
		return call
	}
	if args != nil {
		call.Arguments = args
	}
	return call
}

func mapFinishReason(reason string) domain.FinishReason {
	switch reason {
	case "tool_calls", "function_call":
		return domain.FinishReasonToolCalls
	case "length":
		return domain.FinishReasonLength
	case "content_filter":
		return domain.FinishReasonContentFilter
	default:
		return domain.FinishReasonStop
	}
}
