package anthropic

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
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-sonnet-4-5"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

type Options struct {
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Executor  *resilience.Executor
}

// Client is the completion backend for the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
	timeout    time.Duration
	executor   *resilience.Executor
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
	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		maxTokens:  maxTokens,
		httpClient: httpclient.NewClient(timeout),
		timeout:    timeout,
		executor:   options.Executor,
	}
}

func (c *Client) Name() domain.ProviderType {
	return domain.ProviderAnthropic
}

func (c *Client) IsAvailable() bool {
	return c.apiKey != ""
}

func (c *Client) SupportsEmbeddings() bool {
	return false
}

func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	payload := c.buildRequest(req, false)

	resp, err := resilience.Call(ctx, c.executor, "anthropic.complete", func(callCtx context.Context) (*messagesResponse, error) {
		callCtx, cancel := context.WithTimeout(callCtx, c.timeout)
		defer cancel()
		var out messagesResponse
		if err := httpclient.PostJSON(callCtx, c.httpClient, domain.ProviderAnthropic, "complete", c.baseURL+"/v1/messages", c.headers(), payload, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}, resilience.ClassifyUpstreamError)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("anthropic complete", err)
	}
	return c.toCompletionResponse(resp, payload.Model), nil
}

// EmbedText is not offered by the Messages API.
func (c *Client) EmbedText(context.Context, string) ([]float32, error) {
	return nil, domain.WrapError(domain.ErrUnsupportedOperation, "anthropic embed", fmt.Errorf("anthropic has no embeddings endpoint"))
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": apiVersion,
	}
}

func (c *Client) buildRequest(req domain.CompletionRequest, stream bool) messagesRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	system, messages := convertMessages(req.SystemPrompt, req.Messages)

	payload := messagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    messages,
		Temperature: req.Temperature,
		Stream:      stream,
	}
	for _, tool := range req.Tools {
		payload.Tools = append(payload.Tools, wireTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaOrEmpty(tool.Parameters),
		})
	}
	return payload
}

func (c *Client) toCompletionResponse(resp *messagesResponse, requestedModel string) *domain.CompletionResponse {
	out := &domain.CompletionResponse{
		FinishReason: mapStopReason(resp.StopReason),
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		Provider: domain.ProviderAnthropic,
		Model:    resp.Model,
	}
	if out.Model == "" {
		out.Model = requestedModel
	}

	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, parseToolInput(block.ID, block.Name, block.Input))
		}
	}
	out.Content = text.String()
	if len(out.ToolCalls) > 0 {
		out.FinishReason = domain.FinishReasonToolCalls
	}
	return out
}

func parseToolInput(id, name string, raw []byte) domain.ToolCall {
	call := domain.ToolCall{ID: id, Name: name, Arguments: map[string]any{}}
	trimmed := strings.TrimSpace(string(raw))
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

func mapStopReason(reason string) domain.FinishReason {
	switch reason {
	case "tool_use":
		return domain.FinishReasonToolCalls
	case "max_tokens":
		return domain.FinishReasonLength
	case "refusal":
		return domain.FinishReasonContentFilter
	default:
		return domain.FinishReasonStop
	}
}

func schemaOrEmpty(schema map[string]any) map[string]any {
	if len(schema) == 0 {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return schema
}
