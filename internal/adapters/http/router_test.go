package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/config"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/usecase"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/observability/metrics"
)

type fakeSteward struct {
	resp    *domain.ChatResponse
	err     error
	lastReq domain.ChatRequest
	convs   map[string]*domain.Conversation
}

func (f *fakeSteward) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func (f *fakeSteward) GetConversation(id string) (*domain.Conversation, error) {
	conv, ok := f.convs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrConversationNotFound, "get conversation", fmt.Errorf("id %q", id))
	}
	return conv, nil
}

func (f *fakeSteward) ClearConversation(id string) bool {
	_, ok := f.convs[id]
	delete(f.convs, id)
	return ok
}

type fakeStreamer struct {
	chunks []domain.StreamChunk
	err    error
}

func (f *fakeStreamer) StreamComplete(context.Context, domain.CompletionRequest) iter.Seq2[domain.StreamChunk, error] {
	return func(yield func(domain.StreamChunk, error) bool) {
		if f.err != nil {
			yield(domain.StreamChunk{}, f.err)
			return
		}
		for _, chunk := range f.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

type fakeReviewer struct {
	entries    []domain.ActionLogEntry
	lastFilter domain.ActionFilter
	decideErr  error
}

func (f *fakeReviewer) ListActions(_ context.Context, filter domain.ActionFilter) ([]domain.ActionLogEntry, error) {
	f.lastFilter = filter
	return f.entries, nil
}

func (f *fakeReviewer) RecordDecision(_ context.Context, id string, decision domain.HumanDecision, modified, decidedBy string) (*domain.ActionLogEntry, error) {
	if f.decideErr != nil {
		return nil, f.decideErr
	}
	return &domain.ActionLogEntry{ID: id, Module: "communications", HumanDecision: decision, ModifiedContent: modified, DecidedBy: decidedBy}, nil
}

type fakeModules struct {
	lastContext domain.ModuleContext
}

func (f *fakeModules) DraftMessage(_ context.Context, in usecase.DraftMessageInput, mctx domain.ModuleContext) (*domain.ModuleResult[usecase.MessageDraft], error) {
	if in.Purpose == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "draft message", errors.New("purpose is required"))
	}
	f.lastContext = mctx
	return &domain.ModuleResult[usecase.MessageDraft]{
		Data:             usecase.MessageDraft{Subject: "Rent Reminder", Body: "Hi " + in.TenantName},
		LogID:            "log-1",
		RequiresApproval: true,
		AutomationLevel:  domain.AutomationSuggest,
	}, nil
}

func (f *fakeModules) TriageRequest(_ context.Context, in usecase.TriageInput, _ domain.ModuleContext) (*domain.ModuleResult[usecase.TriageResult], error) {
	return &domain.ModuleResult[usecase.TriageResult]{
		Data:            usecase.TriageResult{Category: "plumbing", Priority: "high", Summary: in.Title},
		LogID:           "log-2",
		AutomationLevel: domain.AutomationAutoWithReview,
	}, nil
}

type fakeHealth struct {
	statuses []usecase.ProviderStatus
}

func (f fakeHealth) Providers() []usecase.ProviderStatus { return f.statuses }

func testDeps() Dependencies {
	modules := &fakeModules{}
	return Dependencies{
		Steward:  &fakeSteward{convs: map[string]*domain.Conversation{}},
		Streamer: &fakeStreamer{},
		Actions:  &fakeReviewer{},
		Drafter:  modules,
		Triager:  modules,
		Health: fakeHealth{statuses: []usecase.ProviderStatus{
			{Type: domain.ProviderAnthropic, Available: true, Primary: true},
		}},
	}
}

func newTestHandler(cfg config.Config, deps Dependencies) http.Handler {
	return NewRouter(cfg, deps).Handler()
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestChatReturnsStewardResponse(t *testing.T) {
	deps := testDeps()
	steward := deps.Steward.(*fakeSteward)
	steward.resp = &domain.ChatResponse{
		Message:          "Drafted a reminder for Maria.",
		ConversationID:   "conv-1",
		Actions:          []domain.ClientAction{{Type: "send_message", Label: "Send message to Maria Lopez"}},
		RequiresApproval: true,
	}
	handler := newTestHandler(config.Config{}, deps)

	res := postJSON(t, handler, "/v1/steward/chat", map[string]any{
		"message": "Remind Maria about rent",
		"context": map[string]any{"module": "communications", "contextType": "tenant", "contextId": "ten-1"},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	body := decodeBody(t, res)
	if body["conversationId"] != "conv-1" || body["requiresApproval"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
	if steward.lastReq.Context == nil || steward.lastReq.Context.ContextID != "ten-1" {
		t.Fatalf("chat context not forwarded: %+v", steward.lastReq)
	}
}

func TestChatErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"tool loop", domain.WrapError(domain.ErrToolLoopExceeded, "steward chat", errors.New("5 steps")), http.StatusInternalServerError, "tool_loop_exceeded"},
		{"no provider", domain.WrapError(domain.ErrNoProviderAvailable, "complete", errors.New("none configured")), http.StatusServiceUnavailable, "provider_unavailable"},
		{"provider", fmt.Errorf("complete: %w", &domain.ProviderError{Provider: domain.ProviderOpenAI, StatusCode: 400, Message: "bad request"}), http.StatusBadGateway, "provider_error"},
		{"invalid", domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("message too long")), http.StatusBadRequest, "invalid_input"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := testDeps()
			deps.Steward.(*fakeSteward).err = tc.err
			res := postJSON(t, newTestHandler(config.Config{}, deps), "/v1/steward/chat", map[string]any{"message": "hi"})
			if res.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, res.Code)
			}
			if body := decodeBody(t, res); body["code"] != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, body["code"])
			}
		})
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	res := postJSON(t, newTestHandler(config.Config{}, testDeps()), "/v1/steward/chat", map[string]any{"message": "  "})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestConversationEndpoints(t *testing.T) {
	deps := testDeps()
	deps.Steward.(*fakeSteward).convs["conv-1"] = &domain.Conversation{ID: "conv-1", State: domain.StewardIdle}
	handler := newTestHandler(config.Config{}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/steward/conversations/conv-1", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/steward/conversations/conv-1", nil))
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/steward/conversations/conv-1", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after clear, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/steward/conversations/conv-1", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 clearing unknown conversation, got %d", res.Code)
	}
}

func TestRecordDecision(t *testing.T) {
	deps := testDeps()
	deps.Metrics = metrics.NewHTTPServerMetrics("test")
	handler := newTestHandler(config.Config{}, deps)

	res := postJSON(t, handler, "/v1/actions/a-1/decision", map[string]any{"decision": "approved", "decidedBy": "manager"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if body := decodeBody(t, res); body["id"] != "a-1" || body["human_decision"] != "approved" {
		t.Fatalf("unexpected body: %v", body)
	}

	res = postJSON(t, handler, "/v1/actions/a-1/decision", map[string]any{"decision": "auto_executed", "decidedBy": "manager"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected auto_executed to be rejected, got %d", res.Code)
	}

	res = postJSON(t, handler, "/v1/actions/a-1/decision", map[string]any{"decision": "approved"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected missing decidedBy to be rejected, got %d", res.Code)
	}
}

func TestRecordDecisionConflict(t *testing.T) {
	deps := testDeps()
	deps.Actions.(*fakeReviewer).decideErr = fmt.Errorf("record action decision: %w",
		domain.WrapError(domain.ErrDecisionAlreadyRecorded, "update action log", errors.New("a-1")))

	res := postJSON(t, newTestHandler(config.Config{}, deps), "/v1/actions/a-1/decision",
		map[string]any{"decision": "rejected", "decidedBy": "manager"})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestListActionsParsesFilter(t *testing.T) {
	deps := testDeps()
	reviewer := deps.Actions.(*fakeReviewer)
	reviewer.entries = []domain.ActionLogEntry{{ID: "a-1", Module: "maintenance"}}
	handler := newTestHandler(config.Config{}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/actions?module=maintenance&decision=pending&limit=10", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if reviewer.lastFilter.Module != "maintenance" || reviewer.lastFilter.Decision != domain.DecisionPending || reviewer.lastFilter.Limit != 10 {
		t.Fatalf("unexpected filter: %+v", reviewer.lastFilter)
	}
	if body := decodeBody(t, res); body["count"] != float64(1) {
		t.Fatalf("unexpected body: %v", body)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/actions?limit=lots", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", res.Code)
	}
}

func TestExportActionsReturnsWorkbook(t *testing.T) {
	deps := testDeps()
	deps.Actions.(*fakeReviewer).entries = []domain.ActionLogEntry{
		{ID: "a-1", Module: "communications", ActionType: "sendMessage", HumanDecision: domain.DecisionPending},
	}
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}, deps).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/actions/export", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), ".xlsx") {
		t.Fatalf("unexpected disposition %q", res.Header().Get("Content-Disposition"))
	}
	if deps.Actions.(*fakeReviewer).lastFilter.Limit != maxExportRows {
		t.Fatalf("expected export limit default")
	}

	book, err := excelize.OpenReader(bytes.NewReader(res.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer book.Close()
	rows, err := book.GetRows("Actions")
	if err != nil || len(rows) != 2 || rows[1][0] != "a-1" {
		t.Fatalf("unexpected rows %v (err %v)", rows, err)
	}
}

func TestStreamWritesServerSentEvents(t *testing.T) {
	deps := testDeps()
	deps.Streamer = &fakeStreamer{chunks: []domain.StreamChunk{
		{Content: "Hello"},
		{Content: " there"},
		{Done: true, FinishReason: domain.FinishReasonStop},
	}}

	res := postJSON(t, newTestHandler(config.Config{}, deps), "/v1/steward/stream", map[string]any{"message": "hi"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := res.Body.String()
	if strings.Count(body, "data: ") != 4 || !strings.Contains(body, `"content":"Hello"`) || !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("unexpected stream body:\n%s", body)
	}
}

func TestStreamErrorBeforeFirstChunkIsJSON(t *testing.T) {
	deps := testDeps()
	deps.Streamer = &fakeStreamer{err: domain.WrapError(domain.ErrNoProviderAvailable, "stream", errors.New("none"))}

	res := postJSON(t, newTestHandler(config.Config{}, deps), "/v1/steward/stream", map[string]any{"message": "hi"})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	if body := decodeBody(t, res); body["code"] != "provider_unavailable" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestModuleEndpoints(t *testing.T) {
	deps := testDeps()
	handler := newTestHandler(config.Config{}, deps)

	res := postJSON(t, handler, "/v1/modules/communications/draft", map[string]any{
		"tenantName": "Maria",
		"purpose":    "rent reminder",
		"context":    map[string]any{"context_type": "tenant", "context_id": "ten-1"},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	body := decodeBody(t, res)
	data, _ := body["data"].(map[string]any)
	if data["subject"] != "Rent Reminder" || body["requires_approval"] != true {
		t.Fatalf("unexpected draft body: %v", body)
	}
	if deps.Drafter.(*fakeModules).lastContext.ContextID != "ten-1" {
		t.Fatalf("module context not forwarded")
	}

	res = postJSON(t, handler, "/v1/modules/communications/draft", map[string]any{"tenantName": "Maria"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without purpose, got %d", res.Code)
	}

	res = postJSON(t, handler, "/v1/modules/maintenance/triage", map[string]any{"title": "Sink leaking"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestHealthzReportsProviders(t *testing.T) {
	deps := testDeps()
	res := httptest.NewRecorder()
	newTestHandler(config.Config{}, deps).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	deps.Health = fakeHealth{statuses: []usecase.ProviderStatus{{Type: domain.ProviderAnthropic}, {Type: domain.ProviderOpenAI}}}
	res = httptest.NewRecorder()
	newTestHandler(config.Config{}, deps).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without providers, got %d", res.Code)
	}
	if body := decodeBody(t, res); body["status"] != "degraded" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	deps := testDeps()
	deps.Metrics = metrics.NewHTTPServerMetrics("test")
	handler := newTestHandler(config.Config{}, deps)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "steward_http_requests_total") {
		t.Fatalf("expected prometheus exposition, got %d", res.Code)
	}
}
