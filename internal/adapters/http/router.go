package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/config"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/ports"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/usecase"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/observability/metrics"
)

const maxRequestBodyBytes = 1 << 20

type MessageDrafter interface {
	DraftMessage(ctx context.Context, in usecase.DraftMessageInput, mctx domain.ModuleContext) (*domain.ModuleResult[usecase.MessageDraft], error)
}

type RequestTriager interface {
	TriageRequest(ctx context.Context, in usecase.TriageInput, mctx domain.ModuleContext) (*domain.ModuleResult[usecase.TriageResult], error)
}

type ProviderHealth interface {
	Providers() []usecase.ProviderStatus
}

// Dependencies are the collaborators served by the router. Metrics and MCP
// are optional.
type Dependencies struct {
	Steward  ports.StewardService
	Streamer ports.CompletionStreamer
	Actions  ports.ActionReviewer
	Drafter  MessageDrafter
	Triager  RequestTriager
	Health   ProviderHealth
	Metrics  *metrics.HTTPServerMetrics
	MCP      http.Handler
}

type Router struct {
	cfg  config.Config
	deps Dependencies
}

func NewRouter(cfg config.Config, deps Dependencies) *Router {
	return &Router{cfg: cfg, deps: deps}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)

	mux.HandleFunc("POST /v1/steward/chat", rt.chat)
	mux.HandleFunc("POST /v1/steward/stream", rt.stream)
	mux.HandleFunc("GET /v1/steward/conversations/{id}", rt.getConversation)
	mux.HandleFunc("DELETE /v1/steward/conversations/{id}", rt.clearConversation)

	mux.HandleFunc("GET /v1/actions", rt.listActions)
	mux.HandleFunc("GET /v1/actions/export", rt.exportActions)
	mux.HandleFunc("POST /v1/actions/{id}/decision", rt.recordDecision)

	mux.HandleFunc("POST /v1/modules/communications/draft", rt.draftMessage)
	mux.HandleFunc("POST /v1/modules/maintenance/triage", rt.triageRequest)

	if rt.deps.MCP != nil {
		mux.Handle("/mcp", rt.deps.MCP)
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIBackpressureLimit, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)

	if rt.deps.Metrics != nil {
		root := http.NewServeMux()
		root.Handle("GET /metrics", rt.deps.Metrics.Handler())
		root.Handle("/", handler)
		return root
	}
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	if rt.deps.Health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}

	providers := rt.deps.Health.Providers()
	anyAvailable := false
	for _, status := range providers {
		anyAvailable = anyAvailable || status.Available
	}

	if !anyAvailable {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "providers": providers})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "providers": providers})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
