package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func mapErrorToHTTPStatus(err error) (int, string) {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrInvalidToolArguments):
		return http.StatusBadRequest, "invalid_input"
	case domain.IsKind(err, domain.ErrConversationNotFound), domain.IsKind(err, domain.ErrActionNotFound):
		return http.StatusNotFound, "not_found"
	case domain.IsKind(err, domain.ErrDecisionAlreadyRecorded), domain.IsKind(err, domain.ErrActionAlreadyResponded):
		return http.StatusConflict, "conflict"
	case domain.IsKind(err, domain.ErrNoProviderAvailable), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable, "provider_unavailable"
	case domain.IsKind(err, domain.ErrToolLoopExceeded):
		return http.StatusInternalServerError, "tool_loop_exceeded"
	}
	if _, ok := domain.AsProviderError(err); ok {
		return http.StatusBadGateway, "provider_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapErrorToHTTPStatus(err)
	requestID := requestIDFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", "request_id", requestID, "path", r.URL.Path, "code", code, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code, RequestID: requestID})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:     message,
		Code:      "invalid_input",
		RequestID: requestIDFromContext(r.Context()),
	})
}
