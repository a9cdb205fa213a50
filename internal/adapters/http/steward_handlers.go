package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeBadRequest(w, r, "message is required")
		return
	}

	resp, err := rt.deps.Steward.Chat(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := rt.deps.Steward.GetConversation(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (rt *Router) clearConversation(w http.ResponseWriter, r *http.Request) {
	if !rt.deps.Steward.ClearConversation(r.PathValue("id")) {
		writeError(w, r, domain.WrapError(domain.ErrConversationNotFound, "clear conversation", fmt.Errorf("id %q", r.PathValue("id"))))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type streamRequest struct {
	Message      string           `json:"message"`
	SystemPrompt string           `json:"systemPrompt,omitempty"`
	History      []domain.Message `json:"history,omitempty"`
	MaxTokens    int              `json:"maxTokens,omitempty"`
	Temperature  *float64         `json:"temperature,omitempty"`
}

// stream relays one completion as server-sent events. Errors before the first
// chunk are answered as plain JSON errors; later ones become an error event.
func (rt *Router) stream(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeBadRequest(w, r, "message is required")
		return
	}

	messages := append(req.History, domain.Message{Role: domain.RoleUser, Content: req.Message})
	completion := domain.CompletionRequest{
		Messages:     messages,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, fmt.Errorf("streaming is not supported by response writer"))
		return
	}

	started := false
	for chunk, err := range rt.deps.Streamer.StreamComplete(r.Context(), completion) {
		if err != nil {
			if !started {
				writeError(w, r, err)
				return
			}
			slog.Warn("stream_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
			_, code := mapErrorToHTTPStatus(err)
			_ = writeSSE(w, "error", errorBody{Error: err.Error(), Code: code})
			flusher.Flush()
			return
		}
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if err := writeSSE(w, "", chunk); err != nil {
			return
		}
		flusher.Flush()
		if chunk.Done {
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			flusher.Flush()
			return
		}
	}
}

func writeSSE(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
