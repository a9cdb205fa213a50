package httpadapter

import (
	"net/http"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/usecase"
)

type draftBody struct {
	usecase.DraftMessageInput
	Context domain.ModuleContext `json:"context"`
}

type triageBody struct {
	usecase.TriageInput
	Context domain.ModuleContext `json:"context"`
}

func (rt *Router) draftMessage(w http.ResponseWriter, r *http.Request) {
	var req draftBody
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := rt.deps.Drafter.DraftMessage(r.Context(), req.DraftMessageInput, req.Context)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) triageRequest(w http.ResponseWriter, r *http.Request) {
	var req triageBody
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := rt.deps.Triager.TriageRequest(r.Context(), req.TriageInput, req.Context)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
