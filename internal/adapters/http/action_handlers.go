package httpadapter

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/infrastructure/export/xlsx"
)

const maxExportRows = 500

func (rt *Router) listActions(w http.ResponseWriter, r *http.Request) {
	filter, err := actionFilterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := rt.deps.Actions.ListActions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": entries, "count": len(entries)})
}

func (rt *Router) exportActions(w http.ResponseWriter, r *http.Request) {
	filter, err := actionFilterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Limit <= 0 {
		filter.Limit = maxExportRows
	}
	entries, err := rt.deps.Actions.ListActions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := xlsx.WriteActionLog(&buf, entries); err != nil {
		writeError(w, r, fmt.Errorf("export actions: %w", err))
		return
	}

	filename := fmt.Sprintf("steward-actions-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type decisionRequest struct {
	Decision        domain.HumanDecision `json:"decision"`
	ModifiedContent string               `json:"modifiedContent,omitempty"`
	DecidedBy       string               `json:"decidedBy"`
}

func (rt *Router) recordDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.DecidedBy) == "" {
		writeBadRequest(w, r, "decidedBy is required")
		return
	}
	if req.Decision == domain.DecisionAutoExecuted {
		writeBadRequest(w, r, "auto_executed is reserved for the system")
		return
	}

	entry, err := rt.deps.Actions.RecordDecision(r.Context(), r.PathValue("id"), req.Decision, req.ModifiedContent, req.DecidedBy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordDecision(entry.Module, entry.HumanDecision)
	}
	writeJSON(w, http.StatusOK, entry)
}

func actionFilterFromQuery(r *http.Request) (domain.ActionFilter, error) {
	query := r.URL.Query()
	filter := domain.ActionFilter{
		Module:     strings.TrimSpace(query.Get("module")),
		ActionType: strings.TrimSpace(query.Get("actionType")),
		Decision:   domain.HumanDecision(strings.TrimSpace(query.Get("decision"))),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return domain.ActionFilter{}, domain.WrapError(domain.ErrInvalidInput, "parse filter", fmt.Errorf("limit must be a non-negative integer"))
		}
		filter.Limit = limit
	}
	return filter, nil
}
