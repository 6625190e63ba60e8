package api

import (
	"net/http"
	"strconv"

	"golang-bankrec-service/internal/reconciler"

	"github.com/go-chi/chi/v5"
)

// SessionsHandler handles reconciliation session endpoints.
type SessionsHandler struct {
	service *reconciler.Service
}

// NewSessionsHandler creates a new SessionsHandler.
func NewSessionsHandler(s *reconciler.Service) *SessionsHandler {
	return &SessionsHandler{service: s}
}

// OpenSessionRequest is the body of POST /sessions.
type OpenSessionRequest struct {
	StatementLineID int64 `json:"statement_line_id"`
}

// MatchRequest is the body of POST and DELETE /sessions/{id}/matches.
type MatchRequest struct {
	LedgerLineIDs []int64 `json:"ledger_line_ids"`
}

// EditLineRequest is the body of PATCH /sessions/{id}/lines/{index}.
type EditLineRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// ReconcileModelRequest is the body of POST /sessions/{id}/reconcile-model.
type ReconcileModelRequest struct {
	ModelID int64 `json:"model_id"`
}

// Routes mounts the session endpoints.
func (h *SessionsHandler) Routes(r chi.Router) {
	r.Post("/", h.Open)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Close)
		r.Post("/matches", h.AddMatch)
		r.Delete("/matches", h.RemoveMatch)
		r.Route("/lines/{index}", func(r chi.Router) {
			r.Patch("/", h.EditLine)
			r.Delete("/", h.RemoveLine)
			r.Post("/mount", h.MountLine)
			r.Get("/suggestion", h.Suggestion)
			r.Post("/suggestion", h.ApplySuggestion)
		})
		r.Post("/reconcile-model", h.SelectReconcileModel)
		r.Post("/matching-rules", h.TriggerMatchingRules)
		r.Post("/reset", h.Reset)
		r.Post("/validate", h.Validate)
	})
}

// Open handles POST /sessions.
func (h *SessionsHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StatementLineID == 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Missing statement_line_id")
		return
	}

	snapshot, err := h.service.OpenSession(r.Context(), req.StatementLineID)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

// Get handles GET /sessions/{id}.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// Close handles DELETE /sessions/{id}.
func (h *SessionsHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CloseSession(chi.URLParam(r, "id")); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMatch handles POST /sessions/{id}/matches.
func (h *SessionsHandler) AddMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.LedgerLineIDs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Missing ledger_line_ids")
		return
	}
	snapshot, err := h.service.AddMatch(r.Context(), chi.URLParam(r, "id"), req.LedgerLineIDs...)
	respond(w, snapshot, err)
}

// RemoveMatch handles DELETE /sessions/{id}/matches. Without ids every
// match is removed.
func (h *SessionsHandler) RemoveMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snapshot, err := h.service.RemoveMatch(chi.URLParam(r, "id"), req.LedgerLineIDs...)
	respond(w, snapshot, err)
}

// EditLine handles PATCH /sessions/{id}/lines/{index}.
func (h *SessionsHandler) EditLine(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}
	var req EditLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Field == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Missing field")
		return
	}
	snapshot, err := h.service.EditField(r.Context(), chi.URLParam(r, "id"), index, req.Field, req.Value)
	respond(w, snapshot, err)
}

// RemoveLine handles DELETE /sessions/{id}/lines/{index}.
func (h *SessionsHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.RemoveLine(chi.URLParam(r, "id"), index)
	respond(w, snapshot, err)
}

// MountLine handles POST /sessions/{id}/lines/{index}/mount.
func (h *SessionsHandler) MountLine(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.MountLine(chi.URLParam(r, "id"), index)
	respond(w, snapshot, err)
}

// Suggestion handles GET /sessions/{id}/lines/{index}/suggestion.
func (h *SessionsHandler) Suggestion(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}
	suggestion, err := h.service.Suggestion(chi.URLParam(r, "id"), index)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

// ApplySuggestion handles POST /sessions/{id}/lines/{index}/suggestion.
func (h *SessionsHandler) ApplySuggestion(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.ApplySuggestion(chi.URLParam(r, "id"), index)
	respond(w, snapshot, err)
}

// SelectReconcileModel handles POST /sessions/{id}/reconcile-model.
func (h *SessionsHandler) SelectReconcileModel(w http.ResponseWriter, r *http.Request) {
	var req ReconcileModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ModelID == 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Missing model_id")
		return
	}
	snapshot, err := h.service.SelectReconcileModel(r.Context(), chi.URLParam(r, "id"), req.ModelID)
	respond(w, snapshot, err)
}

// TriggerMatchingRules handles POST /sessions/{id}/matching-rules.
func (h *SessionsHandler) TriggerMatchingRules(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.TriggerMatchingRules(r.Context(), chi.URLParam(r, "id"))
	respond(w, snapshot, err)
}

// Reset handles POST /sessions/{id}/reset.
func (h *SessionsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Reset(chi.URLParam(r, "id"))
	respond(w, snapshot, err)
}

// Validate handles POST /sessions/{id}/validate.
func (h *SessionsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Validate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var snapshot *reconciler.Snapshot
		if result != nil {
			snapshot = result.Snapshot
		}
		writeError(w, err, snapshot)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func respond(w http.ResponseWriter, snapshot *reconciler.Snapshot, err error) {
	if err != nil {
		writeError(w, err, snapshot)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func lineIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid line index")
		return 0, false
	}
	return index, true
}
