package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang-bankrec-service/internal/reconciler"
	"golang-bankrec-service/pkg/errors"
	"golang-bankrec-service/pkg/logger"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse represents an API error response. Session is set when a
// session operation failed but the session is still open.
type ErrorResponse struct {
	Error            string               `json:"error"`
	ErrorDescription string               `json:"error_description,omitempty"`
	Suggestion       string               `json:"suggestion,omitempty"`
	Session          *reconciler.Snapshot `json:"session,omitempty"`
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, error, description string) {
	writeJSON(w, status, ErrorResponse{
		Error:            error,
		ErrorDescription: description,
	})
}

// writeError maps err onto a status by its category.
func writeError(w http.ResponseWriter, err error, snapshot *reconciler.Snapshot) {
	rerr, ok := errors.AsReconcilerError(err)
	if !ok {
		rerr = errors.InternalError(errors.CodeUnexpectedError, "request", err)
	}
	writeJSON(w, rerr.HTTPStatus(), ErrorResponse{
		Error:            string(rerr.Code),
		ErrorDescription: rerr.Message,
		Suggestion:       rerr.Suggestion,
		Session:          snapshot,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON parses the request body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return false
	}
	return true
}

// RequestLogger logs one line per request through the structured logger.
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			entry := log.WithFields(logger.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			})
			if ww.Status() >= http.StatusInternalServerError {
				entry.Warn("Request failed")
				return
			}
			entry.Debug("Request served")
		})
	}
}
