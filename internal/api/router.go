// Package api exposes the reconciliation service over HTTP.
package api

import (
	"net/http"
	"time"

	"golang-bankrec-service/internal/reconciler"
	"golang-bankrec-service/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the HTTP handler of the service.
func NewRouter(service *reconciler.Service, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	sessionsHandler := NewSessionsHandler(service)
	journalsHandler := NewJournalsHandler(service)

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log.WithComponent("api")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", sessionsHandler.Routes)
		r.Post("/statement-lines", journalsHandler.CreateStatementLine)
		r.Get("/journals/{id}/summary", journalsHandler.Summary)
		r.Post("/autoreconcile", journalsHandler.AutoReconcile)
	})

	// Health check endpoint.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}
