// Package api exposes the call lifecycle over plain HTTP: creating
// calls, inspecting live sessions, and fetching post-call reports.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the REST surface. The websocket endpoint and metrics
// are mounted by the caller so this package stays transport-only.
func NewRouter(h *Handlers) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", h.HandleReady)

	r.Post("/calls", h.HandleCreateCall)
	r.Get("/calls/{id}", h.HandleGetCall)
	r.Get("/calls/{id}/report", h.HandleGetReport)

	return r
}
