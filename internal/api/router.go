package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tasklint/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/*", h.GetDocument)

	// Repairs.
	r.Post("/fix", h.FixAll)
	r.Post("/fix/*", h.FixDocument)

	// Identifiers.
	r.Post("/ids", h.GenerateID)
	r.Post("/ids/*", h.EnsureID)

	r.Get("/report", h.Report)
	r.Get("/search", h.Search)
	r.Get("/headings", h.Headings)
	r.Get("/rules", h.Rules)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
