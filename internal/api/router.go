package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, engine *graph.Engine, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, engine)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Links.
	r.Get("/notes/{id}/links", h.LinkedNotes)
	r.Post("/notes/{id}/links", h.CreateLink)
	r.Delete("/notes/{id}/links/{target}", h.RemoveLink)

	// Search and graph queries.
	r.Get("/search", h.Search)
	r.Get("/tags", h.Tags)
	r.Get("/notes/{id}/similar", h.Similar)
	r.Get("/graph/central", h.Central)
	r.Get("/graph/orphans", h.Orphans)
	r.Get("/graph/statistics", h.Statistics)

	// Index maintenance.
	r.Post("/index/rebuild", h.Rebuild)
	r.Get("/index/integrity", h.Integrity)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
