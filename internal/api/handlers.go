package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *noteservice.Service
	engine *graph.Engine
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, engine *graph.Engine) *Handler {
	return &Handler{svc: svc, engine: engine}
}

// writeError maps domain errors to HTTP statuses. Validation problems are
// surfaced to the client verbatim; everything else gets a generic body.
func writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrBusy):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("index rebuild in progress"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes sorted by creation or modification time
//	@Tags			notes
//	@Produce		json
//	@Param			order		query		string	false	"Sort field"	Enums(created, updated)
//	@Param			direction	query		string	false	"Sort direction"	Enums(asc, desc)
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	order := q.Get("order")
	if order == "" {
		order = "created"
	}
	descending := q.Get("direction") != "asc"

	notes, total, err := h.engine.ListByDate(order, descending, queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		writeError(w, err, "list notes")
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: total})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by ID or exact title
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note ID or exact title"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "get note")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, err := h.svc.Create(r.Context(), noteservice.CreateParams{
		Title: req.Title,
		Body:  req.Content,
		Type:  req.Type,
		Tags:  req.Tags,
	})
	if err != nil {
		writeError(w, err, "create note")
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Update fields of a note; omitted fields are untouched
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note ID"
//	@Param			body	body		UpdateNoteRequest	true	"Fields to change"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), noteservice.UpdateParams{
		Title: req.Title,
		Body:  req.Content,
		Type:  req.Type,
		Tags:  req.Tags,
	})
	if err != nil {
		writeError(w, err, "update note")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note and purge links touching it
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note ID"
//	@Success		200	{object}	DeleteNoteResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lost, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err, "delete note")
		return
	}
	writeJSON(w, http.StatusOK, DeleteNoteResponse{Deleted: id, LostLinks: lost})
}

// CreateLink handles POST /api/notes/{id}/links.
//
//	@Summary		Create a typed link from this note to another
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Source note ID"
//	@Param			body	body		CreateLinkRequest	true	"Link to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/links [post]
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	linkType := req.Type
	if linkType == "" {
		linkType = "reference"
	}
	note, err := h.svc.CreateLink(r.Context(), chi.URLParam(r, "id"), req.Target, linkType, req.Description)
	if err != nil {
		writeError(w, err, "create link")
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// RemoveLink handles DELETE /api/notes/{id}/links/{target}.
//
//	@Summary		Remove a link between two notes
//	@Tags			links
//	@Produce		json
//	@Param			id		path		string	true	"Source note ID"
//	@Param			target	path		string	true	"Target note ID"
//	@Param			type	query		string	false	"Link type (default reference)"
//	@Success		200		{object}	models.Note
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/links/{target} [delete]
func (h *Handler) RemoveLink(w http.ResponseWriter, r *http.Request) {
	linkType := r.URL.Query().Get("type")
	if linkType == "" {
		linkType = "reference"
	}
	note, err := h.svc.RemoveLink(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "target"), linkType)
	if err != nil {
		writeError(w, err, "remove link")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// LinkedNotes handles GET /api/notes/{id}/links.
//
//	@Summary		List the edges of a note; inbound edges appear as inverse types
//	@Tags			links
//	@Produce		json
//	@Param			id			path		string	true	"Note ID"
//	@Param			direction	query		string	false	"Edge direction"	Enums(both, outbound, inbound)
//	@Success		200			{object}	LinksResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/links [get]
func (h *Handler) LinkedNotes(w http.ResponseWriter, r *http.Request) {
	links, err := h.engine.LinkedNotes(chi.URLParam(r, "id"), graph.Direction(r.URL.Query().Get("direction")))
	if err != nil {
		writeError(w, err, "linked notes")
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Links: links})
}

// Similar handles GET /api/notes/{id}/similar.
//
//	@Summary		Find notes similar to this one
//	@Tags			graph
//	@Produce		json
//	@Param			id		path		string	true	"Note ID"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{array}		graph.Scored
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/similar [get]
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	scored, err := h.engine.FindSimilar(chi.URLParam(r, "id"), queryInt(r, "limit", 10))
	if err != nil {
		writeError(w, err, "find similar")
		return
	}
	writeJSON(w, http.StatusOK, scored)
}

// Search handles GET /api/search.
//
//	@Summary		Search notes by content, tags, or links
//	@Tags			search
//	@Produce		json
//	@Param			q			query		string	true	"Search terms, tag prefix, or note ID"
//	@Param			scope		query		string	false	"Search scope"	Enums(content, tags, links)
//	@Param			link_type	query		string	false	"Edge type filter for scope links"
//	@Param			direction	query		string	false	"Edge direction for scope links"
//	@Param			limit		query		int		false	"Max results"
//	@Success		200			{object}	SearchResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	hits, err := h.engine.Search(query, graph.Scope(q.Get("scope")), graph.SearchOptions{
		Limit:     queryInt(r, "limit", 20),
		LinkType:  models.LinkType(q.Get("link_type")),
		Direction: graph.Direction(q.Get("direction")),
	})
	if err != nil {
		writeError(w, err, "search")
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// Tags handles GET /api/tags.
//
//	@Summary		List every tag in use with its note count
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.engine.AllTags()
	if err != nil {
		writeError(w, err, "tags")
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// Central handles GET /api/graph/central.
//
//	@Summary		Rank notes by connection count
//	@Tags			graph
//	@Produce		json
//	@Param			limit	query		int	false	"Max results"
//	@Success		200		{array}		graph.Ranked
//	@Security		BearerAuth
//	@Router			/graph/central [get]
func (h *Handler) Central(w http.ResponseWriter, r *http.Request) {
	ranked, err := h.engine.FindCentral(queryInt(r, "limit", 10))
	if err != nil {
		writeError(w, err, "find central")
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

// Orphans handles GET /api/graph/orphans.
//
//	@Summary		List notes with no links in either direction
//	@Tags			graph
//	@Produce		json
//	@Success		200	{array}	models.Note
//	@Security		BearerAuth
//	@Router			/graph/orphans [get]
func (h *Handler) Orphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := h.engine.Orphans()
	if err != nil {
		writeError(w, err, "find orphans")
		return
	}
	writeJSON(w, http.StatusOK, orphans)
}

// Statistics handles GET /api/graph/statistics.
//
//	@Summary		Summarize note, link, and tag counts with per-type breakdowns
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	index.Stats
//	@Security		BearerAuth
//	@Router			/graph/statistics [get]
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Statistics()
	if err != nil {
		writeError(w, err, "statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Rebuild handles POST /api/index/rebuild.
//
//	@Summary		Rebuild the query index from the vault files
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	index.Report
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index/rebuild [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.RebuildIndex(r.Context())
	if err != nil {
		writeError(w, err, "rebuild index")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Integrity handles GET /api/index/integrity.
//
//	@Summary		Report links whose endpoints are missing from the index
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	IntegrityResponse
//	@Security		BearerAuth
//	@Router			/index/integrity [get]
func (h *Handler) Integrity(w http.ResponseWriter, r *http.Request) {
	violations, err := h.svc.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, err, "verify integrity")
		return
	}
	writeJSON(w, http.StatusOK, IntegrityResponse{Violations: violations})
}
