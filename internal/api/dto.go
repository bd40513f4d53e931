package api

import (
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   string   `json:"title" example:"Spaced repetition"`
	Content string   `json:"content,omitempty" example:"Reviewing at increasing intervals..."`
	Type    string   `json:"type,omitempty" example:"permanent"`
	Tags    []string `json:"tags,omitempty" example:"learning,memory"`
}

// UpdateNoteRequest is the request body for updating a note. Omitted
// (null) fields are left untouched.
type UpdateNoteRequest struct {
	Title   *string   `json:"title,omitempty"`
	Content *string   `json:"content,omitempty"`
	Type    *string   `json:"type,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// CreateLinkRequest is the request body for linking two notes.
type CreateLinkRequest struct {
	Target      string `json:"target" example:"20250115T093042123456789"`
	Type        string `json:"type,omitempty" example:"extends"`
	Description string `json:"description,omitempty"`
}

// DeleteNoteResponse reports a deletion and the notes that lost a link to
// the deleted one.
type DeleteNoteResponse struct {
	Deleted   string   `json:"deleted"`
	LostLinks []string `json:"lost_links,omitempty"`
}

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes"`
	Total int           `json:"total" example:"42"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []graph.Hit `json:"results"`
}

// LinksResponse wraps the edges of a note.
type LinksResponse struct {
	Links []models.Link `json:"links"`
}

// TagsResponse wraps the tag inventory.
type TagsResponse struct {
	Tags []index.TagCount `json:"tags"`
}

// IntegrityResponse wraps an index integrity check.
type IntegrityResponse struct {
	Violations []index.Violation `json:"violations"`
}
