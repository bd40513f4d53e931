// Package graph answers read-only, graph-shaped questions over the index:
// relevance search, centrality ranking, similarity scoring, and orphan
// detection. It never touches canonical files.
package graph

import (
	"iter"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
)

// Scope selects what Search matches against.
type Scope string

// Search scopes.
const (
	ScopeContent Scope = "content"
	ScopeTags    Scope = "tags"
	ScopeLinks   Scope = "links"
)

// Direction filters link-scope searches and linked-note listings.
type Direction string

// Link directions.
const (
	DirectionBoth     Direction = "both"
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// Relevance weights for content search: a term hit in the title counts for
// more than one in the body.
const (
	titleWeight = 3
	bodyWeight  = 1
)

// SearchOptions tune a Search call. LinkType and Direction only apply to
// ScopeLinks.
type SearchOptions struct {
	Limit     int
	LinkType  models.LinkType
	Direction Direction
}

// Hit is one search result with its relevance score.
type Hit struct {
	Note  models.Note `json:"note"`
	Score int         `json:"score"`
}

// Ranked is one note with its degree, produced by FindCentral.
type Ranked struct {
	Note   models.Note `json:"note"`
	Degree int         `json:"degree"`
}

// Scored is one note with its similarity score, produced by FindSimilar.
type Scored struct {
	Note  models.Note `json:"note"`
	Score int         `json:"score"`
}

// Engine runs graph queries over a note index.
type Engine struct {
	db index.NoteIndex
}

// NewEngine creates a query engine over db.
func NewEngine(db index.NoteIndex) *Engine {
	return &Engine{db: db}
}

// Search returns notes matching query within the scope, most relevant first.
// For ScopeLinks the query is a note ID and results are its connected notes.
func (e *Engine) Search(query string, scope Scope, opts SearchOptions) ([]Hit, error) {
	switch scope {
	case ScopeContent, "":
		return e.searchContent(query, opts.Limit)
	case ScopeTags:
		return e.searchTags(query, opts.Limit)
	case ScopeLinks:
		return e.searchLinks(query, opts)
	default:
		return nil, apperr.Validationf("scope", "unknown search scope %q", scope)
	}
}

// searchContent scores candidates by weighted term-occurrence counts over
// title and body; ties go to the most recently modified note.
func (e *Engine) searchContent(query string, limit int) ([]Hit, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	candidates, err := e.db.FindByContent(terms, 0)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(candidates))
	for _, n := range candidates {
		title := strings.ToLower(n.Title)
		body := strings.ToLower(n.Body)
		score := 0
		for _, term := range terms {
			score += titleWeight*strings.Count(title, term) + bodyWeight*strings.Count(body, term)
		}
		if score == 0 {
			continue
		}
		hits = append(hits, Hit{Note: n, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Note.UpdatedAt.After(hits[j].Note.UpdatedAt)
	})
	return clipHits(hits, limit), nil
}

// searchTags matches exact or prefix tag names.
func (e *Engine) searchTags(query string, limit int) ([]Hit, error) {
	notes, err := e.db.FindByTag(query, true)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(notes))
	for _, n := range notes {
		hits = append(hits, Hit{Note: n, Score: 1})
	}
	return clipHits(hits, limit), nil
}

// searchLinks finds notes connected to the given ID, optionally filtered by
// link type and direction.
func (e *Engine) searchLinks(id string, opts SearchOptions) ([]Hit, error) {
	if !models.IsID(id) {
		return nil, apperr.Validationf("query", "%q is not a note ID", id)
	}
	if opts.LinkType != "" {
		if _, err := models.ParseLinkType(string(opts.LinkType)); err != nil {
			return nil, apperr.Validationf("link_type", "unknown link type %q", opts.LinkType)
		}
	}
	if _, err := e.db.GetNote(id); err != nil {
		return nil, err
	}

	outbound, inbound, err := e.db.LinksOf(id)
	if err != nil {
		return nil, err
	}

	dir := opts.Direction
	if dir == "" {
		dir = DirectionBoth
	}

	seen := make(map[string]struct{})
	var ids []string
	collect := func(other string, typ models.LinkType) {
		if opts.LinkType != "" && typ != opts.LinkType {
			return
		}
		if _, dup := seen[other]; dup {
			return
		}
		seen[other] = struct{}{}
		ids = append(ids, other)
	}
	if dir == DirectionBoth || dir == DirectionOutbound {
		for _, l := range outbound {
			collect(l.Target, l.Type)
		}
	}
	if dir == DirectionBoth || dir == DirectionInbound {
		for _, l := range inbound {
			// Seen from this note, an inbound edge reads as its inverse type.
			collect(l.Source, l.Type.Inverse())
		}
	}

	notes, err := e.db.NotesByIDs(ids)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(notes))
	for _, n := range notes {
		hits = append(hits, Hit{Note: n, Score: 1})
	}
	return clipHits(hits, opts.Limit), nil
}

// FindCentral ranks notes by total degree, descending. Equal degrees rank
// the earlier-created note first: the more foundational note wins.
func (e *Engine) FindCentral(limit int) ([]Ranked, error) {
	degrees, err := e.db.Degrees()
	if err != nil {
		return nil, err
	}
	notes, err := e.db.AllNotes()
	if err != nil {
		return nil, err
	}

	ranked := make([]Ranked, 0, len(notes))
	for _, n := range notes {
		ranked = append(ranked, Ranked{Note: n, Degree: degrees[n.ID]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Degree != ranked[j].Degree {
			return ranked[i].Degree > ranked[j].Degree
		}
		return ranked[i].Note.CreatedAt.Before(ranked[j].Note.CreatedAt)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// FindSimilar scores every other note against id by shared tags (primary
// signal) and shared link neighbors (secondary), highest first.
func (e *Engine) FindSimilar(id string, limit int) ([]Scored, error) {
	ref, err := e.db.GetNote(id)
	if err != nil {
		return nil, err
	}

	refTags := toSet(ref.Tags)
	refNeighbors, err := e.neighborSet(id)
	if err != nil {
		return nil, err
	}

	notes, err := e.db.AllNotes()
	if err != nil {
		return nil, err
	}

	var scored []Scored
	for _, n := range notes {
		if n.ID == id {
			continue
		}
		score := 0
		for _, tag := range n.Tags {
			if _, ok := refTags[tag]; ok {
				score += 2
			}
		}
		neighbors, err := e.neighborSet(n.ID)
		if err != nil {
			return nil, err
		}
		for other := range neighbors {
			if other == id {
				continue
			}
			if _, ok := refNeighbors[other]; ok {
				score++
			}
		}
		if score == 0 {
			continue
		}
		scored = append(scored, Scored{Note: n, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Note.ID < scored[j].Note.ID
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// FindOrphaned yields notes with no inbound and no outbound edges, in
// creation order. The sequence is lazy and finite.
func (e *Engine) FindOrphaned() iter.Seq2[models.Note, error] {
	return func(yield func(models.Note, error) bool) {
		degrees, err := e.db.Degrees()
		if err != nil {
			yield(models.Note{}, err)
			return
		}
		notes, err := e.db.AllNotes()
		if err != nil {
			yield(models.Note{}, err)
			return
		}
		for _, n := range notes {
			if degrees[n.ID] != 0 {
				continue
			}
			if !yield(n, nil) {
				return
			}
		}
	}
}

// Orphans collects FindOrphaned into a slice.
func (e *Engine) Orphans() ([]models.Note, error) {
	var out []models.Note
	for n, err := range e.FindOrphaned() {
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// ListByDate returns one page of notes ordered by creation or modification
// time. order is "created" or "updated".
func (e *Engine) ListByDate(order string, descending bool, limit, offset int) ([]models.Note, int, error) {
	if order != "created" && order != "updated" {
		return nil, 0, apperr.Validationf("order", "unknown sort order %q", order)
	}
	return e.db.ListByDate(order, descending, limit, offset)
}

// LinkedNotes lists the edges of a note, with inbound edges presented as
// their inverse types so callers see them from this note's perspective.
func (e *Engine) LinkedNotes(id string, dir Direction) ([]models.Link, error) {
	if _, err := e.db.GetNote(id); err != nil {
		return nil, err
	}
	outbound, inbound, err := e.db.LinksOf(id)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = DirectionBoth
	}

	var out []models.Link
	if dir == DirectionBoth || dir == DirectionOutbound {
		out = append(out, outbound...)
	}
	if dir == DirectionBoth || dir == DirectionInbound {
		for _, l := range inbound {
			out = append(out, models.Link{
				Source:      id,
				Target:      l.Source,
				Type:        l.Type.Inverse(),
				Description: l.Description,
			})
		}
	}
	return out, nil
}

// AllTags lists every tag in use with its note count.
func (e *Engine) AllTags() ([]index.TagCount, error) {
	return e.db.AllTags()
}

// Statistics summarizes the knowledge graph: note, link, and tag counts
// with per-type breakdowns.
func (e *Engine) Statistics() (*index.Stats, error) {
	return e.db.Stats()
}

func (e *Engine) neighborSet(id string) (map[string]struct{}, error) {
	outbound, inbound, err := e.db.LinksOf(id)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(outbound)+len(inbound))
	for _, l := range outbound {
		set[l.Target] = struct{}{}
	}
	for _, l := range inbound {
		set[l.Source] = struct{}{}
	}
	return set, nil
}

func toSet(ss []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		set[s] = struct{}{}
	}
	return set
}

func clipHits(hits []Hit, limit int) []Hit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}
