// Package noteservice is the single entry point for note mutations. Every
// create, update, delete, and link operation writes the canonical file first
// and then mirrors the change into the index, so readers only ever observe
// the two stores moving together.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/vault"
)

// DefaultRebuildTimeout bounds a full index rebuild.
const DefaultRebuildTimeout = 5 * time.Minute

// Service coordinates vault and index mutations.
//
// Concurrency model: a keyed mutex serializes all mutations on the same note
// ID, so a read-modify-write never races a concurrent update or delete of
// that note. Mutations on different IDs proceed concurrently. A full rebuild
// takes the write side of rebuildMu; mutations take the read side and report
// apperr.ErrBusy instead of blocking behind a rebuild.
type Service struct {
	store  vault.Provider
	db     *index.DB
	logger *slog.Logger

	locks     sync.Map // note ID -> *sync.Mutex
	rebuildMu sync.RWMutex

	// RebuildTimeout bounds RebuildIndex; zero means DefaultRebuildTimeout.
	RebuildTimeout time.Duration
}

// NewService creates a note service over the given stores.
func NewService(store vault.Provider, db *index.DB, logger *slog.Logger) *Service {
	return &Service{store: store, db: db, logger: logger}
}

// CreateParams are the inputs for Create. Type defaults to permanent.
type CreateParams struct {
	Title    string
	Body     string
	Type     string
	Tags     []string
	Metadata map[string]string
}

// UpdateParams are the fields an update may change. Nil pointers leave the
// corresponding field untouched.
type UpdateParams struct {
	Title    *string
	Body     *string
	Type     *string
	Tags     *[]string
	Metadata *map[string]string
}

// Create assigns an ID, validates, writes the canonical file, and indexes it.
func (s *Service) Create(_ context.Context, p CreateParams) (*models.Note, error) {
	release, err := s.beginMutation()
	if err != nil {
		return nil, err
	}
	defer release()

	typ := models.TypePermanent
	if p.Type != "" {
		typ, err = models.ParseNoteType(p.Type)
		if err != nil {
			return nil, err
		}
	}

	id := models.NewID()
	created, _ := models.IDTime(id)
	note := models.Note{
		ID:        id,
		Title:     p.Title,
		Body:      p.Body,
		Type:      typ,
		Tags:      models.NormalizeTags(p.Tags),
		Metadata:  p.Metadata,
		CreatedAt: created,
		UpdatedAt: created,
	}

	unlock := s.lockNote(id)
	defer unlock()

	return s.persist(note)
}

// Get resolves a note by exact ID, or by title when the argument is not
// ID-shaped. A title matching zero or multiple notes reports ErrNotFound.
func (s *Service) Get(_ context.Context, idOrTitle string) (*models.Note, error) {
	if models.IsID(idOrTitle) {
		return s.db.GetNote(idOrTitle)
	}
	matches, err := s.db.FindByTitle(idOrTitle)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 1:
		return &matches[0], nil
	case 0:
		return nil, fmt.Errorf("noteservice: title %q: %w", idOrTitle, apperr.ErrNotFound)
	default:
		return nil, fmt.Errorf("noteservice: title %q matches %d notes: %w", idOrTitle, len(matches), apperr.ErrNotFound)
	}
}

// Update applies a partial field update: rewrites the canonical file with a
// strictly later modification timestamp and mirrors it into the index.
func (s *Service) Update(_ context.Context, id string, p UpdateParams) (*models.Note, error) {
	release, err := s.beginMutation()
	if err != nil {
		return nil, err
	}
	defer release()

	unlock := s.lockNote(id)
	defer unlock()

	note, err := s.load(id)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		note.Title = *p.Title
	}
	if p.Body != nil {
		note.Body = *p.Body
	}
	if p.Type != nil {
		typ, err := models.ParseNoteType(*p.Type)
		if err != nil {
			return nil, err
		}
		note.Type = typ
	}
	if p.Tags != nil {
		note.Tags = models.NormalizeTags(*p.Tags)
	}
	if p.Metadata != nil {
		note.Metadata = *p.Metadata
	}
	note.UpdatedAt = bumpUpdated(note.UpdatedAt)

	return s.persist(*note)
}

// Delete removes the canonical file and index row, purges every link
// touching the note from the index AND from the canonical files of the
// notes that pointed at it, and returns the IDs of those notes as a
// warning list.
func (s *Service) Delete(_ context.Context, id string) ([]string, error) {
	release, err := s.beginMutation()
	if err != nil {
		return nil, err
	}
	defer release()

	unlock := s.lockNote(id)
	if err := s.store.Delete(id); err != nil {
		unlock()
		return nil, err
	}
	sources, err := s.db.DeleteNote(id)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("noteservice: delete %s: index out of step, rebuild required: %w", id, err)
	}

	// Rewrite each former source so its file stops claiming the dead edge.
	// The note's own lock is released; each source is locked independently.
	var lost []string
	for _, src := range sources {
		if err := s.dropLinksTo(src, id); err != nil {
			s.logger.Warn("delete: purge inbound link failed",
				slog.String("source", src), slog.String("target", id),
				slog.String("error", err.Error()))
			continue
		}
		lost = append(lost, src)
	}
	return lost, nil
}

// CreateLink records a typed forward edge in the source note's canonical
// file and indexes it. Both endpoints must exist; self-links and exact
// duplicates are rejected.
func (s *Service) CreateLink(_ context.Context, source, target, linkType, description string) (*models.Note, error) {
	release, err := s.beginMutation()
	if err != nil {
		return nil, err
	}
	defer release()

	typ, err := models.ParseLinkType(linkType)
	if err != nil {
		return nil, err
	}
	if source == target {
		return nil, apperr.Validationf("target", "self-link on %s", source)
	}
	if _, err := s.db.GetNote(target); err != nil {
		return nil, fmt.Errorf("noteservice: link target: %w", err)
	}

	unlock := s.lockNote(source)
	defer unlock()

	note, err := s.load(source)
	if err != nil {
		return nil, err
	}
	if note.HasLink(target, typ) {
		return nil, fmt.Errorf("noteservice: link %s -> %s (%s) exists: %w", source, target, typ, apperr.ErrConflict)
	}

	note.Links = append(note.Links, models.Link{
		Source:      source,
		Target:      target,
		Type:        typ,
		Description: description,
	})
	note.UpdatedAt = bumpUpdated(note.UpdatedAt)

	return s.persist(*note)
}

// RemoveLink deletes a forward edge from the source note's canonical file
// and the index. A missing edge reports ErrNotFound.
func (s *Service) RemoveLink(_ context.Context, source, target, linkType string) (*models.Note, error) {
	release, err := s.beginMutation()
	if err != nil {
		return nil, err
	}
	defer release()

	typ, err := models.ParseLinkType(linkType)
	if err != nil {
		return nil, err
	}

	unlock := s.lockNote(source)
	defer unlock()

	note, err := s.load(source)
	if err != nil {
		return nil, err
	}
	if !note.HasLink(target, typ) {
		return nil, fmt.Errorf("noteservice: link %s -> %s (%s): %w", source, target, typ, apperr.ErrNotFound)
	}

	kept := note.Links[:0]
	for _, l := range note.Links {
		if l.Target == target && l.Type == typ {
			continue
		}
		kept = append(kept, l)
	}
	note.Links = kept
	note.UpdatedAt = bumpUpdated(note.UpdatedAt)

	return s.persist(*note)
}

// RebuildIndex re-derives the whole index from the vault. It holds the
// exclusive rebuild lock; concurrent mutations get ErrBusy instead of
// interleaving with the rebuild.
func (s *Service) RebuildIndex(ctx context.Context) (*index.Report, error) {
	if !s.rebuildMu.TryLock() {
		return nil, fmt.Errorf("noteservice: rebuild: %w", apperr.ErrBusy)
	}
	defer s.rebuildMu.Unlock()

	timeout := s.RebuildTimeout
	if timeout <= 0 {
		timeout = DefaultRebuildTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report, err := index.Rebuild(ctx, s.db, s.store)
	if err != nil {
		return nil, err
	}
	s.logger.Info("index rebuilt",
		slog.Int("processed", report.Processed),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed))
	return report, nil
}

// VerifyIntegrity reports referential violations inside the index.
func (s *Service) VerifyIntegrity(_ context.Context) ([]index.Violation, error) {
	return s.db.VerifyIntegrity()
}

// load reads a note from the vault, the source of truth, bypassing the index.
func (s *Service) load(id string) (*models.Note, error) {
	data, err := s.store.Read(id)
	if err != nil {
		return nil, err
	}
	note, err := parser.Parse(data)
	if err != nil {
		return nil, &apperr.ParseError{File: id, Err: err}
	}
	return note, nil
}

// persist validates and serializes the note, writes the canonical file, then
// mirrors it into the index. An index failure after a successful file write
// is reported as a failure; the drift is recoverable only via rebuild.
func (s *Service) persist(note models.Note) (*models.Note, error) {
	data, err := parser.Serialize(note)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(note.ID, data); err != nil {
		return nil, err
	}
	if _, err := index.IndexNote(s.db, note.ID, data); err != nil {
		s.logger.Warn("index update failed after file write, rebuild required",
			slog.String("id", note.ID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("noteservice: index %s: %w", note.ID, err)
	}
	return &note, nil
}

// dropLinksTo rewrites one source note without any links pointing at target.
func (s *Service) dropLinksTo(source, target string) error {
	unlock := s.lockNote(source)
	defer unlock()

	note, err := s.load(source)
	if err != nil {
		return err
	}
	kept := note.Links[:0]
	for _, l := range note.Links {
		if l.Target == target {
			continue
		}
		kept = append(kept, l)
	}
	note.Links = kept
	note.UpdatedAt = bumpUpdated(note.UpdatedAt)
	_, err = s.persist(*note)
	return err
}

// lockNote acquires the per-ID mutex and returns its release func.
func (s *Service) lockNote(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// beginMutation takes the shared side of the rebuild lock. While a rebuild
// holds the exclusive side, mutations fail fast with ErrBusy.
func (s *Service) beginMutation() (func(), error) {
	if !s.rebuildMu.TryRLock() {
		return nil, fmt.Errorf("noteservice: %w", apperr.ErrBusy)
	}
	return s.rebuildMu.RUnlock, nil
}

// bumpUpdated returns the current time, nudged forward if the clock has not
// advanced past prev, so the modification timestamp strictly increases.
func bumpUpdated(prev time.Time) time.Time {
	now := time.Now()
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}
