package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/vault"
)

// FileError is one canonical file a rebuild or sync could not process.
type FileError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Report summarizes a full rebuild.
type Report struct {
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Pruned    int         `json:"pruned_links"`
	Failures  []FileError `json:"failures,omitempty"`
}

// IndexNote parses raw canonical content and upserts the result. This is the
// incremental path run after every facade write.
func IndexNote(db *DB, id string, data []byte) (*models.Note, error) {
	n, err := parser.Parse(data)
	if err != nil {
		return nil, &apperr.ParseError{File: id, Err: err}
	}
	if n.ID != id {
		return nil, fmt.Errorf("index: file %s declares id %s: %w", id, n.ID, apperr.ErrIntegrity)
	}
	if err := db.UpsertNote(*n, checksum.Sum(data)); err != nil {
		return nil, err
	}
	return n, nil
}

// IndexNoteIfChanged upserts the parsed content only when its checksum
// differs from the indexed row, reporting whether the index changed. The
// watcher runs this so the duplicate events one editor save produces do not
// trigger repeated upserts and notifications.
func IndexNoteIfChanged(db *DB, id string, data []byte) (*models.Note, bool, error) {
	cs := checksum.Sum(data)
	stored, err := db.GetChecksum(id)
	if err != nil {
		return nil, false, err
	}
	if stored == cs {
		return nil, false, nil
	}
	n, err := IndexNote(db, id, data)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

// Rebuild derives the whole index from the vault inside a single
// transaction. Corrupt files are skipped and reported; links whose target
// never materialized are pruned at the end so the index never holds an edge
// it cannot resolve. Cancelling ctx rolls the transaction back, leaving the
// pre-rebuild index intact.
func Rebuild(ctx context.Context, db *DB, store vault.Provider) (*Report, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("index: begin rebuild tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"links", "note_tags", "notes"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return nil, fmt.Errorf("index: clear %s: %w", table, err)
		}
	}

	report := &Report{}
	for id, listErr := range store.List() {
		if listErr != nil {
			return nil, listErr
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("index: rebuild interrupted: %w", err)
		}

		report.Processed++
		data, err := store.Read(id)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, FileError{ID: id, Error: err.Error()})
			continue
		}
		n, err := parser.Parse(data)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, FileError{ID: id, Error: err.Error()})
			continue
		}
		if n.ID != id {
			report.Failed++
			report.Failures = append(report.Failures, FileError{ID: id, Error: fmt.Sprintf("file declares id %s", n.ID)})
			continue
		}
		if err := upsertNoteTx(tx, *n, checksum.Sum(data)); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, FileError{ID: id, Error: err.Error()})
			continue
		}
		report.Succeeded++
	}

	// Links may point at notes that failed to parse, were deleted out from
	// under their sources, or never existed. Prune them so every edge in the
	// index has both endpoints.
	res, err := tx.Exec(`
		DELETE FROM links
		WHERE source NOT IN (SELECT id FROM notes)
		   OR target NOT IN (SELECT id FROM notes)
	`)
	if err != nil {
		return nil, fmt.Errorf("index: prune dangling links: %w", err)
	}
	if pruned, err := res.RowsAffected(); err == nil {
		report.Pruned = int(pruned)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("index: commit rebuild: %w", err)
	}
	return report, nil
}

// Sync reconciles the index with the vault using file checksums: changed or
// unindexed files are re-indexed, stale rows are dropped. Used at startup
// and by the watcher after rename storms. Per-file failures are logged, not
// fatal.
func Sync(db *DB, store vault.Provider, logger *slog.Logger) error {
	indexed, err := db.AllChecksums()
	if err != nil {
		return err
	}

	onDisk := make(map[string]struct{})
	for id, listErr := range store.List() {
		if listErr != nil {
			return listErr
		}
		onDisk[id] = struct{}{}

		data, err := store.Read(id)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		cs := checksum.Sum(data)
		if indexed[id] == cs {
			continue
		}
		if _, err := IndexNote(db, id, data); err != nil {
			logger.Warn("sync: index failed", slog.String("id", id), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("id", id), slog.String("checksum", checksum.Short(cs)))
		}
	}

	for id := range indexed {
		if _, ok := onDisk[id]; ok {
			continue
		}
		if _, err := db.DeleteNote(id); err != nil {
			logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("id", id))
		}
	}

	return nil
}
