package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// UpsertNote inserts or replaces a note row together with its tag and link
// rows in one transaction. Links are replaced wholesale: the note's canonical
// file is the authority on its outbound edges.
func (db *DB) UpsertNote(n models.Note, checksum string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := upsertNoteTx(tx, n, checksum); err != nil {
		return err
	}
	return tx.Commit()
}

// upsertNoteTx is the transaction body of UpsertNote, shared with Rebuild.
func upsertNoteTx(tx *sql.Tx, n models.Note, checksum string) error {
	metaJSON, err := json.Marshal(orEmptyMeta(n.Metadata))
	if err != nil {
		return fmt.Errorf("index: marshal metadata: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO notes (id, title, note_type, body, checksum, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			note_type  = excluded.note_type,
			body       = excluded.body,
			checksum   = excluded.checksum,
			metadata   = excluded.metadata,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, n.ID, n.Title, string(n.Type), n.Body, checksum, string(metaJSON),
		n.CreatedAt.UnixNano(), n.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM note_tags WHERE note_id = ?`, n.ID); err != nil {
		return fmt.Errorf("index: clear tags: %w", err)
	}
	for _, tag := range n.Tags {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO note_tags (note_id, tag) VALUES (?, ?)`, n.ID, tag); err != nil {
			return fmt.Errorf("index: insert tag: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, n.ID); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	for _, l := range n.Links {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO links (source, target, link_type, description) VALUES (?, ?, ?, ?)`,
			n.ID, l.Target, string(l.Type), l.Description,
		); err != nil {
			return fmt.Errorf("index: insert link: %w", err)
		}
	}
	return nil
}

// DeleteNote removes a note, its tag rows, and every link touching it, in
// one transaction. It returns the distinct source IDs of inbound links that
// were purged, so callers can warn which notes lost an edge.
func (db *DB) DeleteNote(id string) ([]string, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	sources, err := scanStrings(tx.Query(`SELECT DISTINCT source FROM links WHERE target = ? ORDER BY source`, id))
	if err != nil {
		return nil, fmt.Errorf("index: inbound sources: %w", err)
	}

	res, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("index: delete note: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, fmt.Errorf("index: delete %s: %w", id, apperr.ErrNotFound)
	}
	if _, err := tx.Exec(`DELETE FROM note_tags WHERE note_id = ?`, id); err != nil {
		return nil, fmt.Errorf("index: delete tags: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM links WHERE source = ? OR target = ?`, id, id); err != nil {
		return nil, fmt.Errorf("index: delete links: %w", err)
	}

	return sources, tx.Commit()
}

// GetNote loads one note with its tags and outbound links.
func (db *DB) GetNote(id string) (*models.Note, error) {
	notes, err := db.queryNotes(`SELECT `+noteCols+` FROM notes WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("index: note %s: %w", id, apperr.ErrNotFound)
	}
	return &notes[0], nil
}

// GetChecksum returns the stored file checksum for a note, or empty string
// when the note is not indexed.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE id = ?`, id).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum %s: %w", id, err)
	}
	return cs, nil
}

// UpsertLink inserts a single forward edge. An existing (source, target, type)
// row reports apperr.ErrConflict.
func (db *DB) UpsertLink(l models.Link) error {
	_, err := db.conn.Exec(
		`INSERT INTO links (source, target, link_type, description) VALUES (?, ?, ?, ?)`,
		l.Source, l.Target, string(l.Type), l.Description,
	)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("index: link %s -> %s (%s): %w", l.Source, l.Target, l.Type, apperr.ErrConflict)
		}
		return fmt.Errorf("index: insert link: %w", err)
	}
	return nil
}

// RemoveLink deletes one forward edge. A missing edge reports apperr.ErrNotFound.
func (db *DB) RemoveLink(source, target string, typ models.LinkType) error {
	res, err := db.conn.Exec(
		`DELETE FROM links WHERE source = ? AND target = ? AND link_type = ?`,
		source, target, string(typ),
	)
	if err != nil {
		return fmt.Errorf("index: remove link: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("index: link %s -> %s (%s): %w", source, target, typ, apperr.ErrNotFound)
	}
	return nil
}

// LinksOf returns the stored forward edges from id and, as the inbound view,
// the stored edges pointing at id. Only forward edges exist in the table;
// the inverse direction is computed here rather than stored twice.
func (db *DB) LinksOf(id string) (outbound, inbound []models.Link, err error) {
	outbound, err = db.queryLinks(`SELECT source, target, link_type, description FROM links WHERE source = ? ORDER BY target, link_type`, id)
	if err != nil {
		return nil, nil, err
	}
	inbound, err = db.queryLinks(`SELECT source, target, link_type, description FROM links WHERE target = ? ORDER BY source, link_type`, id)
	if err != nil {
		return nil, nil, err
	}
	return outbound, inbound, nil
}

// VerifyIntegrity reports links whose endpoints are not present as notes.
// It never repairs; a rebuild is the recovery path.
func (db *DB) VerifyIntegrity() ([]Violation, error) {
	rows, err := db.conn.Query(`
		SELECT source, target,
		       CASE WHEN s.id IS NULL THEN 'missing source' ELSE 'missing target' END
		FROM links
		LEFT JOIN notes s ON s.id = links.source
		LEFT JOIN notes t ON t.id = links.target
		WHERE s.id IS NULL OR t.id IS NULL
		ORDER BY source, target
	`)
	if err != nil {
		return nil, fmt.Errorf("index: verify integrity: %w", err)
	}
	defer rows.Close()

	var out []Violation
	for rows.Next() {
		var v Violation
		if err := rows.Scan(&v.Source, &v.Target, &v.Reason); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// AllChecksums returns id -> file checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

const noteCols = `id, title, note_type, body, metadata, created_at, updated_at`

// queryNotes runs a SELECT over noteCols and attaches tags and outbound
// links to each result.
func (db *DB) queryNotes(query string, args ...any) ([]models.Note, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query notes: %w", err)
	}
	defer rows.Close()

	var notes []models.Note
	for rows.Next() {
		var (
			n                  models.Note
			typ, metaJSON      string
			createdNS, updated int64
		)
		if err := rows.Scan(&n.ID, &n.Title, &typ, &n.Body, &metaJSON, &createdNS, &updated); err != nil {
			return nil, err
		}
		n.Type = models.NoteType(typ)
		n.CreatedAt = time.Unix(0, createdNS)
		n.UpdatedAt = time.Unix(0, updated)
		if metaJSON != "" && metaJSON != "{}" {
			if err := json.Unmarshal([]byte(metaJSON), &n.Metadata); err != nil {
				return nil, fmt.Errorf("index: unmarshal metadata for %s: %w", n.ID, err)
			}
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range notes {
		if err := db.attach(&notes[i]); err != nil {
			return nil, err
		}
	}
	return notes, nil
}

// attach loads tags and outbound links for one note.
func (db *DB) attach(n *models.Note) error {
	tags, err := scanStrings(db.conn.Query(`SELECT tag FROM note_tags WHERE note_id = ? ORDER BY tag`, n.ID))
	if err != nil {
		return fmt.Errorf("index: tags of %s: %w", n.ID, err)
	}
	n.Tags = tags

	links, err := db.queryLinks(`SELECT source, target, link_type, description FROM links WHERE source = ? ORDER BY target, link_type`, n.ID)
	if err != nil {
		return err
	}
	n.Links = links
	return nil
}

func (db *DB) queryLinks(query string, args ...any) ([]models.Link, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query links: %w", err)
	}
	defer rows.Close()

	var out []models.Link
	for rows.Next() {
		var l models.Link
		var typ string
		if err := rows.Scan(&l.Source, &l.Target, &typ, &l.Description); err != nil {
			return nil, err
		}
		l.Type = models.LinkType(typ)
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanStrings(rows *sql.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func orEmptyMeta(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// placeholders returns "?, ?, ..." for n args.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
