package index

import (
	"fmt"

	"github.com/starford/ansuz/internal/models"
)

// FindByTitle returns every note whose title matches exactly.
func (db *DB) FindByTitle(title string) ([]models.Note, error) {
	return db.queryNotes(`SELECT `+noteCols+` FROM notes WHERE title = ? ORDER BY id`, title)
}

// FindByTag returns notes carrying the tag. With prefix set, any tag starting
// with the query matches.
func (db *DB) FindByTag(tag string, prefix bool) ([]models.Note, error) {
	tag = models.NormalizeTag(tag)
	cond := `nt.tag = ?`
	arg := any(tag)
	if prefix {
		cond = `nt.tag LIKE ? ESCAPE '\'`
		arg = escapeLike(tag) + "%"
	}
	return db.queryNotes(`
		SELECT DISTINCT `+qualifiedNoteCols+`
		FROM notes n
		JOIN note_tags nt ON nt.note_id = n.id
		WHERE `+cond+`
		ORDER BY n.updated_at DESC`, arg)
}

// FindByContent returns candidate notes whose title or body contains any of
// the terms. Relevance ordering is the query engine's job; a non-positive
// limit returns every candidate so scoring sees the full match set.
func (db *DB) FindByContent(terms []string, limit int) ([]models.Note, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	var conds string
	args := make([]any, 0, 2*len(terms)+1)
	for i, term := range terms {
		if i > 0 {
			conds += " OR "
		}
		conds += `title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\'`
		like := "%" + escapeLike(term) + "%"
		args = append(args, like, like)
	}

	query := `
		SELECT ` + noteCols + `
		FROM notes
		WHERE ` + conds + `
		ORDER BY updated_at DESC`
	if limit > 0 {
		query += `
		LIMIT ?`
		args = append(args, limit)
	}

	return db.queryNotes(query, args...)
}

// ListByDate returns one page of notes ordered by creation or modification
// time, plus the total count.
func (db *DB) ListByDate(order string, descending bool, limit, offset int) ([]models.Note, int, error) {
	col := "created_at"
	if order == "updated" {
		col = "updated_at"
	}
	dir := "ASC"
	if descending {
		dir = "DESC"
	}
	if limit <= 0 {
		limit = 100
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	notes, err := db.queryNotes(
		`SELECT `+noteCols+` FROM notes ORDER BY `+col+` `+dir+`, id `+dir+` LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

// AllNotes returns every indexed note in ID (= creation) order.
func (db *DB) AllNotes() ([]models.Note, error) {
	return db.queryNotes(`SELECT ` + noteCols + ` FROM notes ORDER BY id`)
}

// AllTags returns every tag in use with its note count, most used first.
func (db *DB) AllTags() ([]TagCount, error) {
	rows, err := db.conn.Query(`
		SELECT tag, count(*) AS n
		FROM note_tags
		GROUP BY tag
		ORDER BY n DESC, tag
	`)
	if err != nil {
		return nil, fmt.Errorf("index: all tags: %w", err)
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// Stats aggregates note, link, and tag counts, with per-type breakdowns.
func (db *DB) Stats() (*Stats, error) {
	s := &Stats{
		NotesByType: make(map[string]int),
		LinksByType: make(map[string]int),
	}

	if err := db.countByGroup(`SELECT note_type, count(*) FROM notes GROUP BY note_type`, s.NotesByType, &s.Notes); err != nil {
		return nil, fmt.Errorf("index: note stats: %w", err)
	}
	if err := db.countByGroup(`SELECT link_type, count(*) FROM links GROUP BY link_type`, s.LinksByType, &s.Links); err != nil {
		return nil, fmt.Errorf("index: link stats: %w", err)
	}
	if err := db.conn.QueryRow(`SELECT count(DISTINCT tag) FROM note_tags`).Scan(&s.Tags); err != nil {
		return nil, fmt.Errorf("index: tag stats: %w", err)
	}
	return s, nil
}

// countByGroup fills dst from a two-column (key, count) query and adds the
// counts into total.
func (db *DB) countByGroup(query string, dst map[string]int, total *int) error {
	rows, err := db.conn.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		dst[key] = n
		*total += n
	}
	return rows.Err()
}

// Degrees returns id -> total distinct edge count (outbound plus inbound)
// for every note, including zero-degree notes.
func (db *DB) Degrees() (map[string]int, error) {
	rows, err := db.conn.Query(`
		SELECT n.id, count(l.source)
		FROM notes n
		LEFT JOIN links l ON l.source = n.id OR l.target = n.id
		GROUP BY n.id
	`)
	if err != nil {
		return nil, fmt.Errorf("index: degrees: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var deg int
		if err := rows.Scan(&id, &deg); err != nil {
			return nil, err
		}
		out[id] = deg
	}
	return out, rows.Err()
}

// NotesByIDs loads the given notes, skipping IDs that are not indexed.
// Results come back in ID order.
func (db *DB) NotesByIDs(ids []string) ([]models.Note, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return db.queryNotes(
		`SELECT `+noteCols+` FROM notes WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id`,
		args...)
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	var out []rune
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

// qualifiedNoteCols is noteCols with each column prefixed by the notes alias.
const qualifiedNoteCols = `n.id, n.title, n.note_type, n.body, n.metadata, n.created_at, n.updated_at`
