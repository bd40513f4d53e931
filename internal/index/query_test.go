package index

import (
	"testing"
	"time"

	"github.com/starford/ansuz/internal/models"
)

func TestFindByTitleExact(t *testing.T) {
	db := testDB(t)
	mustUpsert(t, db, note(1, "Spaced repetition"))
	mustUpsert(t, db, note(2, "Spaced repetition"))
	mustUpsert(t, db, note(3, "Spaced"))

	got, err := db.FindByTitle("Spaced repetition")
	if err != nil {
		t.Fatalf("FindByTitle: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("matches = %d, want 2", len(got))
	}
	if got[0].ID >= got[1].ID {
		t.Errorf("matches not in ID order: %s, %s", got[0].ID, got[1].ID)
	}

	none, err := db.FindByTitle("spaced repetition")
	if err != nil {
		t.Fatalf("FindByTitle: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("case-different title matched %d notes", len(none))
	}
}

func TestFindByTag(t *testing.T) {
	db := testDB(t)
	mustUpsert(t, db, note(1, "A", "golang", "testing"))
	mustUpsert(t, db, note(2, "B", "go"))
	mustUpsert(t, db, note(3, "C", "rust"))

	exact, err := db.FindByTag("go", false)
	if err != nil {
		t.Fatalf("FindByTag exact: %v", err)
	}
	if len(exact) != 1 || exact[0].Title != "B" {
		t.Errorf("exact matches = %v", exact)
	}

	prefixed, err := db.FindByTag("go", true)
	if err != nil {
		t.Fatalf("FindByTag prefix: %v", err)
	}
	if len(prefixed) != 2 {
		t.Errorf("prefix matches = %d, want 2", len(prefixed))
	}

	// Tag queries are normalized the same way tags are stored.
	upper, err := db.FindByTag(" GO ", false)
	if err != nil {
		t.Fatalf("FindByTag normalized: %v", err)
	}
	if len(upper) != 1 {
		t.Errorf("normalized matches = %d, want 1", len(upper))
	}
}

func TestFindByTagEscapesLike(t *testing.T) {
	db := testDB(t)
	mustUpsert(t, db, note(1, "A", "c_v"))
	mustUpsert(t, db, note(2, "B", "cxv"))

	got, err := db.FindByTag("c_v", true)
	if err != nil {
		t.Fatalf("FindByTag: %v", err)
	}
	if len(got) != 1 || got[0].Title != "A" {
		t.Errorf("underscore was treated as a wildcard: %v", got)
	}
}

func TestFindByContentNoLimitReturnsAllCandidates(t *testing.T) {
	db := testDB(t)
	for seq := 1; seq <= 120; seq++ {
		n := note(seq, "Topic")
		n.Body = "shared keyword"
		mustUpsert(t, db, n)
	}

	all, err := db.FindByContent([]string{"keyword"}, 0)
	if err != nil {
		t.Fatalf("FindByContent: %v", err)
	}
	if len(all) != 120 {
		t.Errorf("unlimited candidates = %d, want 120", len(all))
	}

	capped, err := db.FindByContent([]string{"keyword"}, 10)
	if err != nil {
		t.Fatalf("FindByContent limited: %v", err)
	}
	if len(capped) != 10 {
		t.Errorf("limited candidates = %d, want 10", len(capped))
	}
}

func TestFindByContent(t *testing.T) {
	db := testDB(t)
	a := note(1, "Graph theory")
	a.Body = "Nodes and edges."
	b := note(2, "Cooking")
	b.Body = "A graph of flavours."
	c := note(3, "Unrelated")
	c.Body = "Nothing here."
	mustUpsert(t, db, a)
	mustUpsert(t, db, b)
	mustUpsert(t, db, c)

	got, err := db.FindByContent([]string{"graph"}, 0)
	if err != nil {
		t.Fatalf("FindByContent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("candidates = %d, want 2", len(got))
	}
}

func TestListByDate(t *testing.T) {
	db := testDB(t)
	for i := 1; i <= 5; i++ {
		mustUpsert(t, db, note(i, "N"))
	}

	page, total, err := db.ListByDate("created", true, 2, 0)
	if err != nil {
		t.Fatalf("ListByDate: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 {
		t.Fatalf("page = %d notes, want 2", len(page))
	}
	if !page[0].CreatedAt.After(page[1].CreatedAt) {
		t.Errorf("descending order violated: %v, %v", page[0].CreatedAt, page[1].CreatedAt)
	}

	asc, _, err := db.ListByDate("created", false, 2, 2)
	if err != nil {
		t.Fatalf("ListByDate offset: %v", err)
	}
	if asc[0].CreatedAt.Nanosecond() != 3 {
		t.Errorf("offset page starts at seq %d, want 3", asc[0].CreatedAt.Nanosecond())
	}
}

func TestListByDateUpdatedOrder(t *testing.T) {
	db := testDB(t)
	a, b := note(1, "A"), note(2, "B")
	// a was created first but touched last.
	a.UpdatedAt = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	mustUpsert(t, db, a)
	mustUpsert(t, db, b)

	page, _, err := db.ListByDate("updated", true, 0, 0)
	if err != nil {
		t.Fatalf("ListByDate: %v", err)
	}
	if page[0].ID != a.ID {
		t.Errorf("most recently updated = %s, want %s", page[0].ID, a.ID)
	}
}

func TestAllTags(t *testing.T) {
	db := testDB(t)
	mustUpsert(t, db, note(1, "A", "shared", "rare"))
	mustUpsert(t, db, note(2, "B", "shared"))

	tags, err := db.AllTags()
	if err != nil {
		t.Fatalf("AllTags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("tags = %v", tags)
	}
	if tags[0].Name != "shared" || tags[0].Count != 2 {
		t.Errorf("tags[0] = %+v, want shared/2", tags[0])
	}
	if tags[1].Name != "rare" || tags[1].Count != 1 {
		t.Errorf("tags[1] = %+v, want rare/1", tags[1])
	}
}

func TestStats(t *testing.T) {
	db := testDB(t)
	a := note(1, "A", "x", "y")
	b := note(2, "B", "x")
	b.Type = models.TypeHub
	a.Links = []models.Link{{Source: a.ID, Target: b.ID, Type: models.LinkExtends}}
	mustUpsert(t, db, a)
	mustUpsert(t, db, b)

	s, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.Notes != 2 || s.Links != 1 || s.Tags != 2 {
		t.Errorf("stats = %+v", s)
	}
	if s.NotesByType["permanent"] != 1 || s.NotesByType["hub"] != 1 {
		t.Errorf("notes by type = %v", s.NotesByType)
	}
	if s.LinksByType["extends"] != 1 {
		t.Errorf("links by type = %v", s.LinksByType)
	}
}

func TestDegreesIncludeZero(t *testing.T) {
	db := testDB(t)
	a, b, c := note(1, "A"), note(2, "B"), note(3, "C")
	a.Links = []models.Link{{Source: a.ID, Target: b.ID, Type: models.LinkReference}}
	mustUpsert(t, db, a)
	mustUpsert(t, db, b)
	mustUpsert(t, db, c)

	degrees, err := db.Degrees()
	if err != nil {
		t.Fatalf("Degrees: %v", err)
	}
	if degrees[a.ID] != 1 || degrees[b.ID] != 1 {
		t.Errorf("degrees = %v", degrees)
	}
	deg, ok := degrees[c.ID]
	if !ok || deg != 0 {
		t.Errorf("isolated note degree = %d (present %v), want 0", deg, ok)
	}
}

func TestNotesByIDs(t *testing.T) {
	db := testDB(t)
	a, b := note(1, "A"), note(2, "B")
	mustUpsert(t, db, a)
	mustUpsert(t, db, b)

	got, err := db.NotesByIDs([]string{b.ID, a.ID, "20990101T000000000000001"})
	if err != nil {
		t.Fatalf("NotesByIDs: %v", err)
	}
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
		t.Errorf("NotesByIDs = %v", got)
	}

	empty, err := db.NotesByIDs(nil)
	if err != nil {
		t.Fatalf("NotesByIDs nil: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("NotesByIDs(nil) = %v", empty)
	}
}
