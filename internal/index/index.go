package index

import "github.com/starford/ansuz/internal/models"

// TagCount is one tag with the number of notes carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Violation is one referential-consistency failure found by VerifyIntegrity.
type Violation struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// Stats is an aggregate summary of the index contents.
type Stats struct {
	Notes       int            `json:"notes"`
	NotesByType map[string]int `json:"notes_by_type"`
	Links       int            `json:"links"`
	LinksByType map[string]int `json:"links_by_type"`
	Tags        int            `json:"tags"`
}

// NoteIndex defines the operations the rest of the system needs from the
// index. Consumers depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n models.Note, checksum string) error
	DeleteNote(id string) ([]string, error)
	GetNote(id string) (*models.Note, error)
	GetChecksum(id string) (string, error)
	UpsertLink(l models.Link) error
	RemoveLink(source, target string, typ models.LinkType) error
	LinksOf(id string) (outbound, inbound []models.Link, err error)
	FindByTitle(title string) ([]models.Note, error)
	FindByTag(tag string, prefix bool) ([]models.Note, error)
	FindByContent(terms []string, limit int) ([]models.Note, error)
	ListByDate(order string, descending bool, limit, offset int) ([]models.Note, int, error)
	AllNotes() ([]models.Note, error)
	NotesByIDs(ids []string) ([]models.Note, error)
	AllTags() ([]TagCount, error)
	Stats() (*Stats, error)
	AllChecksums() (map[string]string, error)
	Degrees() (map[string]int, error)
	VerifyIntegrity() ([]Violation, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
