// Package testutil provides shared test helpers for setting up vaults and databases.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/vault"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a vault.Provider.
func TestVault(t *testing.T) (string, vault.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := vault.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return vaultDir, store
}

// NewNote builds a valid note with a fresh ID for tests.
func NewNote(t *testing.T, title string, tags ...string) models.Note {
	t.Helper()
	id := models.NewID()
	now, _ := models.IDTime(id)
	return models.Note{
		ID:        id,
		Title:     title,
		Type:      models.TypePermanent,
		Tags:      models.NormalizeTags(tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NoteAt builds a valid note with a fixed creation instant, for tests that
// depend on ordering.
func NoteAt(t *testing.T, title string, at time.Time) models.Note {
	t.Helper()
	n := NewNote(t, title)
	n.CreatedAt = at
	n.UpdatedAt = at
	return n
}
