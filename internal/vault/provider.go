// Package vault owns the canonical on-disk representation of notes: one file
// per note, named by its ID. The vault is the sole source of truth; the
// SQLite index is derived from it and disposable.
package vault

import "iter"

// Provider is the interface for canonical note file operations.
type Provider interface {
	// Write atomically replaces the file for id with content.
	Write(id string, content []byte) error
	// Read returns the raw content of the note file for id.
	// Missing files report apperr.ErrNotFound.
	Read(id string) ([]byte, error)
	// Delete removes the note file for id. Missing files report apperr.ErrNotFound.
	Delete(id string) error
	// List yields the ID of every note file present, in lexical (= creation)
	// order. Each pulled value re-reads nothing; the sequence is restartable
	// by calling List again, which re-scans the directory.
	List() iter.Seq2[string, error]
	// Close releases the vault's process lock.
	Close() error
}
