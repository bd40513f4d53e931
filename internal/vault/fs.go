package vault

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

const (
	noteExt  = ".md"
	lockName = ".ansuz.lock"
)

// FS implements Provider backed by a flat directory on the local file system.
type FS struct {
	root string
	lock *flock.Flock
}

// Verify FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)

// NewFS opens a vault rooted at dir, creating it if needed, and takes an
// advisory lock so only one writing process owns the vault at a time.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("vault: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("vault: create root: %w", err)
	}

	lock := flock.New(filepath.Join(abs, lockName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("vault: acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("vault: %s is locked by another process", abs)
	}

	return &FS{root: abs, lock: lock}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

// Close releases the vault lock.
func (f *FS) Close() error {
	return f.lock.Unlock()
}

// path maps an ID to its file. IDs are validated by callers, but reject
// anything path-like outright so a bad ID can never escape the root.
func (f *FS) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id != filepath.Base(id) {
		return "", fmt.Errorf("vault: invalid note id %q", id)
	}
	return filepath.Join(f.root, id+noteExt), nil
}

// Read returns the content of the note file for id.
func (f *FS) Read(id string) ([]byte, error) {
	p, err := f.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("vault: read %s: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("vault: read %s: %w", id, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file in the same directory, fsync,
// then rename. A crash can never leave a half-written note file.
func (f *FS) Write(id string, content []byte) error {
	p, err := f.path(id)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".ansuz-tmp-*")
	if err != nil {
		return fmt.Errorf("vault: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("vault: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("vault: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("vault: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes the note file for id.
func (f *FS) Delete(id string) error {
	p, err := f.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("vault: delete %s: %w", id, apperr.ErrNotFound)
		}
		return fmt.Errorf("vault: delete %s: %w", id, err)
	}
	return nil
}

// List yields every note ID on disk in lexical order. Files that do not look
// like note files (wrong extension, non-ID stem) are skipped silently; they
// are not part of the vault's data set.
func (f *FS) List() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		entries, err := os.ReadDir(f.root)
		if err != nil {
			yield("", fmt.Errorf("vault: list: %w", err))
			return
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), noteExt) {
				continue
			}
			id := strings.TrimSuffix(e.Name(), noteExt)
			if !models.IsID(id) {
				continue
			}
			if !yield(id, nil) {
				return
			}
		}
	}
}
