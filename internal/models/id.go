package models

import (
	"fmt"
	"sync"
	"time"
)

// ID generation state. IDs are derived from the creation timestamp and must
// stay strictly increasing within the process even when the clock does not
// advance between calls.
var (
	idMu   sync.Mutex
	lastID string
)

// NewID returns a lexically sortable note ID in the form
// YYYYMMDDTHHMMSS followed by a 9-digit nanosecond component.
// Collisions are avoided by bumping the nanosecond component.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()

	id := formatID(time.Now())
	for id <= lastID {
		id = bumpID(lastID)
	}
	lastID = id
	return id
}

func formatID(t time.Time) string {
	return fmt.Sprintf("%s%09d", t.Format("20060102T150405"), t.Nanosecond())
}

// bumpID increments the nanosecond component of id. On overflow it re-derives
// from one second later, keeping the ID well-formed.
func bumpID(id string) string {
	t, err := time.ParseInLocation("20060102T150405", id[:15], time.Local)
	if err != nil {
		// Should not happen for IDs we produced; fall back to current time.
		return formatID(time.Now())
	}
	var ns int
	_, _ = fmt.Sscanf(id[15:], "%d", &ns)
	ns++
	if ns > 999999999 {
		return formatID(t.Add(time.Second))
	}
	return fmt.Sprintf("%s%09d", id[:15], ns)
}

// IDTime recovers the creation timestamp embedded in an ID. The boolean is
// false when id does not have the expected shape.
func IDTime(id string) (time.Time, bool) {
	if !IsID(id) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("20060102T150405", id[:15], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	var ns int
	if _, err := fmt.Sscanf(id[15:], "%d", &ns); err != nil {
		return time.Time{}, false
	}
	return t.Add(time.Duration(ns)), true
}
