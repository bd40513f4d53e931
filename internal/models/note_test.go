package models

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
)

func validNote() Note {
	id := NewID()
	created, _ := IDTime(id)
	return Note{
		ID:        id,
		Title:     "A note",
		Type:      TypePermanent,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestNewIDShape(t *testing.T) {
	id := NewID()
	if !IsID(id) {
		t.Fatalf("NewID produced malformed id %q", id)
	}
	if len(id) != 24 {
		t.Errorf("id length = %d, want 24", len(id))
	}
}

func TestNewIDMonotonic(t *testing.T) {
	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = NewID()
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatal("ids are not lexically sorted in generation order")
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			t.Fatalf("duplicate id %q at position %d", ids[i], i)
		}
	}
}

func TestIDTimeRoundTrip(t *testing.T) {
	id := NewID()
	ts, ok := IDTime(id)
	if !ok {
		t.Fatalf("IDTime rejected %q", id)
	}
	if formatID(ts) != id {
		t.Errorf("formatID(IDTime(id)) = %q, want %q", formatID(ts), id)
	}
	if _, ok := IDTime("not-an-id"); ok {
		t.Error("IDTime accepted a malformed id")
	}
}

func TestIsID(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"20250115T093042123456789", true},
		{"20250115T093042", false},
		{"2025-01-15T093042123456789", false},
		{"20250115T09304212345678", false},
		{"", false},
		{"A note title", false},
	}
	for _, c := range cases {
		if got := IsID(c.in); got != c.want {
			t.Errorf("IsID(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestValidateOK(t *testing.T) {
	n := validNote()
	n.Tags = []string{"alpha", "beta"}
	n.Links = []Link{{Source: n.ID, Target: "20240101T000000000000001", Type: LinkExtends}}
	if err := n.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	base := validNote()

	cases := []struct {
		name   string
		mutate func(*Note)
	}{
		{"blank title", func(n *Note) { n.Title = "   " }},
		{"bad id", func(n *Note) { n.ID = "nope" }},
		{"bad type", func(n *Note) { n.Type = "essay" }},
		{"non-canonical tag", func(n *Note) { n.Tags = []string{"Mixed Case"} }},
		{"self link", func(n *Note) {
			n.Links = []Link{{Source: n.ID, Target: n.ID, Type: LinkReference}}
		}},
		{"unknown link type", func(n *Note) {
			n.Links = []Link{{Source: n.ID, Target: "20240101T000000000000001", Type: "mentions"}}
		}},
		{"link target not an id", func(n *Note) {
			n.Links = []Link{{Source: n.ID, Target: "some title", Type: LinkReference}}
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n := base
			c.mutate(&n)
			err := n.Validate()
			if err == nil {
				t.Fatal("Validate accepted invalid note")
			}
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("error %v does not wrap ErrValidation", err)
			}
		})
	}
}

func TestLinkTypeInverse(t *testing.T) {
	cases := map[LinkType]LinkType{
		LinkReference:   LinkReference,
		LinkRelated:     LinkRelated,
		LinkExtends:     LinkExtendedBy,
		LinkExtendedBy:  LinkExtends,
		LinkRefines:     LinkRefinedBy,
		LinkContradicts: LinkContradictedBy,
		LinkQuestions:   LinkQuestionedBy,
		LinkSupports:    LinkSupportedBy,
	}
	for typ, want := range cases {
		if got := typ.Inverse(); got != want {
			t.Errorf("%s.Inverse() = %s, want %s", typ, got, want)
		}
		if got := typ.Inverse().Inverse(); got != typ {
			t.Errorf("double inverse of %s = %s", typ, got)
		}
	}
}

func TestParseLinkType(t *testing.T) {
	if typ, err := ParseLinkType(" Extends "); err != nil || typ != LinkExtends {
		t.Errorf("ParseLinkType = %v, %v", typ, err)
	}
	if _, err := ParseLinkType("mentions"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unknown link type error = %v", err)
	}
}

func TestParseNoteType(t *testing.T) {
	if typ, err := ParseNoteType("HUB"); err != nil || typ != TypeHub {
		t.Errorf("ParseNoteType = %v, %v", typ, err)
	}
	if _, err := ParseNoteType("essay"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unknown note type error = %v", err)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Alpha", "beta ", "ALPHA", "", "  "})
	want := []string{"alpha", "beta"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeTags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NormalizeTags[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHasLink(t *testing.T) {
	n := validNote()
	target := "20240101T000000000000001"
	n.Links = []Link{{Source: n.ID, Target: target, Type: LinkExtends}}

	if !n.HasLink(target, LinkExtends) {
		t.Error("HasLink missed an existing edge")
	}
	if n.HasLink(target, LinkReference) {
		t.Error("HasLink matched a different type")
	}
	if n.HasLink("20240101T000000000000002", LinkExtends) {
		t.Error("HasLink matched a different target")
	}
}

func TestIDTimePrecision(t *testing.T) {
	at := time.Date(2025, 1, 15, 9, 30, 42, 123456789, time.Local)
	id := formatID(at)
	ts, ok := IDTime(id)
	if !ok {
		t.Fatalf("IDTime rejected %q", id)
	}
	if !ts.Equal(at) {
		t.Errorf("IDTime = %v, want %v", ts, at)
	}
}
