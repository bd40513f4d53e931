// Package models defines the domain types for Ansuz.
package models

import (
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
)

// NoteType classifies a note within the zettelkasten method.
type NoteType string

// Note types.
const (
	TypeFleeting   NoteType = "fleeting"
	TypeLiterature NoteType = "literature"
	TypePermanent  NoteType = "permanent"
	TypeStructure  NoteType = "structure"
	TypeHub        NoteType = "hub"
)

var noteTypes = []any{TypeFleeting, TypeLiterature, TypePermanent, TypeStructure, TypeHub}

// ParseNoteType converts s to a NoteType, failing on unknown values.
func ParseNoteType(s string) (NoteType, error) {
	t := NoteType(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range noteTypes {
		if t == v.(NoteType) {
			return t, nil
		}
	}
	return "", apperr.Validationf("note_type", "unknown note type %q", s)
}

// LinkType is the semantic kind of a directed edge between two notes.
type LinkType string

// Link types. Asymmetric types come in forward/inverse pairs; the canonical
// file only ever records the forward direction the author wrote, and the
// inverse view is computed at query time.
const (
	LinkReference      LinkType = "reference"
	LinkExtends        LinkType = "extends"
	LinkExtendedBy     LinkType = "extended_by"
	LinkRefines        LinkType = "refines"
	LinkRefinedBy      LinkType = "refined_by"
	LinkContradicts    LinkType = "contradicts"
	LinkContradictedBy LinkType = "contradicted_by"
	LinkQuestions      LinkType = "questions"
	LinkQuestionedBy   LinkType = "questioned_by"
	LinkSupports       LinkType = "supports"
	LinkSupportedBy    LinkType = "supported_by"
	LinkRelated        LinkType = "related"
)

var linkInverses = map[LinkType]LinkType{
	LinkReference:      LinkReference,
	LinkExtends:        LinkExtendedBy,
	LinkExtendedBy:     LinkExtends,
	LinkRefines:        LinkRefinedBy,
	LinkRefinedBy:      LinkRefines,
	LinkContradicts:    LinkContradictedBy,
	LinkContradictedBy: LinkContradicts,
	LinkQuestions:      LinkQuestionedBy,
	LinkQuestionedBy:   LinkQuestions,
	LinkSupports:       LinkSupportedBy,
	LinkSupportedBy:    LinkSupports,
	LinkRelated:        LinkRelated,
}

// ParseLinkType converts s to a LinkType, failing on unknown values.
func ParseLinkType(s string) (LinkType, error) {
	t := LinkType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := linkInverses[t]; !ok {
		return "", apperr.Validationf("link_type", "unknown link type %q", s)
	}
	return t, nil
}

// Inverse returns the link type seen from the target's side. Symmetric types
// are their own inverse.
func (t LinkType) Inverse() LinkType {
	if inv, ok := linkInverses[t]; ok {
		return inv
	}
	return t
}

// Valid reports whether t is part of the fixed vocabulary.
func (t LinkType) Valid() bool {
	_, ok := linkInverses[t]
	return ok
}

// Link is a directed edge from one note to another.
type Link struct {
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Type        LinkType `json:"type"`
	Description string   `json:"description,omitempty"`
}

// Note is one zettel: identity, metadata, body, and outbound links.
// Treated as an immutable value; mutations go through the note service,
// which produces a new Note with a strictly later UpdatedAt.
type Note struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Type      NoteType          `json:"type"`
	Tags      []string          `json:"tags,omitempty"`
	Links     []Link            `json:"links,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

var idRe = regexp.MustCompile(`^\d{8}T\d{6}\d{9}$`)

// IsID reports whether s has the timestamp ID shape. Lookups use this to
// decide between exact-ID and title resolution.
func IsID(s string) bool {
	return idRe.MatchString(s)
}

// Validate checks the note against the domain rules. The returned error wraps
// apperr.ErrValidation and names the offending field.
func (n Note) Validate() error {
	err := validation.ValidateStruct(&n,
		validation.Field(&n.ID, validation.Required, validation.Match(idRe)),
		validation.Field(&n.Title, validation.By(nonBlank)),
		validation.Field(&n.Type, validation.Required, validation.In(noteTypes...)),
	)
	if err != nil {
		return apperr.Validation(firstField(err), err)
	}
	for _, tag := range n.Tags {
		if tag != NormalizeTag(tag) || tag == "" {
			return apperr.Validationf("tags", "tag %q is not in canonical form", tag)
		}
	}
	for _, l := range n.Links {
		if !l.Type.Valid() {
			return apperr.Validationf("links", "unknown link type %q", l.Type)
		}
		if !IsID(l.Target) {
			return apperr.Validationf("links", "target %q is not a note ID", l.Target)
		}
		if l.Target == n.ID {
			return apperr.Validationf("links", "self-link on %s", n.ID)
		}
	}
	return nil
}

func nonBlank(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
}

// firstField extracts one field name from an ozzo validation.Errors map so
// the wrapped error can identify the offending field.
func firstField(err error) string {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for f := range verrs {
			return strings.ToLower(f)
		}
	}
	return "note"
}

// NormalizeTag lowercases and trims a tag label.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeTags canonicalizes and deduplicates tags, preserving first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, t := range tags {
		t = NormalizeTag(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// HasLink reports whether the note already carries an exact (target, type) edge.
func (n Note) HasLink(target string, typ LinkType) bool {
	for _, l := range n.Links {
		if l.Target == target && l.Type == typ {
			return true
		}
	}
	return false
}
