// Package parser is the codec for the canonical note file format: a YAML
// metadata block, a free-form Markdown body, and a trailing "## Links"
// section with one bullet per outbound edge. Serialize and Parse round-trip
// losslessly for every valid note.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/models"
)

const (
	delim        = "---"
	linksHeading = "## Links"
)

// linkRe matches one links-section bullet: "- <type> [[<target-id>]] <description>".
var linkRe = regexp.MustCompile(`^- ([a-z_]+) \[\[(\d{8}T\d{15})\]\](?: (.*))?$`)

// metaBlock is the YAML frontmatter layout. Timestamps are stored as
// RFC 3339 strings with nanosecond precision so the ID's creation instant
// survives a round trip exactly.
type metaBlock struct {
	ID      string            `yaml:"id"`
	Title   string            `yaml:"title"`
	Type    string            `yaml:"type"`
	Tags    []string          `yaml:"tags,omitempty"`
	Created string            `yaml:"created"`
	Updated string            `yaml:"updated"`
	Meta    map[string]string `yaml:"meta,omitempty"`
}

// Serialize renders a note into its canonical file content. The body is
// normalized to end with exactly one trailing newline; Parse applies the
// same normalization, so parse(serialize(n)) == n.
func Serialize(n models.Note) ([]byte, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	fm := metaBlock{
		ID:      n.ID,
		Title:   n.Title,
		Type:    string(n.Type),
		Tags:    n.Tags,
		Created: n.CreatedAt.Format(time.RFC3339Nano),
		Updated: n.UpdatedAt.Format(time.RFC3339Nano),
		Meta:    n.Metadata,
	}
	head, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("parser: marshal metadata: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(head)
	buf.WriteString(delim + "\n")

	body := strings.TrimRight(n.Body, "\n")
	if body != "" {
		buf.WriteString(body)
		buf.WriteString("\n")
	}

	// A body line that reads exactly like the links heading would shadow the
	// real section boundary, so such notes always get a trailing section,
	// even an empty one. Parse anchors on the last heading occurrence.
	if len(n.Links) > 0 || bodyContainsHeading(body) {
		buf.WriteString("\n" + linksHeading + "\n\n")
		for _, l := range n.Links {
			buf.WriteString("- " + string(l.Type) + " [[" + l.Target + "]]")
			if l.Description != "" {
				buf.WriteString(" " + l.Description)
			}
			buf.WriteString("\n")
		}
	}

	return buf.Bytes(), nil
}

// bodyContainsHeading reports whether any line of body is the links heading.
func bodyContainsHeading(body string) bool {
	if body == "" {
		return false
	}
	return strings.Contains("\n"+body+"\n", "\n"+linksHeading+"\n")
}

// Parse reconstructs a note from canonical file content. A missing or
// malformed metadata block, an unknown note type, or a malformed link bullet
// is an error; callers scanning many files report these per file rather
// than aborting.
func Parse(data []byte) (*models.Note, error) {
	fm, content, err := splitMeta(data)
	if err != nil {
		return nil, err
	}

	if !models.IsID(fm.ID) {
		return nil, fmt.Errorf("parser: metadata id %q is not a note ID", fm.ID)
	}
	if strings.TrimSpace(fm.Title) == "" {
		return nil, fmt.Errorf("parser: metadata title is empty")
	}
	noteType, err := models.ParseNoteType(fm.Type)
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, fm.Created)
	if err != nil {
		return nil, fmt.Errorf("parser: metadata created: %w", err)
	}
	updated, err := time.Parse(time.RFC3339Nano, fm.Updated)
	if err != nil {
		return nil, fmt.Errorf("parser: metadata updated: %w", err)
	}

	body, links, err := splitLinks(fm.ID, content)
	if err != nil {
		return nil, err
	}

	return &models.Note{
		ID:        fm.ID,
		Title:     fm.Title,
		Body:      body,
		Type:      noteType,
		Tags:      models.NormalizeTags(fm.Tags),
		Links:     links,
		Metadata:  fm.Meta,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

// splitMeta separates the YAML metadata block (between leading --- delimiters)
// from the rest of the file.
func splitMeta(data []byte) (*metaBlock, string, error) {
	if !bytes.HasPrefix(data, []byte(delim+"\n")) {
		return nil, "", fmt.Errorf("parser: missing metadata block")
	}
	rest := data[len(delim)+1:]
	idx := bytes.Index(rest, []byte("\n"+delim+"\n"))
	var yamlBlock, content []byte
	switch {
	case idx >= 0:
		yamlBlock = rest[:idx+1]
		content = rest[idx+1+len(delim)+1:]
	case bytes.HasSuffix(rest, []byte("\n"+delim)):
		// Metadata-only file with no body.
		yamlBlock = rest[:len(rest)-len(delim)]
	default:
		return nil, "", fmt.Errorf("parser: unterminated metadata block")
	}

	var fm metaBlock
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, "", fmt.Errorf("parser: malformed metadata: %w", err)
	}
	return &fm, string(content), nil
}

// splitLinks separates the trailing links section from the body. The section
// starts at the last occurrence of the links heading; every non-blank line
// after it must be a well-formed link bullet.
func splitLinks(sourceID, content string) (string, []models.Link, error) {
	// Padding with a newline lets one LastIndex cover a heading at the very
	// start of the content too.
	marker := "\n" + linksHeading + "\n"
	padded := "\n" + content
	idx := strings.LastIndex(padded, marker)
	if idx < 0 {
		return strings.TrimRight(content, "\n"), nil, nil
	}
	var body string
	if idx > 0 {
		body = padded[1:idx]
	}
	section := padded[idx+len(marker):]

	var links []models.Link
	for _, line := range strings.Split(section, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := linkRe.FindStringSubmatch(line)
		if m == nil {
			return "", nil, fmt.Errorf("parser: malformed link line %q", line)
		}
		linkType, err := models.ParseLinkType(m[1])
		if err != nil {
			return "", nil, fmt.Errorf("parser: link line %q: %w", line, err)
		}
		links = append(links, models.Link{
			Source:      sourceID,
			Target:      m[2],
			Type:        linkType,
			Description: m[3],
		})
	}
	return strings.TrimRight(body, "\n"), links, nil
}
