package parser

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/models"
)

func sampleNote() models.Note {
	created := time.Date(2025, 1, 15, 9, 30, 42, 123456789, time.UTC)
	return models.Note{
		ID:        "20250115T093042123456789",
		Title:     "Spaced repetition",
		Body:      "Reviewing at increasing intervals strengthens recall.",
		Type:      models.TypePermanent,
		Tags:      []string{"learning", "memory"},
		Metadata:  map[string]string{"source": "manual"},
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
		Links: []models.Link{
			{Source: "20250115T093042123456789", Target: "20250114T081500000000001", Type: models.LinkExtends, Description: "builds on forgetting curve"},
			{Source: "20250115T093042123456789", Target: "20250113T120000000000002", Type: models.LinkReference},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	want := sampleNote()
	data, err := Serialize(want)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(*got, want) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", *got, want)
	}
}

func TestRoundTripMinimal(t *testing.T) {
	want := sampleNote()
	want.Body = ""
	want.Tags = nil
	want.Links = nil
	want.Metadata = nil

	data, err := Serialize(want)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(*got, want) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", *got, want)
	}
}

func TestRoundTripBodyNewlines(t *testing.T) {
	n := sampleNote()
	n.Links = nil
	n.Body = "First paragraph.\n\nSecond paragraph.\n\n\n"

	data, err := Serialize(n)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Body != "First paragraph.\n\nSecond paragraph." {
		t.Errorf("body = %q", got.Body)
	}
	// A second pass must be byte-identical.
	again, err := Serialize(*got)
	if err != nil {
		t.Fatalf("Serialize again: %v", err)
	}
	if string(again) != string(data) {
		t.Errorf("serialize not stable:\nfirst  %q\nsecond %q", data, again)
	}
}

func TestSerializeRejectsInvalid(t *testing.T) {
	n := sampleNote()
	n.Title = "  "
	if _, err := Serialize(n); err == nil {
		t.Fatal("Serialize accepted a blank title")
	}
}

func TestSerializeTimestampPrecision(t *testing.T) {
	n := sampleNote()
	data, err := Serialize(n)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !got.CreatedAt.Equal(n.CreatedAt) || got.CreatedAt.Nanosecond() != 123456789 {
		t.Errorf("created = %v, want %v", got.CreatedAt, n.CreatedAt)
	}
}

func TestParseFailures(t *testing.T) {
	valid, err := Serialize(sampleNote())
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	cases := []struct {
		name string
		data string
	}{
		{"empty file", ""},
		{"no metadata block", "just some text\n"},
		{"leading blank line", "\n" + string(valid)},
		{"unterminated metadata", "---\nid: 20250115T093042123456789\n"},
		{"malformed yaml", "---\nid: [\n---\nbody\n"},
		{"bad id", strings.Replace(string(valid), "20250115T093042123456789", "oops", 1)},
		{"bad type", strings.Replace(string(valid), "type: permanent", "type: essay", 1)},
		{"bad created", strings.Replace(string(valid), "2025-01-15T09:30:42.123456789Z", "yesterday", 1)},
		{"malformed link line", strings.Replace(string(valid), "- reference [[20250113T120000000000002]]", "- [[20250113T120000000000002]]", 1)},
		{"unknown link type", strings.Replace(string(valid), "- reference [[", "- mentions [[", 1)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Parse([]byte(c.data)); err == nil {
				t.Fatal("Parse accepted malformed content")
			}
		})
	}
}

func TestParseEmptyTitleRejected(t *testing.T) {
	data := "---\nid: 20250115T093042123456789\ntitle: \"\"\ntype: permanent\ncreated: 2025-01-15T09:30:42Z\nupdated: 2025-01-15T09:30:42Z\n---\nbody\n"
	if _, err := Parse([]byte(data)); err == nil {
		t.Fatal("Parse accepted empty title")
	}
}

func TestParseNormalizesTags(t *testing.T) {
	data := "---\nid: 20250115T093042123456789\ntitle: T\ntype: permanent\ntags:\n  - Alpha\n  - ALPHA\n  - beta\ncreated: 2025-01-15T09:30:42Z\nupdated: 2025-01-15T09:30:42Z\n---\nbody\n"
	n, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(n.Tags) != 2 || n.Tags[0] != "alpha" || n.Tags[1] != "beta" {
		t.Errorf("tags = %v", n.Tags)
	}
}

func TestLinksSectionWithoutBody(t *testing.T) {
	n := sampleNote()
	n.Body = ""
	data, err := Serialize(n)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Body != "" {
		t.Errorf("body = %q, want empty", got.Body)
	}
	if len(got.Links) != 2 {
		t.Errorf("links = %d, want 2", len(got.Links))
	}
}

func TestRoundTripBodyContainingLinksHeading(t *testing.T) {
	linkless := sampleNote()
	linkless.Links = nil
	linkless.Body = "## Links\nnot a bullet, just prose."

	linked := sampleNote()
	linked.Body = "Intro.\n\n## Links\n\nProse under a heading the body happens to use."

	for _, want := range []models.Note{linkless, linked} {
		data, err := Serialize(want)
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
		got, err := Parse(data)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if !reflect.DeepEqual(*got, want) {
			t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", *got, want)
		}
	}
}

func TestLinkDescriptionsSurvive(t *testing.T) {
	n := sampleNote()
	data, err := Serialize(n)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Links[0].Description != "builds on forgetting curve" {
		t.Errorf("description = %q", got.Links[0].Description)
	}
	if got.Links[1].Description != "" {
		t.Errorf("empty description came back as %q", got.Links[1].Description)
	}
}
