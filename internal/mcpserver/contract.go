package mcpserver

// NoteFormatContract describes the canonical note file format that
// consumers should follow when reading or editing vault files by hand.
const NoteFormatContract = `# Ansuz Note Format Contract

Every note in the vault is a single Markdown file named ` + "`" + `<id>.md` + "`" + ` that
MUST follow this structure. The vault files are the source of truth; the
query index is derived from them and can be rebuilt at any time.

## Structure

` + "```" + `markdown
---
id: 20250115T093042123456789          # REQUIRED - assigned at creation, never changes
title: Human-readable title           # REQUIRED - non-blank
type: permanent                       # REQUIRED - fleeting | literature | permanent | structure | hub
tags:                                 # OPTIONAL - YAML list, lowercase
  - tag-one
  - tag-two
created: 2025-01-15T09:30:42.123456789Z   # REQUIRED - RFC 3339 with nanoseconds
updated: 2025-01-15T09:30:42.123456789Z   # REQUIRED - RFC 3339 with nanoseconds
---

Body text in standard Markdown.

## Links

- reference [[20250114T081500000000001]] optional description text
- extends [[20250113T120000000000002]]
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "`" + `---` + "`" + ` fences must be the first
   thing in the file, with no leading blank lines.
2. **The ` + "`" + `id` + "`" + ` field must match the filename stem.** The ID format is
   ` + "`" + `YYYYMMDDThhmmss` + "`" + ` followed by nine nanosecond digits; IDs sort
   lexically in creation order.
3. **Tags** are stored lowercase with surrounding whitespace trimmed.
4. **Links** live in a trailing ` + "`" + `## Links` + "`" + ` section, one bullet per edge:
   ` + "`" + `- <type> [[<target-id>]] <optional description>` + "`" + `. Only forward edges
   are written; inverse relations (extended_by, refined_by, and so on) are
   derived at query time.
5. **Link types:** reference, extends, refines, contradicts, questions,
   supports, related, and their inverses.
6. **The last ` + "`" + `## Links` + "`" + ` heading marks the link section.** A body may use
   the heading, but then the file must still end with a real (possibly
   empty) link section so the boundary stays unambiguous; files the system
   writes handle this automatically.
7. **Encoding** is UTF-8 with a trailing newline.

After editing files by hand, call the ` + "`" + `rebuild_index` + "`" + ` tool so queries see
the changes.
`
