// Package mcpserver exposes the note repository and graph query engine as
// MCP (Model Context Protocol) tools over stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *noteservice.Service
	engine *graph.Engine
}

// New creates an MCP server with every repository and graph tool registered.
func New(svc *noteservice.Service, engine *graph.Engine) *Server {
	s := &Server{svc: svc, engine: engine}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. The ID is assigned automatically."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title (non-empty)")),
		mcp.WithString("content", mcp.Description("Markdown body text")),
		mcp.WithString("type", mcp.Description("Note type: fleeting, literature, permanent, structure, or hub (default permanent)")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_note",
		mcp.WithDescription("Fetch a note by ID, or by exact title when the identifier is not ID-shaped."),
		mcp.WithString("identifier", mcp.Required(), mcp.Description("Note ID or exact title")),
	), s.getNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Update fields of an existing note. Omitted fields are left untouched."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note ID")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New body text")),
		mcp.WithString("type", mcp.Description("New note type")),
		mcp.WithString("tags", mcp.Description("Comma-separated replacement tag set")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note. Links touching it are purged; the response lists notes that lost a link."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note ID")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("create_link",
		mcp.WithDescription("Create a typed, directed link between two existing notes."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source note ID")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target note ID")),
		mcp.WithString("type", mcp.Description("Link type (default reference): reference, extends, extended_by, refines, refined_by, contradicts, contradicted_by, questions, questioned_by, supports, supported_by, related")),
		mcp.WithString("description", mcp.Description("Optional free-text edge description")),
	), s.createLink)

	s.mcp.AddTool(mcp.NewTool("remove_link",
		mcp.WithDescription("Remove a link between two notes."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source note ID")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target note ID")),
		mcp.WithString("type", mcp.Description("Link type (default reference)")),
	), s.removeLink)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes. Scope 'content' matches title and body; 'tags' matches exact or prefix tag names; 'links' lists notes connected to the note ID given as the query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms, tag prefix, or note ID depending on scope")),
		mcp.WithString("scope", mcp.Description("content, tags, or links (default content)")),
		mcp.WithString("link_type", mcp.Description("For scope links: only edges of this type")),
		mcp.WithString("direction", mcp.Description("For scope links: both, outbound, or inbound (default both)")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_linked_notes",
		mcp.WithDescription("List the edges of a note. Inbound edges are shown as their inverse types."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note ID")),
		mcp.WithString("direction", mcp.Description("both, outbound, or inbound (default both)")),
	), s.getLinkedNotes)

	s.mcp.AddTool(mcp.NewTool("get_all_tags",
		mcp.WithDescription("List every tag in use with its note count."),
	), s.getAllTags)

	s.mcp.AddTool(mcp.NewTool("find_similar_notes",
		mcp.WithDescription("Find notes similar to the given one, scored by shared tags and shared link neighbors."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note ID")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 10)")),
	), s.findSimilar)

	s.mcp.AddTool(mcp.NewTool("find_central_notes",
		mcp.WithDescription("Rank notes by connection count (inbound plus outbound edges)."),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 10)")),
	), s.findCentral)

	s.mcp.AddTool(mcp.NewTool("find_orphaned_notes",
		mcp.WithDescription("List notes with no inbound or outbound links."),
	), s.findOrphaned)

	s.mcp.AddTool(mcp.NewTool("list_notes_by_date",
		mcp.WithDescription("List notes sorted by creation or modification time."),
		mcp.WithString("order", mcp.Description("created or updated (default created)")),
		mcp.WithString("direction", mcp.Description("asc or desc (default desc)")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 20)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listByDate)

	s.mcp.AddTool(mcp.NewTool("get_statistics",
		mcp.WithDescription("Summarize the knowledge graph: note, link, and tag counts with per-type breakdowns."),
	), s.getStatistics)

	s.mcp.AddTool(mcp.NewTool("rebuild_index",
		mcp.WithDescription("Rebuild the whole query index from the canonical note files. Use after external edits or after deleting the index database."),
	), s.rebuildIndex)

	s.mcp.AddTool(mcp.NewTool("verify_integrity",
		mcp.WithDescription("Check the index for links whose endpoints are missing. Reports violations without repairing them."),
	), s.verifyIntegrity)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical Ansuz note file format. Call this before editing note files by hand."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource("ansuz://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical note file format that all vault files follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.Create(ctx, noteservice.CreateParams{
		Title: title,
		Body:  req.GetString("content", ""),
		Type:  req.GetString("type", ""),
		Tags:  splitTags(req.GetString("tags", "")),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) getNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	identifier, err := req.RequireString("identifier")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.Get(ctx, identifier)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var p noteservice.UpdateParams
	args := req.GetArguments()
	if v, ok := args["title"].(string); ok {
		p.Title = &v
	}
	if v, ok := args["content"].(string); ok {
		p.Body = &v
	}
	if v, ok := args["type"].(string); ok {
		p.Type = &v
	}
	if v, ok := args["tags"].(string); ok {
		tags := splitTags(v)
		p.Tags = &tags
	}
	note, err := s.svc.Update(ctx, id, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lost, err := s.svc.Delete(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg := fmt.Sprintf("deleted: %s", id)
	if len(lost) > 0 {
		msg += fmt.Sprintf("\nnotes that lost a link: %s", strings.Join(lost, ", "))
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) createLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.CreateLink(ctx, source, target,
		req.GetString("type", "reference"), req.GetString("description", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) removeLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.RemoveLink(ctx, source, target, req.GetString("type", "reference"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) searchNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scope := graph.Scope(req.GetString("scope", string(graph.ScopeContent)))
	hits, err := s.engine.Search(query, scope, graph.SearchOptions{
		Limit:     req.GetInt("limit", 20),
		LinkType:  linkTypeArg(req.GetString("link_type", "")),
		Direction: graph.Direction(req.GetString("direction", "")),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits)
}

func (s *Server) getLinkedNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links, err := s.engine.LinkedNotes(id, graph.Direction(req.GetString("direction", "")))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(links)
}

func (s *Server) getAllTags(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.engine.AllTags()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tags)
}

func (s *Server) findSimilar(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scored, err := s.engine.FindSimilar(id, req.GetInt("limit", 10))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(scored)
}

func (s *Server) findCentral(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ranked, err := s.engine.FindCentral(req.GetInt("limit", 10))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ranked)
}

func (s *Server) findOrphaned(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orphans, err := s.engine.Orphans()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(orphans)
}

func (s *Server) listByDate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	order := req.GetString("order", "created")
	descending := req.GetString("direction", "desc") != "asc"
	notes, total, err := s.engine.ListByDate(order, descending, req.GetInt("limit", 20), req.GetInt("offset", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"notes": notes, "total": total})
}

func (s *Server) getStatistics(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.engine.Statistics()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stats)
}

func (s *Server) rebuildIndex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.svc.RebuildIndex(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report)
}

func (s *Server) verifyIntegrity(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	violations, err := s.svc.VerifyIntegrity(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(violations) == 0 {
		return mcp.NewToolResultText("no violations"), nil
	}
	return jsonResult(violations)
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ansuz://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func linkTypeArg(s string) models.LinkType {
	if s == "" {
		return ""
	}
	if parsed, err := models.ParseLinkType(s); err == nil {
		return parsed
	}
	// Let the engine report the validation error with field context.
	return models.LinkType(s)
}
