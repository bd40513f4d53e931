package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/testutil"
)

// testEnv sets up a temp vault, SQLite DB, service, and router for testing.
// authToken="" means disabled auth mode.
func testEnv(t *testing.T, authToken string) (*noteservice.Service, http.Handler) {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := noteservice.NewService(store, db, logger)
	engine := graph.NewEngine(db)
	router := NewRouter(svc, engine, authToken != "", authToken, nil)
	return svc, router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createNote(t *testing.T, router http.Handler, title string) models.Note {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: title})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var n models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &n); err != nil {
		t.Fatalf("decode note: %v", err)
	}
	return n
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")
	n := createNote(t, router, "Hello")

	w := doJSON(t, router, http.MethodGet, "/notes/"+n.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Title != "Hello" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestCreateNoteValidation(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "  "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank title status = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", rec.Code)
	}
}

func TestGetNoteNotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := doJSON(t, router, http.MethodGet, "/notes/20990101T000000000000001", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateNotePartial(t *testing.T) {
	_, router := testEnv(t, "")
	n := createNote(t, router, "Before")

	newTitle := "After"
	w := doJSON(t, router, http.MethodPut, "/notes/"+n.ID, UpdateNoteRequest{Title: &newTitle})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	var got models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Title != "After" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestDeleteNoteReportsLostLinks(t *testing.T) {
	_, router := testEnv(t, "")
	target := createNote(t, router, "Target")
	source := createNote(t, router, "Source")

	w := doJSON(t, router, http.MethodPost, "/notes/"+source.ID+"/links",
		CreateLinkRequest{Target: target.ID, Type: "extends"})
	if w.Code != http.StatusCreated {
		t.Fatalf("link status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodDelete, "/notes/"+target.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	var resp DeleteNoteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Deleted != target.ID || len(resp.LostLinks) != 1 || resp.LostLinks[0] != source.ID {
		t.Errorf("response = %+v", resp)
	}
}

func TestLinkLifecycle(t *testing.T) {
	_, router := testEnv(t, "")
	a := createNote(t, router, "A")
	b := createNote(t, router, "B")

	w := doJSON(t, router, http.MethodPost, "/notes/"+a.ID+"/links",
		CreateLinkRequest{Target: b.ID, Type: "supports", Description: "evidence"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create link status = %d, body = %s", w.Code, w.Body.String())
	}

	// Duplicate is a conflict.
	w = doJSON(t, router, http.MethodPost, "/notes/"+a.ID+"/links",
		CreateLinkRequest{Target: b.ID, Type: "supports"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}

	// Self-link is a validation failure.
	w = doJSON(t, router, http.MethodPost, "/notes/"+a.ID+"/links",
		CreateLinkRequest{Target: a.ID})
	if w.Code != http.StatusBadRequest {
		t.Errorf("self link status = %d, want 400", w.Code)
	}

	// From b's perspective the edge reads inverted.
	w = doJSON(t, router, http.MethodGet, "/notes/"+b.ID+"/links", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("links status = %d", w.Code)
	}
	var links LinksResponse
	if err := json.Unmarshal(w.Body.Bytes(), &links); err != nil {
		t.Fatal(err)
	}
	if len(links.Links) != 1 || links.Links[0].Type != models.LinkSupportedBy {
		t.Errorf("links = %+v", links)
	}

	w = doJSON(t, router, http.MethodDelete, "/notes/"+a.ID+"/links/"+b.ID+"?type=supports", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove link status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/notes/"+a.ID+"/links/"+b.ID+"?type=supports", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("remove missing link status = %d, want 404", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "Graph theory")
	createNote(t, router, "Cooking")

	w := doJSON(t, router, http.MethodGet, "/search?q=graph", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Note.Title != "Graph theory" {
		t.Errorf("results = %+v", resp.Results)
	}

	w = doJSON(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q status = %d, want 400", w.Code)
	}

	hub := createNote(t, router, "Hub")
	w = doJSON(t, router, http.MethodGet, "/search?q="+hub.ID+"&scope=links&link_type=extands", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown link_type status = %d, want 400", w.Code)
	}
}

func TestListNotesPagination(t *testing.T) {
	_, router := testEnv(t, "")
	for _, title := range []string{"One", "Two", "Three"} {
		createNote(t, router, title)
	}

	w := doJSON(t, router, http.MethodGet, "/notes?order=created&direction=asc&limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp NoteListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 3 || len(resp.Notes) != 2 {
		t.Errorf("total = %d, page = %d", resp.Total, len(resp.Notes))
	}
	if resp.Notes[0].Title != "One" {
		t.Errorf("first = %q, want oldest", resp.Notes[0].Title)
	}
}

func TestTagsAndGraphEndpoints(t *testing.T) {
	svc, router := testEnv(t, "")
	ctx := context.Background()
	if _, err := svc.Create(ctx, noteservice.CreateParams{Title: "T", Tags: []string{"zettel"}}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/tags", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tags status = %d", w.Code)
	}
	var tags TagsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &tags); err != nil {
		t.Fatal(err)
	}
	if len(tags.Tags) != 1 || tags.Tags[0].Name != "zettel" {
		t.Errorf("tags = %+v", tags)
	}

	for _, path := range []string{"/graph/central", "/graph/orphans", "/index/integrity"} {
		w := doJSON(t, router, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	svc, router := testEnv(t, "")
	ctx := context.Background()
	a, err := svc.Create(ctx, noteservice.CreateParams{Title: "A", Tags: []string{"zettel"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := svc.Create(ctx, noteservice.CreateParams{Title: "B", Type: "hub"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.CreateLink(ctx, a.ID, b.ID, "extends", ""); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/graph/statistics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("statistics status = %d", w.Code)
	}
	var stats index.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Notes != 2 || stats.Links != 1 || stats.Tags != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.NotesByType["permanent"] != 1 || stats.NotesByType["hub"] != 1 {
		t.Errorf("notes by type = %v", stats.NotesByType)
	}
	if stats.LinksByType["extends"] != 1 {
		t.Errorf("links by type = %v", stats.LinksByType)
	}
}

func TestRebuildEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "A")

	w := doJSON(t, router, http.MethodPost, "/index/rebuild", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d, body = %s", w.Code, w.Body.String())
	}
	var report struct {
		Succeeded int `json:"succeeded"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", report.Succeeded)
	}
}

func TestBearerAuth(t *testing.T) {
	_, router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", w.Code)
	}
}
