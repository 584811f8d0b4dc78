package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"jeop3/internal/config"
	"jeop3/internal/core"
	"jeop3/internal/draft"
	"jeop3/internal/generation"
	"jeop3/internal/llm"
	"jeop3/internal/persistence"
	"jeop3/internal/session"
	"jeop3/internal/sources"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestServer(t *testing.T, script llm.ScriptFunc) *Server {
	t.Helper()
	db, err := persistence.NewSQLiteDB(filepath.Join(t.TempDir(), "games.db"))
	if err != nil {
		t.Fatalf("NewSQLiteDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if script == nil {
		script = llm.OfflineScript()
	}
	manager := session.NewManager(session.Deps{
		Generator: llm.NewGateway(llm.NewScriptedCompleter(script), "offline"),
		Games:     db.Games(),
		Model:     "offline",
	}, time.Hour)
	t.Cleanup(manager.Close)

	return New(db, manager, config.Server{Host: "127.0.0.1", Port: 0, AdminAPIKey: "secret"})
}

func do(t *testing.T, srv *Server, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func createSession(t *testing.T, srv *Server, theme string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/sessions", SessionRequest{Theme: theme})
	expectStatus(t, rec, http.StatusCreated)
	return decode[SessionResponse](t, rec).ID
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/health", nil)
	expectStatus(t, rec, http.StatusOK)

	resp := decode[HealthResponse](t, rec)
	if resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("Unexpected health %+v", resp)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("Security headers should be set")
	}
}

func TestGameCreationFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createSession(t, srv, "Space")
	base := "/api/sessions/" + id

	rec := do(t, srv, http.MethodPost, base+"/generate", nil)
	expectStatus(t, rec, http.StatusOK)
	gen := decode[GenerateResponse](t, rec)
	if len(gen.Draft.Categories) != core.BoardCategories || len(gen.Draft.TitleOptions) == 0 {
		t.Fatalf("Unexpected draft %+v", gen.Draft)
	}
	if rec.Header().Get("Cache-Control") == "" {
		t.Error("Session responses should not be cached")
	}

	rec = do(t, srv, http.MethodPost, base+"/categories/0/clues/1/regenerate", nil)
	expectStatus(t, rec, http.StatusOK)
	clue := decode[core.GeneratedClue](t, rec)
	if clue.Response == gen.Draft.Categories[0].Clues[1].Response {
		t.Error("Regenerated clue should have a new response")
	}

	response := "Saturn"
	rec = do(t, srv, http.MethodPut, base+"/categories/1/clues/0", EditClueRequest{Response: &response})
	expectStatus(t, rec, http.StatusOK)
	edited := decode[DraftResponse](t, rec)
	if edited.Draft.Categories[1].Clues[0].Response != "Saturn" {
		t.Error("Response edit not applied")
	}
	if len(edited.Regenerated) != 1 || edited.Regenerated[0] != core.ClueItemID(0, 1) {
		t.Errorf("Expected one regenerated marker, got %v", edited.Regenerated)
	}

	rec = do(t, srv, http.MethodPost, base+"/categories/2/title/rewrite", nil)
	expectStatus(t, rec, http.StatusOK)
	if decode[TextRequest](t, rec).Text == "" {
		t.Error("Rewritten title should not be empty")
	}

	rec = do(t, srv, http.MethodPut, base+"/teams/0", TextRequest{Text: "Comets"})
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, srv, http.MethodPost, base+"/discard/"+core.CategoryItemID(5), nil)
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, srv, http.MethodGet, base+"/quality", nil)
	expectStatus(t, rec, http.StatusOK)

	title := 2
	rec = do(t, srv, http.MethodPost, base+"/finalize", FinalizeRequest{TitleIndex: &title})
	expectStatus(t, rec, http.StatusCreated)
	game := decode[core.Game](t, rec)
	if game.ID == "" || len(game.Categories) != 5 || game.Title != "The Space Challenge" {
		t.Fatalf("Unexpected game %s %q with %d categories", game.ID, game.Title, len(game.Categories))
	}
	if game.SuggestedTeamNames[0] != "Comets" {
		t.Errorf("Team name edit lost: %v", game.SuggestedTeamNames)
	}

	rec = do(t, srv, http.MethodGet, "/api/games", nil)
	expectStatus(t, rec, http.StatusOK)
	list := decode[GameListResponse](t, rec)
	if len(list.Games) != 1 || list.Games[0].ID != game.ID {
		t.Errorf("Expected the saved game in the list, got %+v", list.Games)
	}

	rec = do(t, srv, http.MethodGet, "/api/games/"+game.ID+"/export?format=md&download=1", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "# The Space Challenge") {
		t.Error("Markdown export should contain the title")
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "the-space-challenge.md") {
		t.Errorf("Unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}

	rec = do(t, srv, http.MethodGet, "/api/games/"+game.ID+"/export?format=html", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Unexpected content type %q", rec.Header().Get("Content-Type"))
	}

	rec = do(t, srv, http.MethodGet, "/api/games/"+game.ID+"/quality", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestEditStoredGame(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createSession(t, srv, "Space")
	expectStatus(t, do(t, srv, http.MethodPost, "/api/sessions/"+id+"/generate", nil), http.StatusOK)
	rec := do(t, srv, http.MethodPost, "/api/sessions/"+id+"/finalize", nil)
	expectStatus(t, rec, http.StatusCreated)
	game := decode[core.Game](t, rec)

	rec = do(t, srv, http.MethodPost, "/api/games/"+game.ID+"/edit", nil)
	expectStatus(t, rec, http.StatusCreated)
	seeded := decode[SessionResponse](t, rec)
	if !seeded.HasDraft || seeded.Theme != "Space" || seeded.ID == id {
		t.Errorf("Expected a new seeded session, got %+v", seeded)
	}

	rec = do(t, srv, http.MethodGet, "/api/sessions/"+seeded.ID+"/draft", nil)
	expectStatus(t, rec, http.StatusOK)
	d := decode[DraftResponse](t, rec)
	if d.Draft.TitleOptions[0].Title != game.Title {
		t.Errorf("Seeded draft should keep the title, got %+v", d.Draft.TitleOptions)
	}
}

func TestDeleteGameRequiresAdminKey(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createSession(t, srv, "Space")
	expectStatus(t, do(t, srv, http.MethodPost, "/api/sessions/"+id+"/generate", nil), http.StatusOK)
	game := decode[core.Game](t, do(t, srv, http.MethodPost, "/api/sessions/"+id+"/finalize", nil))
	path := "/api/games/" + game.ID

	expectStatus(t, do(t, srv, http.MethodDelete, path, nil), http.StatusUnauthorized)
	expectStatus(t, do(t, srv, http.MethodDelete, path, nil, "Authorization", "Bearer wrong"), http.StatusUnauthorized)
	expectStatus(t, do(t, srv, http.MethodDelete, path, nil, "Authorization", "Bearer secret"), http.StatusNoContent)
	expectStatus(t, do(t, srv, http.MethodGet, path, nil), http.StatusNotFound)
}

func TestSourceValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createSession(t, srv, "Space")
	base := "/api/sessions/" + id

	tests := []struct {
		name   string
		source core.ContentSource
		want   int
	}{
		{"valid topic", core.ContentSource{Kind: core.SourceKindTopic, Topic: "Planets", CategoryCount: 4}, http.StatusCreated},
		{"over budget", core.ContentSource{Kind: core.SourceKindTopic, Topic: "Moons", CategoryCount: 3}, http.StatusBadRequest},
		{"short paste", core.ContentSource{Kind: core.SourceKindPastedText, Content: "too short", CategoryCount: 1}, http.StatusBadRequest},
		{"bad url", core.ContentSource{Kind: core.SourceKindURL, URL: "ftp://example.com", CategoryCount: 1}, http.StatusBadRequest},
		{"unknown kind", core.ContentSource{Kind: "video", CategoryCount: 1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, do(t, srv, http.MethodPost, base+"/sources", tt.source), tt.want)
		})
	}

	rec := do(t, srv, http.MethodGet, base, nil)
	state := decode[SessionResponse](t, rec)
	if state.Mode != core.SourceModeCustom || state.Remaining != 2 || len(state.Sources) != 1 {
		t.Errorf("Unexpected session state %+v", state)
	}

	expectStatus(t, do(t, srv, http.MethodGet, base+"/estimate", nil), http.StatusOK)
	expectStatus(t, do(t, srv, http.MethodDelete, base+"/sources/missing", nil), http.StatusNotFound)
	expectStatus(t, do(t, srv, http.MethodDelete, base+"/sources/"+state.Sources[0].ID, nil), http.StatusOK)
}

func TestSessionErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createSession(t, srv, "Space")
	base := "/api/sessions/" + id

	expectStatus(t, do(t, srv, http.MethodGet, "/api/sessions/nope", nil), http.StatusNotFound)
	expectStatus(t, do(t, srv, http.MethodPost, "/api/sessions", SessionRequest{Difficulty: "extreme"}), http.StatusBadRequest)
	expectStatus(t, do(t, srv, http.MethodGet, base+"/draft", nil), http.StatusConflict)
	expectStatus(t, do(t, srv, http.MethodPost, base+"/discard/garbage", nil), http.StatusBadRequest)

	expectStatus(t, do(t, srv, http.MethodPost, base+"/generate", nil), http.StatusOK)
	expectStatus(t, do(t, srv, http.MethodPost, base+"/categories/x/regenerate", nil), http.StatusBadRequest)
	expectStatus(t, do(t, srv, http.MethodPost, base+"/categories/9/regenerate", nil), http.StatusBadRequest)
	expectStatus(t, do(t, srv, http.MethodPost, base+"/categories/0/clues/7/rewrite", nil), http.StatusBadRequest)

	var all []string
	for i := 0; i < core.BoardCategories; i++ {
		all = append(all, core.CategoryItemID(i))
	}
	expectStatus(t, do(t, srv, http.MethodPut, base+"/discard", DiscardRequest{IDs: all}), http.StatusOK)
	expectStatus(t, do(t, srv, http.MethodPost, base+"/finalize", nil), http.StatusBadRequest)

	expectStatus(t, do(t, srv, http.MethodDelete, base, nil), http.StatusNoContent)
	expectStatus(t, do(t, srv, http.MethodGet, base, nil), http.StatusNotFound)
}

func TestGenerateTotalFailure(t *testing.T) {
	srv := newTestServer(t, func(p llm.Prompt) (string, error) {
		return "", errors.New("model unavailable")
	})
	id := createSession(t, srv, "Space")

	rec := do(t, srv, http.MethodPost, "/api/sessions/"+id+"/generate", nil)
	expectStatus(t, rec, http.StatusBadGateway)
	resp := decode[ErrorResponse](t, rec)
	if resp.Error != generation.ErrTotalFailure.Error() || len(resp.Failures) != 1 {
		t.Fatalf("Expected the failure list, got %+v", resp)
	}
	if resp.Failures[0].SourceID != "single" || !strings.Contains(resp.Failures[0].Error, "model unavailable") {
		t.Errorf("Unexpected failure %+v", resp.Failures[0])
	}

	state := decode[SessionResponse](t, do(t, srv, http.MethodGet, "/api/sessions/"+id, nil))
	if state.HasDraft || state.LastError == "" {
		t.Errorf("Session should stay open without a draft, got %+v", state)
	}
}

func TestBusySlotConflict(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	offline := llm.OfflineScript()
	srv := newTestServer(t, func(p llm.Prompt) (string, error) {
		if p.Type == llm.PromptClueGenerate {
			once.Do(func() { close(started) })
			<-release
		}
		return offline(p)
	})
	id := createSession(t, srv, "Space")
	base := "/api/sessions/" + id
	expectStatus(t, do(t, srv, http.MethodPost, base+"/generate", nil), http.StatusOK)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- do(t, srv, http.MethodPost, base+"/categories/0/clues/0/regenerate", nil)
	}()
	<-started

	response := "Pluto"
	expectStatus(t, do(t, srv, http.MethodPut, base+"/categories/0/clues/0", EditClueRequest{Response: &response}), http.StatusConflict)
	expectStatus(t, do(t, srv, http.MethodPost, base+"/categories/0/regenerate", nil), http.StatusConflict)
	expectStatus(t, do(t, srv, http.MethodPut, base+"/categories/0/clues/1", EditClueRequest{Response: &response}), http.StatusOK)

	d := decode[DraftResponse](t, do(t, srv, http.MethodGet, base+"/draft", nil))
	if len(d.Pending) != 1 || d.Pending[0] != core.ClueItemID(0, 0) {
		t.Errorf("Expected the clue to be pending, got %v", d.Pending)
	}

	close(release)
	expectStatus(t, <-done, http.StatusOK)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&generation.TotalFailureError{}, http.StatusBadGateway},
		{&llm.GenerationError{PromptType: llm.PromptClueGenerate, Reason: "x"}, http.StatusBadGateway},
		{sources.ErrNoSources, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", draft.ErrOutOfRange), http.StatusBadRequest},
		{draft.ErrSlotBusy, http.StatusConflict},
		{session.ErrGenerating, http.StatusConflict},
		{session.ErrNotFound, http.StatusNotFound},
		{persistence.ErrNotFound, http.StatusNotFound},
		{session.ErrCancelled, http.StatusGone},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
