package server

import (
	"context"
	"jeop3/internal/core"
	"jeop3/internal/session"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// SessionRequest creates a session or updates its settings
type SessionRequest struct {
	Theme      string `json:"theme"`
	Difficulty string `json:"difficulty"`
	AuthToken  string `json:"authToken"` // Forwarded to url fetches, never echoed
}

// SessionResponse is the state of a creation session
type SessionResponse struct {
	ID         string               `json:"id"`
	CreatedAt  time.Time            `json:"createdAt"`
	Theme      string               `json:"theme"`
	Difficulty core.Difficulty      `json:"difficulty"`
	Mode       core.SourceMode      `json:"mode"`
	Sources    []core.ContentSource `json:"sources"`
	Remaining  int                  `json:"remaining"`
	HasDraft   bool                 `json:"hasDraft"`
	Discarded  []string             `json:"discarded"`
	LastError  string               `json:"lastError,omitempty"`
	Failures   []FailureResponse    `json:"failures,omitempty"`
}

// DraftResponse is the draft with its curation markers
type DraftResponse struct {
	Draft       core.DraftGame `json:"draft"`
	Pending     []string       `json:"pending"`
	Regenerated []string       `json:"regenerated"`
	Discarded   []string       `json:"discarded"`
}

// GenerateResponse reports a generation run that produced a draft
type GenerateResponse struct {
	DraftResponse
	Failures []FailureResponse `json:"failures"`
}

// EditClueRequest changes the text or the response of a clue. Nil fields are left alone.
type EditClueRequest struct {
	Clue     *string `json:"clue"`
	Response *string `json:"response"`
}

// TextRequest carries a single replacement text
type TextRequest struct {
	Text string `json:"text"`
}

// DiscardRequest replaces the discard selection
type DiscardRequest struct {
	IDs []string `json:"ids"`
}

// FinalizeRequest picks the title option. Nil uses the first one.
type FinalizeRequest struct {
	TitleIndex *int `json:"titleIndex"`
}

func (req SessionRequest) settings() (session.Settings, error) {
	settings := session.Settings{Theme: strings.TrimSpace(req.Theme), AuthToken: req.AuthToken}
	if req.Difficulty != "" {
		d, err := core.ParseDifficulty(req.Difficulty)
		if err != nil {
			return session.Settings{}, err
		}
		settings.Difficulty = d
	}
	return settings, nil
}

func sessionResponse(s *session.Session) SessionResponse {
	settings := s.Settings()
	srcs := s.Sources()
	for i := range srcs {
		srcs[i].FetchedContent = ""
	}
	_, err := s.Store()
	resp := SessionResponse{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		Theme:      settings.Theme,
		Difficulty: settings.Difficulty,
		Mode:       s.Mode(),
		Sources:    srcs,
		Remaining:  s.Remaining(),
		HasDraft:   err == nil,
		Discarded:  s.Discarded(),
		Failures:   failureResponses(s.Failures()),
	}
	if lastErr := s.LastError(); lastErr != nil {
		resp.LastError = lastErr.Error()
	}
	return resp
}

func draftResponse(s *session.Session) (DraftResponse, error) {
	store, err := s.Store()
	if err != nil {
		return DraftResponse{}, err
	}
	resp := DraftResponse{
		Draft:       store.Snapshot(),
		Pending:     []string{},
		Regenerated: store.Regenerated(),
		Discarded:   s.Discarded(),
	}
	for _, slot := range store.Pending() {
		resp.Pending = append(resp.Pending, slot.ID())
	}
	return resp, nil
}

// session resolves the {sessionID} path parameter, writing the error response when it fails
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondErr(w, r, err)
		return nil, false
	}
	return sess, true
}

// handleCreateSession handles POST /api/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	settings, err := req.settings()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess := s.sessions.Create(settings)
	s.respondJSON(w, http.StatusCreated, sessionResponse(sess))
}

// handleListSessions handles GET /api/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.List()
	out := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionResponse(sess))
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleGetSession handles GET /api/sessions/{sessionID}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, sessionResponse(sess))
}

// handleDeleteSession handles DELETE /api/sessions/{sessionID}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "sessionID")); err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateSettings handles PUT /api/sessions/{sessionID}/settings
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req SessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	settings, err := req.settings()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess.Configure(settings)
	s.respondJSON(w, http.StatusOK, sessionResponse(sess))
}

// handleAddSource handles POST /api/sessions/{sessionID}/sources
func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var src core.ContentSource
	if err := decodeJSON(w, r, &src); err != nil {
		s.respondErr(w, r, err)
		return
	}
	src.ID = ""
	src.FetchedContent = ""
	added, err := sess.AddSource(src)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, added)
}

// handleRemoveSource handles DELETE /api/sessions/{sessionID}/sources/{sourceID}
func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.RemoveSource(chi.URLParam(r, "sourceID")); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sessionResponse(sess))
}

// handleEstimate handles GET /api/sessions/{sessionID}/estimate
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	estimate, err := sess.Estimate()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, estimate)
}

// handleGenerate handles POST /api/sessions/{sessionID}/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	s.generate(w, r, (*session.Session).Generate)
}

// handleRetry handles POST /api/sessions/{sessionID}/retry
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.generate(w, r, (*session.Session).Retry)
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request, run func(*session.Session, context.Context) (*session.Outcome, error)) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	out, err := run(sess, r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	draft, err := draftResponse(sess)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, GenerateResponse{DraftResponse: draft, Failures: failureResponses(out.Failures)})
}

// handleGetDraft handles GET /api/sessions/{sessionID}/draft
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	resp, err := draftResponse(sess)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleDraftQuality handles GET /api/sessions/{sessionID}/quality
func (s *Server) handleDraftQuality(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	report, err := sess.Quality()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

// handlePreview handles GET /api/sessions/{sessionID}/preview?title=N
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var titleIndex *int
	if raw := r.URL.Query().Get("title"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "title must be an integer")
			return
		}
		titleIndex = &n
	}
	game, err := sess.Preview(titleIndex)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, game)
}

// handleRegenerateCategory handles POST /api/sessions/{sessionID}/categories/{cat}/regenerate
func (s *Server) handleRegenerateCategory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	i, err := intParam(r, "cat")
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	ctrl, err := sess.Controller()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	ctx, cancel := sess.Bind(r.Context())
	defer cancel()
	cat, err := ctrl.RegenerateCategory(ctx, i)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, cat)
}

// handleRegenerateClue handles POST /api/sessions/{sessionID}/categories/{cat}/clues/{clue}/regenerate
func (s *Server) handleRegenerateClue(w http.ResponseWriter, r *http.Request) {
	sess, i, j, ok := s.clueTarget(w, r)
	if !ok {
		return
	}
	ctrl, err := sess.Controller()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	ctx, cancel := sess.Bind(r.Context())
	defer cancel()
	clue, err := ctrl.RegenerateClue(ctx, i, j)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, clue)
}

// handleRewriteCategoryTitle handles POST /api/sessions/{sessionID}/categories/{cat}/title/rewrite
func (s *Server) handleRewriteCategoryTitle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	i, err := intParam(r, "cat")
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	ctrl, err := sess.Controller()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	ctx, cancel := sess.Bind(r.Context())
	defer cancel()
	title, err := ctrl.RewriteCategoryTitle(ctx, i)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, TextRequest{Text: title})
}

// handleRewriteClueText handles POST /api/sessions/{sessionID}/categories/{cat}/clues/{clue}/rewrite
func (s *Server) handleRewriteClueText(w http.ResponseWriter, r *http.Request) {
	sess, i, j, ok := s.clueTarget(w, r)
	if !ok {
		return
	}
	ctrl, err := sess.Controller()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	ctx, cancel := sess.Bind(r.Context())
	defer cancel()
	text, err := ctrl.RewriteClueText(ctx, i, j)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, TextRequest{Text: text})
}

// handleEditCategoryTitle handles PUT /api/sessions/{sessionID}/categories/{cat}/title
func (s *Server) handleEditCategoryTitle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	i, err := intParam(r, "cat")
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	var req TextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	ctrl, err := sess.Controller()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if err := ctrl.EditCategoryTitle(i, req.Text); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondDraft(w, r, sess)
}

// handleEditClue handles PUT /api/sessions/{sessionID}/categories/{cat}/clues/{clue}
func (s *Server) handleEditClue(w http.ResponseWriter, r *http.Request) {
	sess, i, j, ok := s.clueTarget(w, r)
	if !ok {
		return
	}
	var req EditClueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	ctrl, err := sess.Controller()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if req.Clue != nil {
		if err := ctrl.EditClue(i, j, *req.Clue); err != nil {
			s.respondErr(w, r, err)
			return
		}
	}
	if req.Response != nil {
		if err := ctrl.EditResponse(i, j, *req.Response); err != nil {
			s.respondErr(w, r, err)
			return
		}
	}
	s.respondDraft(w, r, sess)
}

// handleEditTeamName handles PUT /api/sessions/{sessionID}/teams/{index}
func (s *Server) handleEditTeamName(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	k, err := intParam(r, "index")
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	var req TextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	ctrl, err := sess.Controller()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if err := ctrl.EditTeamName(k, req.Text); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondDraft(w, r, sess)
}

// handleEditTitleOption handles PUT /api/sessions/{sessionID}/titles/{index}
func (s *Server) handleEditTitleOption(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	k, err := intParam(r, "index")
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	var opt core.TitleOption
	if err := decodeJSON(w, r, &opt); err != nil {
		s.respondErr(w, r, err)
		return
	}
	ctrl, err := sess.Controller()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if err := ctrl.EditTitleOption(k, opt); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondDraft(w, r, sess)
}

// handleToggleDiscard handles POST /api/sessions/{sessionID}/discard/{itemID}
func (s *Server) handleToggleDiscard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "itemID")
	discarded, err := sess.ToggleDiscard(itemID)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"itemId":    itemID,
		"discarded": discarded,
		"ids":       sess.Discarded(),
	})
}

// handleSetDiscarded handles PUT /api/sessions/{sessionID}/discard
func (s *Server) handleSetDiscarded(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req DiscardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	if err := sess.SetDiscarded(req.IDs); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ids": sess.Discarded()})
}

// handleFinalize handles POST /api/sessions/{sessionID}/finalize
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req FinalizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	game, err := sess.Finalize(r.Context(), req.TitleIndex)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, game)
}

func (s *Server) respondDraft(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	resp, err := draftResponse(sess)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// clueTarget resolves the session and the {cat}/{clue} indexes of a clue route
func (s *Server) clueTarget(w http.ResponseWriter, r *http.Request) (*session.Session, int, int, bool) {
	sess, ok := s.session(w, r)
	if !ok {
		return nil, 0, 0, false
	}
	i, err := intParam(r, "cat")
	if err != nil {
		s.respondErr(w, r, err)
		return nil, 0, 0, false
	}
	j, err := intParam(r, "clue")
	if err != nil {
		s.respondErr(w, r, err)
		return nil, 0, 0, false
	}
	return sess, i, j, true
}
