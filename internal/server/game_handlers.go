package server

import (
	"fmt"
	"jeop3/internal/core"
	"jeop3/internal/persistence"
	"jeop3/internal/quality"
	"jeop3/internal/render"
	"jeop3/internal/session"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// GameListResponse is a page of stored games
type GameListResponse struct {
	Games  []core.GameMeta `json:"games"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, name)
	}
	return n, nil
}

// handleListGames handles GET /api/games?limit=N&offset=M
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	games, err := s.db.Games().List(r.Context(), persistence.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, GameListResponse{Games: games, Limit: limit, Offset: offset})
}

func (s *Server) game(w http.ResponseWriter, r *http.Request) (*core.Game, bool) {
	game, err := s.db.Games().Get(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		s.respondErr(w, r, err)
		return nil, false
	}
	return game, true
}

// handleGetGame handles GET /api/games/{gameID}
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	game, ok := s.game(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, game)
}

// handleExportGame handles GET /api/games/{gameID}/export?format=md|html|json&download=1
func (s *Server) handleExportGame(w http.ResponseWriter, r *http.Request) {
	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	game, ok := s.game(w, r)
	if !ok {
		return
	}
	content, err := render.Render(*game, format)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", render.Filename(*game, format)))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		s.log.Error("Failed to write export", "game_id", game.ID, "error", err)
	}
}

// handleGameQuality handles GET /api/games/{gameID}/quality
func (s *Server) handleGameQuality(w http.ResponseWriter, r *http.Request) {
	game, ok := s.game(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, quality.NewBoardEvaluator().EvaluateGame(*game))
}

// handleEditGame handles POST /api/games/{gameID}/edit. It opens a session seeded with the game;
// finalizing that session saves a new game.
func (s *Server) handleEditGame(w http.ResponseWriter, r *http.Request) {
	game, ok := s.game(w, r)
	if !ok {
		return
	}
	sess := s.sessions.Create(session.Settings{})
	sess.SeedFromGame(*game)
	s.log.Info("Editing stored game", "game_id", game.ID, "session_id", sess.ID)
	s.respondJSON(w, http.StatusCreated, sessionResponse(sess))
}

// handleDeleteGame handles DELETE /api/games/{gameID}
func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "gameID")
	if err := s.db.Games().Delete(r.Context(), id); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.log.Info("Game deleted", "game_id", id)
	w.WriteHeader(http.StatusNoContent)
}
