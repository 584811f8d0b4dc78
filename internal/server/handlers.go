package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"jeop3/internal/draft"
	"jeop3/internal/fetch"
	"jeop3/internal/generation"
	"jeop3/internal/llm"
	"jeop3/internal/persistence"
	"jeop3/internal/session"
	"jeop3/internal/sources"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds request bodies. Pasted sources are the largest payload.
const maxBodyBytes = 1 << 20

// HealthResponse is the /health payload
type HealthResponse struct {
	Status   string            `json:"status"`
	Uptime   string            `json:"uptime"`
	Sessions int               `json:"sessions"`
	Checks   map[string]string `json:"checks"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error    string            `json:"error"`
	Failures []FailureResponse `json:"failures,omitempty"`
}

// FailureResponse describes a source that produced nothing
type FailureResponse struct {
	SourceID     string `json:"sourceId"`
	Source       string `json:"source"`
	Error        string `json:"error"`
	AuthRequired bool   `json:"authRequired,omitempty"`
}

var serverStartTime = time.Now()

// errBadRequest marks malformed bodies and path parameters.
var errBadRequest = errors.New("bad request")

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	resp := HealthResponse{
		Status:   "ok",
		Uptime:   time.Since(serverStartTime).Round(time.Second).String(),
		Sessions: s.sessions.Len(),
		Checks:   checks,
	}

	if err := s.db.Ping(r.Context()); err != nil {
		checks["database"] = "error"
		resp.Status = "unhealthy"
		s.respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	checks["database"] = "ok"
	s.respondJSON(w, http.StatusOK, resp)
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes an error response with a plain message
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var total *generation.TotalFailureError
	switch {
	case errors.As(err, &total), errors.Is(err, llm.ErrGenerationFailed):
		return http.StatusBadGateway
	case errors.Is(err, sources.ErrInvalidSource), errors.Is(err, sources.ErrNoSources),
		errors.Is(err, draft.ErrOutOfRange), errors.Is(err, session.ErrEmptyGame), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, draft.ErrSlotBusy), errors.Is(err, session.ErrGenerating), errors.Is(err, session.ErrNoDraft):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotFound), errors.Is(err, persistence.ErrNotFound), errors.Is(err, sources.ErrSourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrCancelled), errors.Is(err, draft.ErrClosed):
		return http.StatusGone
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, session.ErrNoRepository):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondErr reports err with the status it maps to. Total failures carry the per-source reasons.
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.log.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	resp := ErrorResponse{Error: err.Error()}
	var total *generation.TotalFailureError
	if errors.As(err, &total) {
		resp.Error = generation.ErrTotalFailure.Error()
		resp.Failures = failureResponses(total.Failures)
	}
	s.respondJSON(w, status, resp)
}

func failureResponses(failures []generation.SourceFailure) []FailureResponse {
	out := make([]FailureResponse, 0, len(failures))
	for _, f := range failures {
		out = append(out, FailureResponse{
			SourceID:     f.Source.ID,
			Source:       f.Source.Label(),
			Error:        f.Err.Error(),
			AuthRequired: fetch.IsAuthError(f.Err),
		})
	}
	return out
}

// decodeJSON reads a JSON body into v. An empty body leaves v unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

// intParam reads a non-negative integer path parameter.
func intParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return n, nil
}
