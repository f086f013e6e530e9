// Package httpapi exposes the SinagTala core operations over HTTP: mood
// recording and listing, trend analytics, conversational turns with SSE
// streaming, and the derived summaries.
//
// The surface is deliberately thin. Handlers parse and validate input at the
// boundary, delegate to the core components, and map the core's error
// taxonomy onto status codes. Authentication and rate limiting live in front
// of this service.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sinagtala/tala/internal/analytics"
	"github.com/sinagtala/tala/internal/chat"
	"github.com/sinagtala/tala/internal/observe"
	"github.com/sinagtala/tala/internal/summary"
	"github.com/sinagtala/tala/pkg/store"
	"github.com/sinagtala/tala/pkg/wellness"
)

// Server wires the core components to HTTP routes.
type Server struct {
	store       store.Store
	coordinator *chat.Coordinator
	engine      *analytics.Engine
	maintainer  *summary.Maintainer
	clock       wellness.Clock
}

// New creates a Server over the given components.
func New(st store.Store, coordinator *chat.Coordinator, engine *analytics.Engine, maintainer *summary.Maintainer, clock wellness.Clock) *Server {
	return &Server{
		store:       st,
		coordinator: coordinator,
		engine:      engine,
		maintainer:  maintainer,
		clock:       clock,
	}
}

// Register adds all API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/moods", s.saveMood)
	mux.HandleFunc("GET /api/moods", s.listMoods)
	mux.HandleFunc("GET /api/moods/daily", s.dailyMoods)
	mux.HandleFunc("GET /api/trends", s.trends)
	mux.HandleFunc("POST /api/chat", s.sendTurn)
	mux.HandleFunc("GET /api/summary", s.userSummary)
	mux.HandleFunc("POST /api/summary/refresh", s.refreshSummary)
	mux.HandleFunc("GET /api/summary/day", s.dayNarrative)
	mux.HandleFunc("GET /api/insight", s.insight)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes v with the given status. Encoding failures are logged,
// not surfaced; headers are already gone by then.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		observe.Logger(r.Context()).Warn("failed to encode response", "error", err)
	}
}

// writeError maps err onto the API's status codes and writes the error
// envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, wellness.ErrInvalidMood),
		errors.Is(err, chat.ErrEmptyMessage):
		status = http.StatusBadRequest
	case errors.Is(err, summary.ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, chat.ErrGeneration):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, r, status, errorBody{Error: err.Error()})
}

// userID extracts the required user_id query parameter.
func userID(r *http.Request) (string, error) {
	id := r.URL.Query().Get("user_id")
	if id == "" {
		return "", errors.New("user_id query parameter is required")
	}
	return id, nil
}
