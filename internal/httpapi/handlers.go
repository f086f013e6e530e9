package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sinagtala/tala/pkg/wellness"
)

// defaultMoodLimit caps mood listings when the caller gives no limit.
const defaultMoodLimit = 50

// badRequest writes a 400 with the given message.
func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, r, http.StatusBadRequest, errorBody{Error: msg})
}

// saveMoodRequest is the body of POST /api/moods.
type saveMoodRequest struct {
	UserID    string `json:"user_id"`
	Mood      string `json:"mood"`
	Note      string `json:"note"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) saveMood(w http.ResponseWriter, r *http.Request) {
	var req saveMoodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid JSON body: "+err.Error())
		return
	}
	if req.UserID == "" {
		badRequest(w, r, "user_id is required")
		return
	}
	mood, err := wellness.ParseMood(req.Mood)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry := wellness.MoodEntry{UserID: req.UserID, Mood: mood, Note: req.Note}
	if req.Timestamp != "" {
		ts, err := wellness.ParseTimestamp(req.Timestamp)
		if err != nil {
			badRequest(w, r, err.Error())
			return
		}
		entry.Timestamp = ts
	}

	saved, err := s.store.SaveEntry(r.Context(), entry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, saved)
}

func (s *Server) listMoods(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	limit := defaultMoodLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil || limit <= 0 {
			badRequest(w, r, "limit must be a positive integer")
			return
		}
	}

	entries, err := s.store.RecentEntries(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entries)
}

func (s *Server) dailyMoods(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	window, err := s.window(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	rows, err := s.engine.DailySummaries(r.Context(), id, window)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rows)
}

func (s *Server) trends(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	window, err := s.window(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	result, err := s.engine.Trends(r.Context(), id, window)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) userSummary(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	sum, err := s.store.GetUserSummary(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sum == nil {
		writeJSON(w, r, http.StatusNotFound, errorBody{Error: "no summary for user"})
		return
	}
	writeJSON(w, r, http.StatusOK, sum)
}

// refreshSummaryRequest is the body of POST /api/summary/refresh.
type refreshSummaryRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) refreshSummary(w http.ResponseWriter, r *http.Request) {
	var req refreshSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid JSON body: "+err.Error())
		return
	}
	if req.UserID == "" {
		badRequest(w, r, "user_id is required")
		return
	}

	snapshot, err := s.maintainer.RefreshUserSummary(r.Context(), req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, snapshot)
}

func (s *Server) dayNarrative(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	date := s.clock.Now()
	if v := r.URL.Query().Get("date"); v != "" {
		date, err = wellness.ParseTimestamp(v)
		if err != nil {
			badRequest(w, r, err.Error())
			return
		}
	}

	ds, err := s.maintainer.DayNarrative(r.Context(), id, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ds)
}

func (s *Server) insight(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	ins, err := s.maintainer.Insight(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ins)
}

// window parses optional start/end query parameters into an aggregation
// window, defaulting to the standard 30-day lookback.
func (s *Server) window(r *http.Request) (wellness.Window, error) {
	w := wellness.DefaultWindow(s.clock)
	q := r.URL.Query()
	if v := q.Get("start"); v != "" {
		t, err := wellness.ParseTimestamp(v)
		if err != nil {
			return wellness.Window{}, fmt.Errorf("start: %w", err)
		}
		w.Start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := wellness.ParseTimestamp(v)
		if err != nil {
			return wellness.Window{}, fmt.Errorf("end: %w", err)
		}
		w.End = t
	}
	if w.End.Before(w.Start) {
		return wellness.Window{}, fmt.Errorf("end %s is before start %s", w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return w, nil
}
