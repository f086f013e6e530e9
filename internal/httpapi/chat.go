package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/sinagtala/tala/internal/chat"
	"github.com/sinagtala/tala/internal/observe"
	"github.com/sinagtala/tala/pkg/wellness"
)

// sendTurnRequest is the body of POST /api/chat.
type sendTurnRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`

	// Mood optionally records an emotional state alongside the message.
	Mood string `json:"mood"`

	// Stream selects SSE chunk relay. Blocking JSON otherwise.
	Stream bool `json:"stream"`
}

// sendTurnResponse is the blocking-mode response body.
type sendTurnResponse struct {
	TurnID           string                `json:"turn_id"`
	Reply            string                `json:"reply"`
	UserMessage      wellness.ChatMessage  `json:"user_message"`
	AssistantMessage *wellness.ChatMessage `json:"assistant_message,omitempty"`
	MoodEntry        *wellness.MoodEntry   `json:"mood_entry,omitempty"`
}

// sseEvent is one server-sent data payload. Exactly one field group is set:
// Chunk for fragments, Done+Reply for completion, Error for failures.
type sseEvent struct {
	Chunk string `json:"chunk,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) sendTurn(w http.ResponseWriter, r *http.Request) {
	var req sendTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid JSON body: "+err.Error())
		return
	}
	if req.UserID == "" {
		badRequest(w, r, "user_id is required")
		return
	}

	var mood *wellness.Mood
	if req.Mood != "" {
		m, err := wellness.ParseMood(req.Mood)
		if err != nil {
			writeError(w, r, err)
			return
		}
		mood = &m
	}

	if req.Stream {
		s.streamTurn(w, r, req, mood)
		return
	}

	result, err := s.coordinator.SendTurn(r.Context(), req.UserID, req.Message, mood, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, turnResponse(result))
}

// streamTurn relays the turn over SSE. Each fragment is one data event;
// completion and failure are terminal events on the same stream, since the
// 200 header is already on the wire once relaying starts.
func (s *Server) streamTurn(w http.ResponseWriter, r *http.Request, req sendTurnRequest, mood *wellness.Mood) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, r, http.StatusInternalServerError, errorBody{Error: "streaming unsupported by connection"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(ev sseEvent) {
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
			observe.Logger(r.Context()).Warn("failed to write SSE event", "error", err)
			return
		}
		flusher.Flush()
	}

	result, err := s.coordinator.SendTurn(r.Context(), req.UserID, req.Message, mood, func(text string) {
		send(sseEvent{Chunk: text})
	})
	if err != nil {
		// When the request context is already dead the client disconnected;
		// there is no one left to notify.
		if r.Context().Err() == nil {
			send(sseEvent{Error: err.Error()})
		}
		return
	}
	send(sseEvent{Done: true, Reply: result.Reply})
}

// turnResponse shapes a coordinator result for the blocking JSON response.
func turnResponse(result chat.TurnResult) sendTurnResponse {
	resp := sendTurnResponse{
		TurnID:      result.TurnID,
		Reply:       result.Reply,
		UserMessage: result.UserMessage,
		MoodEntry:   result.MoodEntry,
	}
	if result.AssistantMessage.ID != 0 {
		m := result.AssistantMessage
		resp.AssistantMessage = &m
	}
	return resp
}
