package chat

import (
	"encoding/json"
	"strings"

	"github.com/sinagtala/tala/pkg/wellness"
)

// DefaultPersona is the system preamble establishing Tala's voice. It can be
// overridden per Coordinator via WithPersona.
const DefaultPersona = `You are Tala, a warm and gentle wellness companion. You listen first,
validate feelings without judgement, and offer small, practical suggestions
only when they are welcome. You are not a therapist and you never diagnose;
when someone appears to be in crisis, you encourage them to reach out to a
professional or a trusted person. Keep replies short, kind, and conversational.`

// promptContext is the JSON shape of the per-turn context appended to the
// persona. Field names are stable; the model is told what each one means.
type promptContext struct {
	CurrentMood string                `json:"current_mood,omitempty"`
	Summary     *wellness.UserSummary `json:"user_summary,omitempty"`
	RecentMoods []promptMood          `json:"recent_moods,omitempty"`
	TodaysChat  []promptMessage       `json:"todays_conversation,omitempty"`
}

type promptMood struct {
	Mood      string `json:"mood"`
	Note      string `json:"note,omitempty"`
	Timestamp string `json:"timestamp"`
}

type promptMessage struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// buildSystemPrompt renders the persona plus the user's context bundle as a
// single system prompt. Marshalling the bundle cannot fail for these types;
// an empty bundle still yields a valid prompt.
func buildSystemPrompt(persona string, bundle Bundle, currentMood *wellness.Mood) string {
	pc := promptContext{}
	if currentMood != nil {
		pc.CurrentMood = string(*currentMood)
	}
	if !bundle.UserSummary.LastUpdated.IsZero() {
		s := bundle.UserSummary
		pc.Summary = &s
	}
	for _, m := range bundle.RecentMoods {
		pc.RecentMoods = append(pc.RecentMoods, promptMood{
			Mood:      string(m.Mood),
			Note:      m.Note,
			Timestamp: m.Timestamp.Format("2006-01-02 15:04"),
		})
	}
	for _, msg := range bundle.TodaysChat {
		pc.TodaysChat = append(pc.TodaysChat, promptMessage{
			Sender:  string(msg.Sender),
			Content: msg.Content,
		})
	}

	ctxJSON, err := json.Marshal(pc)
	if err != nil {
		ctxJSON = []byte("{}")
	}

	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString("\n\nWhat you know about this user (recent moods newest first, conversation in order):\n")
	sb.Write(ctxJSON)
	return sb.String()
}
