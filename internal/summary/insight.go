package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sinagtala/tala/pkg/provider/llm"
	"github.com/sinagtala/tala/pkg/wellness"
)

// insightPrompt instructs the generator to answer in the exact JSON shape the
// dashboard consumes.
const insightPrompt = `You analyse mood check-in history for a wellness dashboard. Given the list of
check-ins below, respond with ONLY a JSON object of this exact shape:
{"summary": "...", "insight": "...", "advice": "..."}
summary: one sentence describing the overall mood pattern.
insight: one observation about timing or triggers worth noticing.
advice: one small, gentle suggestion. No markdown, no extra keys.`

// Insight produces the structured dashboard record from the user's last 30
// days of mood entries.
//
// The generator is asked for a JSON object; fenced or loosely formatted
// output is tolerated. When the reply cannot be parsed at all, the raw text
// is returned in the Insight field rather than failing the call. Only store
// and backend errors abort.
func (m *Maintainer) Insight(ctx context.Context, userID string) (wellness.Insight, error) {
	w := wellness.DefaultWindow(m.clock)
	entries, err := m.store.EntriesBetween(ctx, userID, w)
	if err != nil {
		return wellness.Insight{}, fmt.Errorf("summary: insight read: %w", err)
	}
	if len(entries) == 0 {
		return wellness.Insight{
			Summary: "Not enough mood check-ins yet to see a pattern.",
			Insight: "Logging how you feel, even briefly, builds the picture over time.",
			Advice:  "Try recording your mood once a day for a week.",
		}, nil
	}

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "- %s on %s", e.Mood, e.Timestamp.Format("2006-01-02 15:04"))
		if e.Note != "" {
			fmt.Fprintf(&sb, " (%q)", e.Note)
		}
		sb.WriteString("\n")
	}

	resp, err := m.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: insightPrompt,
		Messages:     []llm.Message{{Role: "user", Content: sb.String()}},
	})
	if err != nil {
		return wellness.Insight{}, fmt.Errorf("summary: insight generate: %w", err)
	}

	return parseInsight(resp.Content), nil
}

// parseInsight extracts the structured record from the generator's reply.
// Code fences are stripped first; if no JSON object can be decoded, the raw
// text becomes the Insight field of a fallback record.
func parseInsight(raw string) wellness.Insight {
	text := stripCodeFence(raw)

	var out wellness.Insight
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		if out.Summary != "" || out.Insight != "" || out.Advice != "" {
			return out
		}
	}

	// Models sometimes wrap the object in prose. Try the outermost braces.
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &out); err == nil {
			if out.Summary != "" || out.Insight != "" || out.Advice != "" {
				return out
			}
		}
	}

	return wellness.Insight{Insight: strings.TrimSpace(raw)}
}

// stripCodeFence removes a surrounding markdown code fence, with or without a
// language tag.
func stripCodeFence(s string) string {
	text := strings.TrimSpace(s)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.Index(text, "\n"); i >= 0 {
		// Drop the language tag line ("json" etc.).
		if !strings.Contains(text[:i], "{") {
			text = text[i+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
