// Package chat drives conversational turns between a user and Tala: it
// assembles the multi-source context bundle, runs the per-turn state machine
// around the generation backend, relays streamed output in arrival order, and
// persists the exchange with defined partial-failure behaviour.
package chat

import (
	"context"
	"fmt"

	"github.com/sinagtala/tala/pkg/store"
	"github.com/sinagtala/tala/pkg/wellness"
)

// recentMoodLimit is how many of the user's latest mood entries the context
// bundle carries.
const recentMoodLimit = 5

// Bundle is the multi-source context gathered for one generation request.
type Bundle struct {
	// UserSummary is the user's rolling summary. Zero value when the user
	// has none yet; absence is never an error.
	UserSummary wellness.UserSummary

	// RecentMoods holds up to five most recent mood entries, newest first.
	RecentMoods []wellness.MoodEntry

	// TodaysChat is the current UTC calendar day's conversation log in
	// chronological order.
	TodaysChat []wellness.ChatMessage
}

// Assembler gathers context bundles. Pure read side: it never mutates the
// store.
type Assembler struct {
	store store.Store
	clock wellness.Clock
}

// NewAssembler creates an Assembler reading from st, using clock for the
// "today" boundary.
func NewAssembler(st store.Store, clock wellness.Clock) *Assembler {
	return &Assembler{store: st, clock: clock}
}

// Assemble gathers the user's rolling summary, recent mood entries, and
// today's chat log into one bundle.
func (a *Assembler) Assemble(ctx context.Context, userID string) (Bundle, error) {
	var bundle Bundle

	summary, err := a.store.GetUserSummary(ctx, userID)
	if err != nil {
		return Bundle{}, fmt.Errorf("chat: assemble summary: %w", err)
	}
	if summary != nil {
		bundle.UserSummary = *summary
	}

	moods, err := a.store.RecentEntries(ctx, userID, recentMoodLimit)
	if err != nil {
		return Bundle{}, fmt.Errorf("chat: assemble recent moods: %w", err)
	}
	bundle.RecentMoods = moods

	today, err := a.store.MessagesOn(ctx, userID, a.clock.Now())
	if err != nil {
		return Bundle{}, fmt.Errorf("chat: assemble today's chat: %w", err)
	}
	bundle.TodaysChat = today

	return bundle, nil
}
