package wellness

import "time"

// MoodEntry is a single recorded emotional state. Entries are append-only:
// they are never updated and are removed only by cascading user deletion,
// which happens outside this core.
type MoodEntry struct {
	ID     int64  `json:"id"`
	UserID string `json:"user_id"`
	Mood   Mood   `json:"mood"`

	// Note is optional free text attached to the entry. When a mood is
	// reported alongside a chat message, the message text is stored here.
	Note string `json:"note,omitempty"`

	// Timestamp is the UTC time the entry was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// ChatMessage is one line of the append-only conversation log.
type ChatMessage struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// MoodCount pairs a mood with its occurrence count within a window.
type MoodCount struct {
	Mood  Mood `json:"mood"`
	Count int  `json:"count"`
}

// MoodShare extends MoodCount with the mood's percentage of all counted
// entries. Used in the user-summary distribution.
type MoodShare struct {
	Mood       Mood    `json:"mood"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PeriodCount pairs an activity period with its entry count.
type PeriodCount struct {
	Period TimePeriod `json:"period"`
	Count  int        `json:"count"`
}

// UserSummary is the per-user rolling summary row. It is replaced wholesale
// on every recomputation, never merged.
type UserSummary struct {
	UserID            string        `json:"user_id"`
	MoodDistribution  []MoodShare   `json:"mood_distribution"`
	ActiveTimePeriods []PeriodCount `json:"active_time_periods"`
	LastUpdated       time.Time     `json:"last_updated"`
}

// DaySummary is the per-user-per-day narrative summary. It is created once;
// later requests for the same (user, date) return the stored text unchanged.
type DaySummary struct {
	UserID string `json:"user_id"`

	// Date is the calendar day the summary covers, truncated to midnight UTC.
	Date time.Time `json:"date"`

	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Transition is an ordered pair of chronologically adjacent moods, with
// excluded-mood entries removed before pairing.
type Transition struct {
	From  Mood `json:"from_mood"`
	To    Mood `json:"to_mood"`
	Count int  `json:"count"`
}

// Volatility describes how emotionally variable a user's days were within a
// window. A zero value is the defined no-data sentinel.
type Volatility struct {
	// AvgDailyMoodVariety is the mean number of distinct moods per day,
	// over days with at least one entry.
	AvgDailyMoodVariety float64 `json:"avg_daily_mood_variety"`

	// AvgDailyEntries is the mean number of entries per day, over the same days.
	AvgDailyEntries float64 `json:"avg_daily_entries"`

	// VolatilityIndex is AvgDailyMoodVariety / AvgDailyEntries, or 0 when
	// there is no data. Never NaN.
	VolatilityIndex float64 `json:"volatility_index"`
}

// TrendResult bundles the three trend aggregations for a window. It is
// ephemeral and never persisted.
type TrendResult struct {
	Frequencies []MoodCount  `json:"frequencies"`
	Transitions []Transition `json:"transitions"`
	Volatility  Volatility   `json:"volatility"`
}

// DailyMood is one row of the mood-calendar listing: the first and last
// recorded moods of a day plus the day's entry count.
type DailyMood struct {
	Date         time.Time `json:"date"`
	InitialMood  Mood      `json:"initial_mood"`
	FinalMood    Mood      `json:"final_mood"`
	TotalEntries int       `json:"total_entries"`
}

// Insight is the structured dashboard record produced from a user's recent
// mood history. When the generator returns free text instead of the expected
// structure, the fallback carries that text in the Insight field.
type Insight struct {
	Summary string `json:"summary"`
	Insight string `json:"insight"`
	Advice  string `json:"advice"`
}
