package models

import "time"

// ScorerEvent is a single goal event attributed to one side of a match.
type ScorerEvent struct {
	Name   string `json:"name"`
	Minute int    `json:"minute"`
}

// NormalizedMatch is the stable match record served to consumers. Score
// fields are always present; absent upstream fields degrade to defaults
// instead of failing normalization.
type NormalizedMatch struct {
	ID          int64         `json:"id"`
	Home        string        `json:"home"`
	Away        string        `json:"away"`
	HomeScore   int           `json:"homeScore"`
	AwayScore   int           `json:"awayScore"`
	Status      string        `json:"status"`
	Tournament  string        `json:"tournament"`
	StartTime   int64         `json:"startTime"`
	IsLive      bool          `json:"isLive"`
	CurrentTime int           `json:"currentTime,omitempty"`
	AddedTime   int           `json:"addedTime,omitempty"`
	HomeScorers []ScorerEvent `json:"homeScorers,omitempty"`
	AwayScorers []ScorerEvent `json:"awayScorers,omitempty"`
}

// Cache entry freshness states.
const (
	EntryStatusSuccess = "success"
	EntryStatusStale   = "stale"
)

// CacheEntry holds the latest normalized payload for one logical resource
// ("live", "scheduled:2025-03-14"). When a refresh fails the entry is marked
// stale in place, preserving the last good matches.
type CacheEntry struct {
	Matches    []NormalizedMatch `json:"matches"`
	LastUpdate time.Time         `json:"lastUpdate"`
	Status     string            `json:"status"`
}

// Count returns the number of matches in the entry.
func (e CacheEntry) Count() int {
	return len(e.Matches)
}

// Age returns how long ago the entry was last refreshed successfully.
func (e CacheEntry) Age(now time.Time) time.Duration {
	if e.LastUpdate.IsZero() {
		return 0
	}
	return now.Sub(e.LastUpdate)
}
