// Package domain holds enrichment result types and ports
package domain

import "time"

// NarrativeResult is the narrative for one session, tagged with the
// model that produced it for auditability
type NarrativeResult struct {
	SessionID   string    `json:"session_id"`
	Narrative   string    `json:"narrative"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`

	// Cached reports whether the result came from the cache tier
	// rather than a fresh capability call
	Cached bool `json:"cached,omitempty"`
}

// WeeklySummary aggregates one owner's trailing week
type WeeklySummary struct {
	OwnerID        int64          `json:"owner_id"`
	WeekStart      time.Time      `json:"week_start"`
	WeekEnd        time.Time      `json:"week_end"`
	Sessions       int            `json:"sessions"`
	Commits        int            `json:"commits"`
	ActiveMinutes  int            `json:"active_minutes"`
	Additions      int            `json:"additions"`
	Deletions      int            `json:"deletions"`
	LangMinutes    map[string]int `json:"lang_minutes,omitempty"`
	BusiestDay     string         `json:"busiest_day,omitempty"`
	ComputedAt     time.Time      `json:"computed_at"`
	ContentVersion string         `json:"content_version"`
}
