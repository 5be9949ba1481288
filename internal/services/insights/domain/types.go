// Package domain defines the owner insight types and ports
package domain

import "time"

// Session length buckets
const (
	BucketShort  = "short"  // under 30 minutes
	BucketMedium = "medium" // 30 to 120 minutes
	BucketLong   = "long"   // over 120 minutes
)

// SessionBuckets counts sessions per length class
type SessionBuckets struct {
	Short    int    `json:"short"`
	Medium   int    `json:"medium"`
	Long     int    `json:"long"`
	Dominant string `json:"dominant"`
}

// OwnerInsights is the wholesale-recomputed pattern payload for one owner
// over the trailing window
type OwnerInsights struct {
	OwnerID     int64     `json:"owner_id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	TotalSessions  int `json:"total_sessions"`
	TotalCommits   int `json:"total_commits"`
	TotalAdditions int `json:"total_additions"`
	TotalDeletions int `json:"total_deletions"`
	ActiveMinutes  int `json:"active_minutes"`

	// LangMinutes distributes active time across primary languages
	LangMinutes map[string]int `json:"lang_minutes"`

	// HourHistogram counts commits per UTC hour of day
	HourHistogram [24]int `json:"hour_histogram"`
	PeakHours     []int   `json:"peak_hours"`

	Buckets SessionBuckets `json:"session_buckets"`

	// DailyCommits maps YYYY-MM-DD to commit count
	DailyCommits      map[string]int `json:"daily_commits"`
	BusiestDay        string         `json:"busiest_day,omitempty"`
	BusiestDayCommits int            `json:"busiest_day_commits"`

	ComputedAt time.Time `json:"computed_at"`
}
