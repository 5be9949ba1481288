// Package domain holds coding session types and cross module ports
package domain

import "time"

// NarrativeStatus values stored on the session row
const (
	NarrativeNone        = "none"
	NarrativePending     = "pending"
	NarrativeReady       = "ready"
	NarrativeUnavailable = "unavailable"
)

// Session is a contiguous run of commits for one (repository, author) pair
type Session struct {
	ID              string         `json:"id"`
	RepoID          int64          `json:"repo_id"`
	OwnerID         int64          `json:"owner_id"`
	AuthorEmail     string         `json:"author_email"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         time.Time      `json:"ended_at"`
	DurationMinutes int            `json:"duration_minutes"`
	TotalCommits    int            `json:"total_commits"`
	TotalAdditions  int            `json:"total_additions"`
	TotalDeletions  int            `json:"total_deletions"`
	FilesChanged    int            `json:"files_changed"`
	LangLines       map[string]int `json:"lang_lines,omitempty"`
	PrimaryLanguage string         `json:"primary_language,omitempty"`
	Narrative       string         `json:"narrative,omitempty"`
	NarrativeModel  string         `json:"narrative_model,omitempty"`
	NarrativeAt     *time.Time     `json:"narrative_at,omitempty"`
	NarrativeStatus string         `json:"narrative_status"`
	EmbeddedAt      *time.Time     `json:"embedded_at,omitempty"`
	ContentVersion  string         `json:"content_version"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// GroupResult summarizes one grouping pass
type GroupResult struct {
	CommitsGrouped  int `json:"commits_grouped"`
	SessionsCreated int `json:"sessions_created"`
	SessionsMerged  int `json:"sessions_merged"`
}

// SimilarSession is one ranked hit from the similarity query
type SimilarSession struct {
	SessionID string  `json:"session_id"`
	Score     float64 `json:"score"`
}
