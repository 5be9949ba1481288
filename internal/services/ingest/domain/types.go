// Package domain holds push payload DTOs and ingest contracts
package domain

import "time"

// PushAuthor identifies a commit author in the push payload
type PushAuthor struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,max=320"`
}

// PushCommit is one commit descriptor from the push payload
// Added/Removed/Modified carry file paths relative to the repo root
type PushCommit struct {
	ID        string     `json:"id" validate:"required,hexadecimal,min=7,max=64"`
	Message   string     `json:"message" validate:"max=65536"`
	Timestamp string     `json:"timestamp" validate:"required"`
	Author    PushAuthor `json:"author" validate:"required"`
	Additions int        `json:"additions,omitempty" validate:"min=0"`
	Deletions int        `json:"deletions,omitempty" validate:"min=0"`
	Added     []string   `json:"added,omitempty"`
	Removed   []string   `json:"removed,omitempty"`
	Modified  []string   `json:"modified,omitempty"`
}

// PushRepository identifies the repository the push targets
type PushRepository struct {
	ID       int64  `json:"id" validate:"required"`
	FullName string `json:"full_name" validate:"required,max=200"`
	Owner    struct {
		ID int64 `json:"id"`
	} `json:"owner"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

// PushPayload is the normalized inbound push event
type PushPayload struct {
	Ref        string         `json:"ref" validate:"required"`
	Repository PushRepository `json:"repository" validate:"required"`
	Commits    []PushCommit   `json:"commits" validate:"omitempty,dive"`
}

// PushResult reports what one delivery did
// Ignored is set for unknown or tracking-disabled repositories; the
// provider still gets a 200 so it stops redelivering
type PushResult struct {
	Ignored          bool `json:"ignored,omitempty"`
	CommitsProcessed int  `json:"commits_processed"`
	CommitsSkipped   int  `json:"commits_skipped"`
	SessionsCreated  int  `json:"sessions_created"`
	SessionsMerged   int  `json:"sessions_merged,omitempty"`
}

// FileChange is one changed-file descriptor persisted on the commit
type FileChange struct {
	Path     string `json:"path"`
	Status   string `json:"status"`
	Language string `json:"language,omitempty"`
}

// Repository is the tracked repository record
type Repository struct {
	ID              int64      `json:"id"`
	GithubID        int64      `json:"github_id"`
	FullName        string     `json:"full_name"`
	OwnerID         int64      `json:"owner_id"`
	DefaultBranch   string     `json:"default_branch"`
	TrackingEnabled bool       `json:"tracking_enabled"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// RegisterRepoInput registers a repository for tracking
type RegisterRepoInput struct {
	GithubID      int64  `json:"github_id" validate:"required"`
	FullName      string `json:"full_name" validate:"required,repo_path,max=200"`
	OwnerID       int64  `json:"owner_id" validate:"required"`
	DefaultBranch string `json:"default_branch,omitempty" validate:"omitempty,max=200"`
}

// ListReposInput filters the repository listing
type ListReposInput struct {
	OwnerID int64 `json:"owner_id,omitempty"`
	Limit   int   `json:"limit,omitempty" validate:"omitempty,min=1,max=200"`
}

// ToggleTrackingInput flips the soft-disable flag
type ToggleTrackingInput struct {
	Enabled *bool `json:"enabled" validate:"required"`
}
