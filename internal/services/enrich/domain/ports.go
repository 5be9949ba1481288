package domain

import (
	"context"

	sessdom "devlog/internal/services/sessions/domain"
)

// NarrativePort serves on-demand narrative generation
// concurrent callers for the same session share one in-flight computation
type NarrativePort interface {
	Narrative(ctx context.Context, sessionID string) (NarrativeResult, error)
}

// SimilarPort answers nearest-session queries from the vector index
type SimilarPort interface {
	Similar(ctx context.Context, sessionID string, k int, sameOwner bool) ([]sessdom.SimilarSession, error)
}

// WeeklyPort serves the cached trailing-week summary
type WeeklyPort interface {
	WeeklySummary(ctx context.Context, ownerID int64) (WeeklySummary, error)
}
