package domain

import "context"

// ReaderPort serves stored insight payloads
type ReaderPort interface {
	Insights(ctx context.Context, ownerID int64) (OwnerInsights, error)
}

// RecomputePort recomputes and stores insights
type RecomputePort interface {
	Recompute(ctx context.Context, ownerID int64) (OwnerInsights, error)
	RecomputeAll(ctx context.Context) error
}
