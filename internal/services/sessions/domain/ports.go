package domain

import "context"

// GrouperPort applies the gap rule to ungrouped commits
// grouping for one (repository, author) pair is strictly serialized
type GrouperPort interface {
	// GroupPair groups every ungrouped commit of the pair in timestamp order
	GroupPair(ctx context.Context, repoID int64, authorEmail string) (GroupResult, error)

	// GroupUngrouped sweeps all pairs that currently have ungrouped commits
	GroupUngrouped(ctx context.Context) (GroupResult, error)
}

// ReaderPort serves session reads
type ReaderPort interface {
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]Session, error)
	Get(ctx context.Context, id string) (Session, error)
}
