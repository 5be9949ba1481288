package domain

import "context"

// ServicePort is the ingest contract other modules and transports use
type ServicePort interface {
	ProcessPush(ctx context.Context, p PushPayload) (PushResult, error)
	RegisterRepo(ctx context.Context, in RegisterRepoInput) (Repository, error)
	ListRepos(ctx context.Context, in ListReposInput) ([]Repository, error)
	SetTracking(ctx context.Context, repoID int64, enabled bool) (Repository, error)
}
