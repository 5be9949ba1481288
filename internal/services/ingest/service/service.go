// Package service contains ingest workflows
package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"devlog/internal/core/langcode"
	"devlog/internal/modkit/repokit"
	perr "devlog/internal/platform/errors"
	"devlog/internal/platform/logger"
	"devlog/internal/services/ingest/domain"
	"devlog/internal/services/ingest/repo"
	sessdom "devlog/internal/services/sessions/domain"
)

// Service defines the service contract for ingest
type Service interface{ domain.ServicePort }

// Svc implements the Service interface
type Svc struct {
	Repo    repo.Repo
	binder  repokit.Binder[repo.Repo]
	db      repokit.TxRunner
	grouper sessdom.GrouperPort
}

// New creates a new ingest service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], grouper sessdom.GrouperPort) *Svc {
	if db == nil {
		panic("ingest.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("ingest.Service requires a non nil Repo binder")
	}
	if grouper == nil {
		panic("ingest.Service requires a non nil sessions GrouperPort")
	}
	return &Svc{Repo: binder.Bind(db), binder: binder, db: db, grouper: grouper}
}

// ProcessPush ingests one verified push delivery
// commits dedupe on content hash so providers may redeliver freely;
// grouping runs synchronously per touched (repository, author) pair
func (s *Svc) ProcessPush(ctx context.Context, p domain.PushPayload) (domain.PushResult, error) {
	log := logger.C(ctx)

	rr, err := s.Repo.FindByGithubID(ctx, p.Repository.ID)
	if err != nil {
		return domain.PushResult{}, err
	}
	if rr == nil || !rr.TrackingEnabled {
		log.Debug().
			Int64("github_id", p.Repository.ID).
			Str("full_name", p.Repository.FullName).
			Msg("push for unknown or untracked repository ignored")
		return domain.PushResult{Ignored: true, CommitsSkipped: len(p.Commits)}, nil
	}

	var (
		inserted int
		authors  = map[string]struct{}{}
	)
	err = repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		txRepo := s.binder.Bind(q)
		for _, c := range p.Commits {
			row, buildErr := buildCommitRow(rr.ID, c)
			if buildErr != nil {
				return buildErr
			}
			ok, insErr := txRepo.InsertCommit(ctx, row)
			if insErr != nil {
				return insErr
			}
			if ok {
				inserted++
				authors[c.Author.Email] = struct{}{}
			}
		}
		return txRepo.TouchLastSynced(ctx, rr.ID, time.Now().UTC())
	})
	if err != nil {
		return domain.PushResult{}, err
	}

	out := domain.PushResult{
		CommitsProcessed: inserted,
		CommitsSkipped:   len(p.Commits) - inserted,
	}

	// deterministic pair order keeps concurrent deliveries lock-ordered
	emails := make([]string, 0, len(authors))
	for e := range authors {
		emails = append(emails, e)
	}
	sort.Strings(emails)

	for _, email := range emails {
		res, gErr := s.grouper.GroupPair(ctx, rr.ID, email)
		if gErr != nil {
			// commits stay ungrouped; the regroup sweep picks them up
			log.Error().Err(gErr).
				Int64("repo_id", rr.ID).
				Str("author", email).
				Msg("grouping failed after ingest")
			return out, gErr
		}
		out.SessionsCreated += res.SessionsCreated
		out.SessionsMerged += res.SessionsMerged
	}

	log.Info().
		Str("repo", rr.FullName).
		Int("commits", inserted).
		Int("skipped", out.CommitsSkipped).
		Int("sessions_created", out.SessionsCreated).
		Msg("push ingested")
	return out, nil
}

// RegisterRepo creates or refreshes a tracked repository
func (s *Svc) RegisterRepo(ctx context.Context, in domain.RegisterRepoInput) (domain.Repository, error) {
	branch := in.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	rr, err := s.Repo.UpsertRepository(ctx, in.GithubID, in.FullName, in.OwnerID, branch)
	if err != nil {
		return domain.Repository{}, err
	}
	return toRepository(rr), nil
}

// ListRepos lists tracked repositories, optionally for one owner
func (s *Svc) ListRepos(ctx context.Context, in domain.ListReposInput) ([]domain.Repository, error) {
	rows, err := s.Repo.ListRepositories(ctx, in.OwnerID, in.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Repository, 0, len(rows))
	for _, rr := range rows {
		out = append(out, toRepository(rr))
	}
	return out, nil
}

// SetTracking flips the soft-disable flag; rows are never hard-deleted
func (s *Svc) SetTracking(ctx context.Context, repoID int64, enabled bool) (domain.Repository, error) {
	rr, err := s.Repo.SetTracking(ctx, repoID, enabled)
	if err != nil {
		return domain.Repository{}, err
	}
	if rr == nil {
		return domain.Repository{}, perr.NotFoundf("repository %d not found", repoID)
	}
	return toRepository(*rr), nil
}

func toRepository(rr repo.RowRepository) domain.Repository {
	return domain.Repository{
		ID:              rr.ID,
		GithubID:        rr.GithubID,
		FullName:        rr.FullName,
		OwnerID:         rr.OwnerID,
		DefaultBranch:   rr.DefaultBranch,
		TrackingEnabled: rr.TrackingEnabled,
		LastSyncedAt:    rr.LastSyncedAt,
		CreatedAt:       rr.CreatedAt,
		UpdatedAt:       rr.UpdatedAt,
	}
}

// buildCommitRow normalizes one payload commit into a persistable row
func buildCommitRow(repoID int64, c domain.PushCommit) (repo.RowCommit, error) {
	files := changedFiles(c)
	raw, err := json.Marshal(files)
	if err != nil {
		return repo.RowCommit{}, perr.Wrapf(err, perr.ErrorCodeValidation, "marshal changed files for %s", c.ID)
	}
	return repo.RowCommit{
		Sha:          c.ID,
		RepoID:       repoID,
		AuthorName:   c.Author.Name,
		AuthorEmail:  c.Author.Email,
		Message:      c.Message,
		CommittedAt:  commitTime(c.Timestamp),
		Additions:    c.Additions,
		Deletions:    c.Deletions,
		FilesChanged: len(files),
		Files:        raw,
	}, nil
}

// changedFiles flattens the path lists into ordered descriptors with the
// inferred language per path
func changedFiles(c domain.PushCommit) []domain.FileChange {
	out := make([]domain.FileChange, 0, len(c.Added)+len(c.Removed)+len(c.Modified))
	add := func(paths []string, status string) {
		for _, p := range paths {
			out = append(out, domain.FileChange{
				Path:     p,
				Status:   status,
				Language: langcode.FromPath(p),
			})
		}
	}
	add(c.Added, "added")
	add(c.Removed, "removed")
	add(c.Modified, "modified")
	return out
}

// commitTime parses the payload timestamp, falling back to now in UTC
// providers occasionally send malformed timestamps and a push must not
// bounce for one bad clock
func commitTime(ts string) time.Time {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}
