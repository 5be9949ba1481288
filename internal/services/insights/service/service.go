// Package service recomputes owner coding patterns over a trailing window
package service

import (
	"context"
	"encoding/json"
	"time"

	"devlog/internal/modkit/repokit"
	perr "devlog/internal/platform/errors"
	"devlog/internal/platform/logger"
	"devlog/internal/services/insights/domain"
	"devlog/internal/services/insights/repo"
	jobsdom "devlog/internal/services/jobs/domain"

	"golang.org/x/sync/errgroup"
)

// WindowDays is the trailing insight window
const WindowDays = 30

// Config carries the recompute knobs
type Config struct {
	Parallelism int // concurrent owners per sweep
}

// Svc implements the insight ports and the scheduled recompute handler
type Svc struct {
	Repo   repo.Repo
	binder repokit.Binder[repo.Repo]
	db     repokit.TxRunner
	cfg    Config
}

// New creates the insights service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], cfg Config) *Svc {
	if db == nil {
		panic("insights.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("insights.Service requires a non nil Repo binder")
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &Svc{
		Repo:   binder.Bind(db),
		binder: binder,
		db:     db,
		cfg:    cfg,
	}
}

var (
	_ domain.ReaderPort    = (*Svc)(nil)
	_ domain.RecomputePort = (*Svc)(nil)
)

// Insights returns the stored payload for one owner
func (s *Svc) Insights(ctx context.Context, ownerID int64) (domain.OwnerInsights, error) {
	row, err := s.Repo.GetInsights(ctx, ownerID)
	if err != nil {
		return domain.OwnerInsights{}, err
	}
	if row == nil {
		return domain.OwnerInsights{}, perr.NotFoundf("no insights for owner %d", ownerID)
	}
	var out domain.OwnerInsights
	if err := json.Unmarshal(row.Payload, &out); err != nil {
		return domain.OwnerInsights{}, perr.Wrap(err, perr.ErrorCodeJSON, "decode insight payload")
	}
	return out, nil
}

// Recompute rebuilds and stores one owner's insights from the trailing
// window; the stored payload is replaced wholesale
func (s *Svc) Recompute(ctx context.Context, ownerID int64) (domain.OwnerInsights, error) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -WindowDays)

	sessions, err := s.Repo.SessionsOfOwnerSince(ctx, ownerID, since)
	if err != nil {
		return domain.OwnerInsights{}, err
	}
	commitTimes, err := s.Repo.CommitTimesOfOwnerSince(ctx, ownerID, since)
	if err != nil {
		return domain.OwnerInsights{}, err
	}

	out := compute(ownerID, since, now, sessions, commitTimes)

	payload, err := json.Marshal(out)
	if err != nil {
		return domain.OwnerInsights{}, perr.Wrap(err, perr.ErrorCodeJSON, "encode insight payload")
	}
	if err := s.Repo.UpsertInsights(ctx, repo.RowInsights{
		OwnerID:     ownerID,
		WindowStart: since,
		WindowEnd:   now,
		Payload:     payload,
		ComputedAt:  now,
	}); err != nil {
		return domain.OwnerInsights{}, err
	}
	return out, nil
}

// RecomputeAll sweeps every owner active inside the window
func (s *Svc) RecomputeAll(ctx context.Context) error {
	since := time.Now().UTC().AddDate(0, 0, -WindowDays)
	owners, err := s.Repo.OwnersWithSessionsSince(ctx, since)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for _, owner := range owners {
		g.Go(func() error {
			if _, err := s.Recompute(ctx, owner); err != nil {
				logger.C(ctx).Error().Err(err).Int64("owner_id", owner).Msg("insight recompute failed")
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// RegisterHandlers attaches the recompute sweep to the worker
func (s *Svc) RegisterHandlers(reg jobsdom.RegistryPort) {
	reg.Register(jobsdom.KindInsights, s.HandleInsights)
}

// HandleInsights is the scheduled job entry point
func (s *Svc) HandleInsights(ctx context.Context, _ jobsdom.Job) error {
	return s.RecomputeAll(ctx)
}
