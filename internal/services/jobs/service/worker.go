package service

import (
	"context"
	"time"

	perr "devlog/internal/platform/errors"
	"devlog/internal/platform/logger"

	dom "devlog/internal/services/jobs/domain"
)

// Run starts the worker loop consuming the queue until ctx is done
func (s *Svc) Run(ctx context.Context) error {
	log := logger.Named("jobs-worker")
	sem := make(chan struct{}, s.cfg.Concurrency)
	ticker := time.NewTicker(s.cfg.PollEvery)
	defer ticker.Stop()

	reclaim := time.NewTicker(30 * time.Second)
	defer reclaim.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-reclaim.C:
			if n, err := s.repo.ReclaimExpired(ctx); err != nil {
				log.Error().Err(err).Msg("reclaim expired leases failed")
			} else if n > 0 {
				log.Warn().Int64("jobs", n).Msg("reclaimed expired leases")
			}

		case <-ticker.C:
			jobs, err := s.repo.Lease(ctx, s.cfg.QueueTakeBatch, s.cfg.LeaseFor)
			if err != nil {
				log.Error().Err(err).Msg("lease jobs failed")
				continue
			}
			for i := range jobs {
				sem <- struct{}{}
				j := jobs[i]
				go func() {
					defer func() { <-sem }()
					if err := s.handleJob(ctx, j); err != nil {
						log.Warn().Err(err).Str("job_id", j.ID).Str("kind", string(j.Kind)).Msg("job failed")
					}
				}()
			}
		}
	}
}

// handleJob runs one leased job and writes back the outcome
// retry bookkeeping lives here; the handler only does the work
func (s *Svc) handleJob(ctx context.Context, j dom.Job) error {
	log := logger.Named("jobs-worker")

	h, ok := s.handler(j.Kind)
	if !ok {
		err := perr.Internalf("no handler registered for kind %q", j.Kind)
		_ = s.repo.MarkFailed(ctx, j.ID, err.Error())
		return err
	}

	err := h(ctx, j)
	if err == nil {
		return s.repo.Complete(ctx, j.ID)
	}

	// the lease already counted this delivery
	tries := j.Attempts
	// IsRetryable catches raw DB contention the handler did not classify
	if (perr.Retryable(err) || perr.IsRetryable(err)) && tries < j.MaxAttempts {
		delay := nextAfter(tries, time.Duration(s.cfg.RetryBaseMs)*time.Millisecond)
		log.Debug().
			Str("job_id", j.ID).
			Str("kind", string(j.Kind)).
			Int("attempt", tries).
			Dur("backoff", delay).
			Msg("transient failure, requeueing")
		if rqErr := s.repo.Requeue(ctx, j.ID, err.Error(), time.Now().UTC().Add(delay)); rqErr != nil {
			return rqErr
		}
		return err
	}

	// budget exhausted or non-retryable: record terminal failure and
	// let the owning stage surface "unavailable"
	termErr := perr.Wrapf(err, perr.ErrorCodeExhausted, "job %s terminal after %d attempts", j.ID, tries)
	if mfErr := s.repo.MarkFailed(ctx, j.ID, err.Error()); mfErr != nil {
		return mfErr
	}
	if hook, ok := s.terminal(j.Kind); ok {
		hook(ctx, j, err)
	}
	return termErr
}
