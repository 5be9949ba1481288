// Package repo provides the jobs queue persistence surface
package repo

import (
	"context"
	"time"

	"devlog/internal/modkit/repokit"
	"devlog/internal/services/jobs/domain"

	"github.com/google/uuid"
)

// Repo is the queue persistence surface used by the service layer
type Repo interface {
	// Enqueue inserts a job unless a live job with the same dedupe key
	// exists, in which case that job's id comes back
	Enqueue(ctx context.Context, j domain.Job) (string, error)

	// Lease takes up to limit runnable jobs ordered by priority then age
	Lease(ctx context.Context, limit int, leaseFor time.Duration) ([]domain.Job, error)

	// Complete marks a job done
	Complete(ctx context.Context, jobID string) error

	// Requeue schedules another attempt after a transient failure
	Requeue(ctx context.Context, jobID string, lastErr string, nextRunAt time.Time) error

	// MarkFailed records a terminal failure on the job row
	MarkFailed(ctx context.Context, jobID string, lastErr string) error

	// ReclaimExpired returns leased jobs whose lease lapsed to the queue
	ReclaimExpired(ctx context.Context) (int64, error)
}

type (
	// PG is a Postgres implementation of the jobs repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

const jobCols = `id::text, kind, dedupe_key, priority, state, attempts, max_attempts,
	payload, run_at, leased_until, COALESCE(last_error, ''), created_at, updated_at`

func (r *queries) Enqueue(ctx context.Context, j domain.Job) (string, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	// the partial unique index on dedupe_key over live states makes this
	// the queue-level single-flight: a live duplicate wins, we return it
	const ins = `
		INSERT INTO enrichment_jobs (id, kind, dedupe_key, priority, state, attempts, max_attempts, payload, run_at)
		VALUES ($1, $2, $3, $4, 'queued', 0, $5, $6, $7)
		ON CONFLICT (dedupe_key) WHERE state IN ('queued','leased') DO NOTHING
		RETURNING id::text
	`
	var id string
	err := r.q.QueryRow(ctx, ins, j.ID, string(j.Kind), j.DedupeKey, j.Priority, j.MaxAttempts, j.Payload, j.RunAt).
		Scan(&id)
	if err == nil {
		return id, nil
	}

	// DO NOTHING fired: fetch the live job for this key
	const sel = `
		SELECT id::text FROM enrichment_jobs
		WHERE dedupe_key = $1 AND state IN ('queued','leased')
		ORDER BY created_at DESC
		LIMIT 1
	`
	if selErr := r.q.QueryRow(ctx, sel, j.DedupeKey).Scan(&id); selErr == nil {
		return id, nil
	}
	return "", err
}

func (r *queries) Lease(ctx context.Context, limit int, leaseFor time.Duration) ([]domain.Job, error) {
	const sqlq = `
		WITH ready AS (
			SELECT id
			  FROM enrichment_jobs
			 WHERE state = 'queued'
			   AND run_at <= now()
			 ORDER BY priority ASC, created_at ASC
			 LIMIT $1
			 FOR UPDATE SKIP LOCKED
		), upd AS (
			UPDATE enrichment_jobs j
			   SET state = 'leased',
			       attempts = j.attempts + 1,
			       leased_until = now() + $2::interval,
			       updated_at = now()
			 WHERE j.id IN (SELECT id FROM ready)
			RETURNING j.*
		)
		SELECT ` + jobCols + `
		  FROM upd
		 ORDER BY priority ASC, created_at ASC
	`
	rows, err := r.q.Query(ctx, sqlq, limit, leaseFor.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		var j domain.Job
		var kind string
		if err := rows.Scan(
			&j.ID, &kind, &j.DedupeKey, &j.Priority, &j.State, &j.Attempts, &j.MaxAttempts,
			&j.Payload, &j.RunAt, &j.LeasedUntil, &j.LastError, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, err
		}
		j.Kind = domain.Kind(kind)
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *queries) Complete(ctx context.Context, jobID string) error {
	const sqlq = `
		UPDATE enrichment_jobs
		   SET state = 'done', leased_until = NULL, updated_at = now()
		 WHERE id = $1
	`
	_, err := r.q.Exec(ctx, sqlq, jobID)
	return err
}

func (r *queries) Requeue(ctx context.Context, jobID string, lastErr string, nextRunAt time.Time) error {
	const sqlq = `
		UPDATE enrichment_jobs
		   SET state = 'queued',
		       last_error = $2,
		       run_at = $3,
		       leased_until = NULL,
		       updated_at = now()
		 WHERE id = $1
	`
	_, err := r.q.Exec(ctx, sqlq, jobID, lastErr, nextRunAt)
	return err
}

func (r *queries) MarkFailed(ctx context.Context, jobID string, lastErr string) error {
	const sqlq = `
		UPDATE enrichment_jobs
		   SET state = 'failed',
		       last_error = $2,
		       leased_until = NULL,
		       updated_at = now()
		 WHERE id = $1
	`
	_, err := r.q.Exec(ctx, sqlq, jobID, lastErr)
	return err
}

func (r *queries) ReclaimExpired(ctx context.Context) (int64, error) {
	const sqlq = `
		UPDATE enrichment_jobs
		   SET state = 'queued', leased_until = NULL, updated_at = now()
		 WHERE state = 'leased' AND leased_until < now()
	`
	tag, err := r.q.Exec(ctx, sqlq)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
