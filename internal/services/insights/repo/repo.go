// Package repo provides postgres access for owner insights
package repo

import (
	"context"
	"errors"
	"time"

	"devlog/internal/modkit/repokit"
	"devlog/internal/platform/store"

	"github.com/jackc/pgx/v5"
)

// RowWindowSession is one session inside the insight window
type RowWindowSession struct {
	StartedAt       time.Time
	DurationMinutes int
	TotalCommits    int
	TotalAdditions  int
	TotalDeletions  int
	PrimaryLanguage string
}

// RowInsights is the stored payload for one owner
type RowInsights struct {
	OwnerID     int64
	WindowStart time.Time
	WindowEnd   time.Time
	Payload     []byte
	ComputedAt  time.Time
}

// Repo defines the repository contract for insights
type Repo interface {
	OwnersWithSessionsSince(ctx context.Context, since time.Time) ([]int64, error)
	SessionsOfOwnerSince(ctx context.Context, ownerID int64, since time.Time) ([]RowWindowSession, error)
	CommitTimesOfOwnerSince(ctx context.Context, ownerID int64, since time.Time) ([]time.Time, error)

	UpsertInsights(ctx context.Context, row RowInsights) error
	GetInsights(ctx context.Context, ownerID int64) (*RowInsights, error)
}

type (
	// PG implements the Repo interface using Postgres
	PG struct{}

	// queries holds the database query methods
	queries struct{ q repokit.Queryer }
)

// NewPG creates a new Postgres repository binder
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Postgres queryer to the Repo implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) OwnersWithSessionsSince(ctx context.Context, since time.Time) ([]int64, error) {
	const sql = `
select distinct owner_id
from coding_sessions
where started_at >= $1
order by owner_id`
	return store.Many(ctx, r.q, func(row store.Row) (int64, error) {
		var id int64
		err := row.Scan(&id)
		return id, err
	}, sql, since)
}

func (r *queries) SessionsOfOwnerSince(ctx context.Context, ownerID int64, since time.Time) ([]RowWindowSession, error) {
	const sql = `
select started_at, duration_minutes, total_commits, total_additions,
       total_deletions, primary_language
from coding_sessions
where owner_id = $1 and started_at >= $2
order by started_at asc`
	rows, err := r.q.Query(ctx, sql, ownerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RowWindowSession
	for rows.Next() {
		var s RowWindowSession
		if err := rows.Scan(
			&s.StartedAt,
			&s.DurationMinutes,
			&s.TotalCommits,
			&s.TotalAdditions,
			&s.TotalDeletions,
			&s.PrimaryLanguage,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *queries) CommitTimesOfOwnerSince(ctx context.Context, ownerID int64, since time.Time) ([]time.Time, error) {
	const sql = `
select c.committed_at
from commits c
join coding_sessions s on s.id = c.session_id
where s.owner_id = $1 and c.committed_at >= $2
order by c.committed_at asc`
	return store.Many(ctx, r.q, func(row store.Row) (time.Time, error) {
		var t time.Time
		err := row.Scan(&t)
		return t, err
	}, sql, ownerID, since)
}

func (r *queries) UpsertInsights(ctx context.Context, row RowInsights) error {
	const sql = `
insert into owner_insights (owner_id, window_start, window_end, payload, computed_at)
values ($1, $2, $3, $4, $5)
on conflict (owner_id) do update
set window_start = excluded.window_start,
    window_end = excluded.window_end,
    payload = excluded.payload,
    computed_at = excluded.computed_at`
	_, err := r.q.Exec(ctx, sql, row.OwnerID, row.WindowStart, row.WindowEnd, row.Payload, row.ComputedAt)
	return err
}

func (r *queries) GetInsights(ctx context.Context, ownerID int64) (*RowInsights, error) {
	const sql = `
select owner_id, window_start, window_end, payload, computed_at
from owner_insights
where owner_id = $1`
	var out RowInsights
	err := r.q.QueryRow(ctx, sql, ownerID).Scan(
		&out.OwnerID,
		&out.WindowStart,
		&out.WindowEnd,
		&out.Payload,
		&out.ComputedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}
