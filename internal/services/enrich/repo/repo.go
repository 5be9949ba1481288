// Package repo provides postgres access for enrichment stages
package repo

import (
	"context"
	"errors"
	"time"

	"devlog/internal/modkit/repokit"
	"devlog/internal/platform/store"

	"github.com/jackc/pgx/v5"
)

// RowSessionContext is everything a capability prompt needs for one session
type RowSessionContext struct {
	SessionID       string
	RepoFullName    string
	OwnerID         int64
	AuthorEmail     string
	StartedAt       time.Time
	EndedAt         time.Time
	TotalCommits    int
	TotalAdditions  int
	TotalDeletions  int
	LangLines       []byte
	PrimaryLanguage string
	ContentVersion  string
	NarrativeStatus string
}

// RowSessionCommit is one commit feeding the prompt context
type RowSessionCommit struct {
	Sha     string
	Message string
	Files   []byte
}

// RowWeekSession is one session inside the weekly window
type RowWeekSession struct {
	StartedAt       time.Time
	DurationMinutes int
	TotalCommits    int
	TotalAdditions  int
	TotalDeletions  int
	PrimaryLanguage string
	ContentVersion  string
}

// Repo defines the repository contract for enrich
type Repo interface {
	SessionContext(ctx context.Context, sessionID string) (*RowSessionContext, error)
	SessionCommits(ctx context.Context, sessionID string) ([]RowSessionCommit, error)

	SetNarrative(ctx context.Context, sessionID, narrative, model string, at time.Time) error
	SetNarrativeStatus(ctx context.Context, sessionID, status string) error
	SetEmbeddedAt(ctx context.Context, sessionID string, at time.Time) error

	OwnersWithSessionsSince(ctx context.Context, since time.Time) ([]int64, error)
	SessionsOfOwnerSince(ctx context.Context, ownerID int64, since time.Time) ([]RowWeekSession, error)
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

func (r *queries) SessionContext(ctx context.Context, sessionID string) (*RowSessionContext, error) {
	const sql = `
select s.id::text, coalesce(r.full_name, ''), s.owner_id, s.author_email,
       s.started_at, s.ended_at, s.total_commits, s.total_additions,
       s.total_deletions, s.lang_lines, s.primary_language,
       s.content_version, s.narrative_status
from coding_sessions s
left join repositories r on r.id = s.repo_id
where s.id = $1`
	var out RowSessionContext
	err := r.q.QueryRow(ctx, sql, sessionID).Scan(
		&out.SessionID,
		&out.RepoFullName,
		&out.OwnerID,
		&out.AuthorEmail,
		&out.StartedAt,
		&out.EndedAt,
		&out.TotalCommits,
		&out.TotalAdditions,
		&out.TotalDeletions,
		&out.LangLines,
		&out.PrimaryLanguage,
		&out.ContentVersion,
		&out.NarrativeStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *queries) SessionCommits(ctx context.Context, sessionID string) ([]RowSessionCommit, error) {
	const sql = `
select sha, message, files
from commits
where session_id = $1
order by committed_at asc, sha asc`
	rows, err := r.q.Query(ctx, sql, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RowSessionCommit
	for rows.Next() {
		var c RowSessionCommit
		if err := rows.Scan(&c.Sha, &c.Message, &c.Files); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *queries) SetNarrative(ctx context.Context, sessionID, narrative, model string, at time.Time) error {
	const sql = `
update coding_sessions
set narrative = $2,
    narrative_model = $3,
    narrative_at = $4,
    narrative_status = 'ready',
    updated_at = now()
where id = $1`
	_, err := r.q.Exec(ctx, sql, sessionID, narrative, model, at)
	return err
}

func (r *queries) SetNarrativeStatus(ctx context.Context, sessionID, status string) error {
	const sql = `update coding_sessions set narrative_status = $2, updated_at = now() where id = $1`
	_, err := r.q.Exec(ctx, sql, sessionID, status)
	return err
}

func (r *queries) SetEmbeddedAt(ctx context.Context, sessionID string, at time.Time) error {
	const sql = `update coding_sessions set embedded_at = $2, updated_at = now() where id = $1`
	_, err := r.q.Exec(ctx, sql, sessionID, at)
	return err
}

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

func (r *queries) SessionsOfOwnerSince(ctx context.Context, ownerID int64, since time.Time) ([]RowWeekSession, error) {
	const sql = `
select started_at, duration_minutes, total_commits, total_additions,
       total_deletions, primary_language, content_version
from coding_sessions
where owner_id = $1 and started_at >= $2
order by started_at asc`
	rows, err := r.q.Query(ctx, sql, ownerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RowWeekSession
	for rows.Next() {
		var s RowWeekSession
		if err := rows.Scan(
			&s.StartedAt,
			&s.DurationMinutes,
			&s.TotalCommits,
			&s.TotalAdditions,
			&s.TotalDeletions,
			&s.PrimaryLanguage,
			&s.ContentVersion,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
