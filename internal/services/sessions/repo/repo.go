// Package repo provides postgres access for session grouping and reads
package repo

import (
	"context"
	"errors"
	"time"

	"devlog/internal/modkit/repokit"
	perr "devlog/internal/platform/errors"
	"devlog/internal/platform/store"

	"github.com/jackc/pgx/v5"
)

// RowSpan is the minimal window view the grouping algorithm works on
type RowSpan struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
}

// RowCommit is one commit as the grouper sees it
type RowCommit struct {
	Sha          string
	AuthorName   string
	Message      string
	CommittedAt  time.Time
	Additions    int
	Deletions    int
	FilesChanged int
	Files        []byte
}

// RowAggregates carries the recomputed session aggregate fields
type RowAggregates struct {
	SessionID       string
	StartedAt       time.Time
	EndedAt         time.Time
	DurationMinutes int
	TotalCommits    int
	TotalAdditions  int
	TotalDeletions  int
	FilesChanged    int
	LangLines       []byte
	PrimaryLanguage string
	ContentVersion  string
}

// RowSession is the full session row for reads
type RowSession struct {
	ID              string
	RepoID          int64
	OwnerID         int64
	AuthorEmail     string
	StartedAt       time.Time
	EndedAt         time.Time
	DurationMinutes int
	TotalCommits    int
	TotalAdditions  int
	TotalDeletions  int
	FilesChanged    int
	LangLines       []byte
	PrimaryLanguage string
	Narrative       *string
	NarrativeModel  *string
	NarrativeAt     *time.Time
	NarrativeStatus string
	EmbeddedAt      *time.Time
	ContentVersion  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Pair identifies one grouping scope
type Pair struct {
	RepoID      int64
	AuthorEmail string
}

// Repo defines the repository contract for sessions
type Repo interface {
	// AcquirePairLock serializes grouping for one (repository, author)
	// pair for the remainder of the enclosing transaction
	AcquirePairLock(ctx context.Context, repoID int64, authorEmail string) error

	RepoOwner(ctx context.Context, repoID int64) (int64, error)
	ListSpans(ctx context.Context, repoID int64, authorEmail string) ([]RowSpan, error)
	UngroupedCommits(ctx context.Context, repoID int64, authorEmail string) ([]RowCommit, error)
	UngroupedPairs(ctx context.Context, limit int) ([]Pair, error)

	CreateSession(ctx context.Context, id string, repoID, ownerID int64, authorEmail string, start, end time.Time) error
	AssignCommit(ctx context.Context, sha, sessionID string) error
	ReparentCommits(ctx context.Context, fromSessionID, toSessionID string) (int64, error)
	DeleteSession(ctx context.Context, id string) error
	CommitsOfSession(ctx context.Context, sessionID string) ([]RowCommit, error)
	UpdateAggregates(ctx context.Context, agg RowAggregates) error

	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]RowSession, error)
	GetByID(ctx context.Context, id string) (*RowSession, error)
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

func (r *queries) AcquirePairLock(ctx context.Context, repoID int64, authorEmail string) error {
	// two-key advisory lock scoped to the transaction; released on
	// commit or rollback, never explicitly
	const sql = `select pg_advisory_xact_lock(hashtext($1::text), hashtext($2))`
	_, err := r.q.Exec(ctx, sql, repoID, authorEmail)
	return err
}

func (r *queries) RepoOwner(ctx context.Context, repoID int64) (int64, error) {
	const sql = `select owner_id from repositories where id = $1`
	owner, err := store.Scalar[int64](ctx, r.q, sql, repoID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, perr.NotFoundf("repository %d not found", repoID)
		}
		return 0, err
	}
	return owner, nil
}

func (r *queries) ListSpans(ctx context.Context, repoID int64, authorEmail string) ([]RowSpan, error) {
	const sql = `
select id::text, started_at, ended_at
from coding_sessions
where repo_id = $1 and author_email = $2
order by started_at asc`
	return store.Many(ctx, r.q, func(row store.Row) (RowSpan, error) {
		var s RowSpan
		err := row.Scan(&s.ID, &s.StartedAt, &s.EndedAt)
		return s, err
	}, sql, repoID, authorEmail)
}

const commitCols = `sha, author_name, message, committed_at, additions, deletions, files_changed, files`

func scanCommit(row store.Row) (RowCommit, error) {
	var c RowCommit
	err := row.Scan(
		&c.Sha,
		&c.AuthorName,
		&c.Message,
		&c.CommittedAt,
		&c.Additions,
		&c.Deletions,
		&c.FilesChanged,
		&c.Files,
	)
	return c, err
}

func (r *queries) UngroupedCommits(ctx context.Context, repoID int64, authorEmail string) ([]RowCommit, error) {
	// timestamp order, sha as tiebreaker, so replays are deterministic
	const sql = `
select ` + commitCols + `
from commits
where repo_id = $1 and author_email = $2 and session_id is null
order by committed_at asc, sha asc`
	return store.Many(ctx, r.q, scanCommit, sql, repoID, authorEmail)
}

func (r *queries) UngroupedPairs(ctx context.Context, limit int) ([]Pair, error) {
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	const sql = `
select distinct repo_id, author_email
from commits
where session_id is null
order by repo_id, author_email
limit $1`
	return store.Many(ctx, r.q, func(row store.Row) (Pair, error) {
		var p Pair
		err := row.Scan(&p.RepoID, &p.AuthorEmail)
		return p, err
	}, sql, limit)
}

func (r *queries) CreateSession(
	ctx context.Context,
	id string,
	repoID, ownerID int64,
	authorEmail string,
	start, end time.Time,
) error {
	const sql = `
insert into coding_sessions
(id, repo_id, owner_id, author_email, started_at, ended_at, narrative_status, content_version)
values ($1, $2, $3, $4, $5, $6, 'none', '')`
	_, err := r.q.Exec(ctx, sql, id, repoID, ownerID, authorEmail, start, end)
	return perr.FromPostgres(err, "create session")
}

func (r *queries) AssignCommit(ctx context.Context, sha, sessionID string) error {
	// assigning a commit the grouper did not just read is a bug
	const sql = `update commits set session_id = $2 where sha = $1`
	return store.ExecOne(ctx, r.q, sql, sha, sessionID)
}

func (r *queries) ReparentCommits(ctx context.Context, fromSessionID, toSessionID string) (int64, error) {
	const sql = `update commits set session_id = $2 where session_id = $1`
	tag, err := r.q.Exec(ctx, sql, fromSessionID, toSessionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *queries) DeleteSession(ctx context.Context, id string) error {
	const sql = `delete from coding_sessions where id = $1`
	_, err := r.q.Exec(ctx, sql, id)
	return err
}

func (r *queries) CommitsOfSession(ctx context.Context, sessionID string) ([]RowCommit, error) {
	const sql = `
select ` + commitCols + `
from commits
where session_id = $1
order by committed_at asc, sha asc`
	return store.Many(ctx, r.q, scanCommit, sql, sessionID)
}

func (r *queries) UpdateAggregates(ctx context.Context, agg RowAggregates) error {
	const sql = `
update coding_sessions
set started_at = $2,
    ended_at = $3,
    duration_minutes = $4,
    total_commits = $5,
    total_additions = $6,
    total_deletions = $7,
    files_changed = $8,
    lang_lines = $9,
    primary_language = $10,
    content_version = $11,
    updated_at = now()
where id = $1`
	_, err := r.q.Exec(ctx, sql,
		agg.SessionID,
		agg.StartedAt,
		agg.EndedAt,
		agg.DurationMinutes,
		agg.TotalCommits,
		agg.TotalAdditions,
		agg.TotalDeletions,
		agg.FilesChanged,
		agg.LangLines,
		agg.PrimaryLanguage,
		agg.ContentVersion,
	)
	return perr.FromPostgres(err, "update session aggregates")
}

const sessionCols = `
id::text, repo_id, owner_id, author_email, started_at, ended_at,
duration_minutes, total_commits, total_additions, total_deletions,
files_changed, lang_lines, primary_language, narrative, narrative_model,
narrative_at, narrative_status, embedded_at, content_version, created_at, updated_at`

func scanSession(row repokit.Row) (RowSession, error) {
	var s RowSession
	err := row.Scan(
		&s.ID,
		&s.RepoID,
		&s.OwnerID,
		&s.AuthorEmail,
		&s.StartedAt,
		&s.EndedAt,
		&s.DurationMinutes,
		&s.TotalCommits,
		&s.TotalAdditions,
		&s.TotalDeletions,
		&s.FilesChanged,
		&s.LangLines,
		&s.PrimaryLanguage,
		&s.Narrative,
		&s.NarrativeModel,
		&s.NarrativeAt,
		&s.NarrativeStatus,
		&s.EmbeddedAt,
		&s.ContentVersion,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	return s, err
}

func (r *queries) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]RowSession, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const sql = `
select ` + sessionCols + `
from coding_sessions
where owner_id = $1
order by started_at desc
limit $2 offset $3`
	return store.Many(ctx, r.q, scanSession, sql, ownerID, limit, offset)
}

func (r *queries) GetByID(ctx context.Context, id string) (*RowSession, error) {
	const sql = `select ` + sessionCols + ` from coding_sessions where id = $1`
	s, err := scanSession(r.q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
