// Package repo provides postgres access for ingest
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

// isNoRows covers both the raw driver sentinel and the project mapping
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, perr.ErrNotFound)
}

// RowRepository is a repositories row
type RowRepository struct {
	ID              int64
	GithubID        int64
	FullName        string
	OwnerID         int64
	DefaultBranch   string
	TrackingEnabled bool
	LastSyncedAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RowCommit is a commits row ready for insert
// Files is the changed-file descriptor list already marshaled to jsonb
type RowCommit struct {
	Sha          string
	RepoID       int64
	AuthorName   string
	AuthorEmail  string
	Message      string
	CommittedAt  time.Time
	Additions    int
	Deletions    int
	FilesChanged int
	Files        []byte
}

// Repo defines the repository contract for ingest
type Repo interface {
	FindByGithubID(ctx context.Context, githubID int64) (*RowRepository, error)
	FindByID(ctx context.Context, id int64) (*RowRepository, error)
	UpsertRepository(ctx context.Context, githubID int64, fullName string, ownerID int64, defaultBranch string) (RowRepository, error)
	ListRepositories(ctx context.Context, ownerID int64, limit int) ([]RowRepository, error)
	SetTracking(ctx context.Context, id int64, enabled bool) (*RowRepository, error)
	TouchLastSynced(ctx context.Context, id int64, at time.Time) error

	// InsertCommit persists a commit keyed by content hash
	// redelivery of an existing sha is a no-op and reports inserted=false
	InsertCommit(ctx context.Context, row RowCommit) (bool, error)
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

const repoCols = `
id, github_id, full_name, owner_id, default_branch, tracking_enabled,
last_synced_at, created_at, updated_at`

func scanRepository(row repokit.Row) (RowRepository, error) {
	var r RowRepository
	err := row.Scan(
		&r.ID,
		&r.GithubID,
		&r.FullName,
		&r.OwnerID,
		&r.DefaultBranch,
		&r.TrackingEnabled,
		&r.LastSyncedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func (r *queries) FindByGithubID(ctx context.Context, githubID int64) (*RowRepository, error) {
	const sql = `select ` + repoCols + ` from repositories where github_id = $1`
	rr, err := scanRepository(r.q.QueryRow(ctx, sql, githubID))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rr, nil
}

func (r *queries) FindByID(ctx context.Context, id int64) (*RowRepository, error) {
	const sql = `select ` + repoCols + ` from repositories where id = $1`
	rr, err := scanRepository(r.q.QueryRow(ctx, sql, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rr, nil
}

func (r *queries) UpsertRepository(
	ctx context.Context,
	githubID int64,
	fullName string,
	ownerID int64,
	defaultBranch string,
) (RowRepository, error) {
	const sql = `
insert into repositories (github_id, full_name, owner_id, default_branch, tracking_enabled)
values ($1, $2, $3, $4, true)
on conflict (github_id) do update
set full_name = excluded.full_name,
    default_branch = excluded.default_branch,
    updated_at = now()
returning ` + repoCols
	rr, err := scanRepository(r.q.QueryRow(ctx, sql, githubID, fullName, ownerID, defaultBranch))
	if err != nil {
		return RowRepository{}, perr.FromPostgres(err, "upsert repository")
	}
	return rr, nil
}

func (r *queries) ListRepositories(ctx context.Context, ownerID int64, limit int) ([]RowRepository, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const sql = `
select ` + repoCols + `
from repositories
where ($1 = 0 or owner_id = $1)
order by full_name asc
limit $2`
	return store.Many(ctx, r.q, scanRepository, sql, ownerID, limit)
}

func (r *queries) SetTracking(ctx context.Context, id int64, enabled bool) (*RowRepository, error) {
	const sql = `
update repositories
set tracking_enabled = $2, updated_at = now()
where id = $1
returning ` + repoCols
	rr, err := scanRepository(r.q.QueryRow(ctx, sql, id, enabled))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rr, nil
}

func (r *queries) TouchLastSynced(ctx context.Context, id int64, at time.Time) error {
	const sql = `update repositories set last_synced_at = $2, updated_at = now() where id = $1`
	_, err := r.q.Exec(ctx, sql, id, at)
	return err
}

func (r *queries) InsertCommit(ctx context.Context, row RowCommit) (bool, error) {
	const sql = `
insert into commits
(sha, repo_id, author_name, author_email, message, committed_at,
 additions, deletions, files_changed, files)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
on conflict (sha) do nothing`
	tag, err := r.q.Exec(ctx, sql,
		row.Sha,
		row.RepoID,
		row.AuthorName,
		row.AuthorEmail,
		row.Message,
		row.CommittedAt,
		row.Additions,
		row.Deletions,
		row.FilesChanged,
		row.Files,
	)
	if err != nil {
		return false, perr.FromPostgres(err, "insert commit")
	}
	return tag.RowsAffected() == 1, nil
}
