package service

import (
	"context"
	"encoding/json"

	perr "devlog/internal/platform/errors"
	"devlog/internal/services/sessions/domain"
	"devlog/internal/services/sessions/repo"
)

// ListByOwner lists an owner's sessions, newest first
func (s *Svc) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Session, error) {
	rows, err := s.Repo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Session, 0, len(rows))
	for _, r := range rows {
		sess, err := toSession(r)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// Get returns one session by id
func (s *Svc) Get(ctx context.Context, id string) (domain.Session, error) {
	row, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if row == nil {
		return domain.Session{}, perr.NotFoundf("session %s not found", id)
	}
	return toSession(*row)
}

func toSession(r repo.RowSession) (domain.Session, error) {
	out := domain.Session{
		ID:              r.ID,
		RepoID:          r.RepoID,
		OwnerID:         r.OwnerID,
		AuthorEmail:     r.AuthorEmail,
		StartedAt:       r.StartedAt,
		EndedAt:         r.EndedAt,
		DurationMinutes: r.DurationMinutes,
		TotalCommits:    r.TotalCommits,
		TotalAdditions:  r.TotalAdditions,
		TotalDeletions:  r.TotalDeletions,
		FilesChanged:    r.FilesChanged,
		PrimaryLanguage: r.PrimaryLanguage,
		NarrativeStatus: r.NarrativeStatus,
		NarrativeAt:     r.NarrativeAt,
		EmbeddedAt:      r.EmbeddedAt,
		ContentVersion:  r.ContentVersion,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.Narrative != nil {
		out.Narrative = *r.Narrative
	}
	if r.NarrativeModel != nil {
		out.NarrativeModel = *r.NarrativeModel
	}
	if len(r.LangLines) > 0 {
		if err := json.Unmarshal(r.LangLines, &out.LangLines); err != nil {
			return domain.Session{}, perr.Wrapf(err, perr.ErrorCodeDB, "decode lang_lines for session %s", r.ID)
		}
	}
	return out, nil
}
