// Package service applies the session gap rule transactionally
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"devlog/internal/core/sessionize"
	"devlog/internal/modkit/repokit"
	perr "devlog/internal/platform/errors"
	"devlog/internal/platform/logger"
	jobsdom "devlog/internal/services/jobs/domain"
	"devlog/internal/services/sessions/domain"
	"devlog/internal/services/sessions/repo"

	"github.com/google/uuid"
)

// Service defines the sessions contract
type Service interface {
	domain.GrouperPort
	domain.ReaderPort
}

// Svc implements the Service interface
type Svc struct {
	Repo   repo.Repo
	binder repokit.Binder[repo.Repo]
	db     repokit.TxRunner
	enq    jobsdom.EnqueuePort
}

// New creates a new sessions service
// enq may be nil when no enrichment should follow grouping (tests, tools)
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], enq jobsdom.EnqueuePort) *Svc {
	if db == nil {
		panic("sessions.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("sessions.Service requires a non nil Repo binder")
	}
	return &Svc{Repo: binder.Bind(db), binder: binder, db: db, enq: enq}
}

// GroupPair groups every ungrouped commit for one (repository, author)
// pair inside a single transaction. The pair-scoped advisory lock makes
// concurrent deliveries equivalent to sequential timestamp-order delivery.
// Bridged sessions are merged in the same transaction: commits reparented,
// the absorbed row deleted, aggregates recomputed, or none of it
func (s *Svc) GroupPair(ctx context.Context, repoID int64, authorEmail string) (domain.GroupResult, error) {
	var res domain.GroupResult
	versions := map[string]string{}

	err := repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		if err := r.AcquirePairLock(ctx, repoID, authorEmail); err != nil {
			return err
		}

		commits, err := r.UngroupedCommits(ctx, repoID, authorEmail)
		if err != nil {
			return err
		}
		if len(commits) == 0 {
			return nil
		}

		ownerID, err := r.RepoOwner(ctx, repoID)
		if err != nil {
			return err
		}

		spanRows, err := r.ListSpans(ctx, repoID, authorEmail)
		if err != nil {
			return err
		}
		spans := make([]sessionize.Span, 0, len(spanRows))
		for _, sr := range spanRows {
			spans = append(spans, sessionize.Span{ID: sr.ID, Start: sr.StartedAt, End: sr.EndedAt})
		}

		touched := map[string]struct{}{}
		for _, c := range commits {
			t := c.CommittedAt
			d := sessionize.Place(spans, t)

			var target string
			switch d.Kind {
			case sessionize.StartNew:
				target = uuid.NewString()
				if err := r.CreateSession(ctx, target, repoID, ownerID, authorEmail, t, t); err != nil {
					return err
				}
				res.SessionsCreated++

			case sessionize.Attach:
				target = d.Target

			case sessionize.Bridge:
				target = d.Target
				if _, err := r.ReparentCommits(ctx, d.Absorb, target); err != nil {
					return err
				}
				if err := r.DeleteSession(ctx, d.Absorb); err != nil {
					return err
				}
				delete(touched, d.Absorb)
				delete(versions, d.Absorb)
				res.SessionsMerged++
			}

			if err := r.AssignCommit(ctx, c.Sha, target); err != nil {
				return err
			}
			spans = sessionize.Apply(spans, d, t, target)
			touched[target] = struct{}{}
			res.CommitsGrouped++
		}

		if err := checkDisjoint(spans, repoID, authorEmail); err != nil {
			return err
		}

		for id := range touched {
			cv, err := s.refreshAggregates(ctx, r, id)
			if err != nil {
				return err
			}
			versions[id] = cv
		}
		return nil
	})
	if err != nil {
		return domain.GroupResult{}, err
	}

	s.enqueueEnrichment(ctx, versions)
	return res, nil
}

// GroupUngrouped sweeps every pair that has ungrouped commits
func (s *Svc) GroupUngrouped(ctx context.Context) (domain.GroupResult, error) {
	pairs, err := s.Repo.UngroupedPairs(ctx, 0)
	if err != nil {
		return domain.GroupResult{}, err
	}

	var total domain.GroupResult
	for _, p := range pairs {
		res, err := s.GroupPair(ctx, p.RepoID, p.AuthorEmail)
		if err != nil {
			return total, err
		}
		total.CommitsGrouped += res.CommitsGrouped
		total.SessionsCreated += res.SessionsCreated
		total.SessionsMerged += res.SessionsMerged
	}
	return total, nil
}

// checkDisjoint asserts the pair invariant before commit: sessions are
// time-ordered and separated by more than the gap
func checkDisjoint(spans []sessionize.Span, repoID int64, authorEmail string) error {
	for i := 1; i < len(spans); i++ {
		if !spans[i].Start.After(spans[i-1].End.Add(sessionize.Gap)) {
			return perr.Consistencyf(
				"sessions %s and %s overlap for repo %d author %s",
				spans[i-1].ID, spans[i].ID, repoID, authorEmail,
			)
		}
	}
	return nil
}

// fileChange mirrors the descriptor shape persisted on commits
type fileChange struct {
	Path     string `json:"path"`
	Status   string `json:"status"`
	Language string `json:"language,omitempty"`
}

// refreshAggregates recomputes every derived session field from exactly
// the commits currently assigned, so aggregates can never drift
func (s *Svc) refreshAggregates(ctx context.Context, r repo.Repo, sessionID string) (string, error) {
	commits, err := r.CommitsOfSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(commits) == 0 {
		return "", perr.Consistencyf("session %s has no commits after grouping", sessionID)
	}

	agg := repo.RowAggregates{
		SessionID: sessionID,
		StartedAt: commits[0].CommittedAt,
		EndedAt:   commits[0].CommittedAt,
	}
	langLines := map[string]int{}
	shas := make([]string, 0, len(commits))

	for _, c := range commits {
		if c.CommittedAt.Before(agg.StartedAt) {
			agg.StartedAt = c.CommittedAt
		}
		if c.CommittedAt.After(agg.EndedAt) {
			agg.EndedAt = c.CommittedAt
		}
		agg.TotalCommits++
		agg.TotalAdditions += c.Additions
		agg.TotalDeletions += c.Deletions
		agg.FilesChanged += c.FilesChanged
		shas = append(shas, c.Sha)

		var files []fileChange
		if len(c.Files) > 0 {
			if err := json.Unmarshal(c.Files, &files); err != nil {
				return "", perr.Wrapf(err, perr.ErrorCodeDB, "decode files for commit %s", c.Sha)
			}
		}
		// weight each file by its share of the commit's changed lines;
		// a commit without line stats still counts each file once
		weight := 1
		if lines := c.Additions + c.Deletions; lines > 0 && len(files) > 0 {
			if w := lines / len(files); w > 0 {
				weight = w
			}
		}
		for _, f := range files {
			if f.Language == "" {
				continue
			}
			langLines[f.Language] += weight
		}
	}

	agg.DurationMinutes = int(agg.EndedAt.Sub(agg.StartedAt) / time.Minute)
	agg.PrimaryLanguage = sessionize.PrimaryLanguage(langLines)
	agg.ContentVersion = contentVersion(shas)

	raw, err := json.Marshal(langLines)
	if err != nil {
		return "", err
	}
	agg.LangLines = raw

	return agg.ContentVersion, r.UpdateAggregates(ctx, agg)
}

// contentVersion derives a stable version tag from the commit set
// any change to session membership produces a new tag, which is what
// keys every enrichment cache entry
func contentVersion(shas []string) string {
	sorted := append([]string(nil), shas...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])[:16]
}

// enqueueEnrichment submits the follow-up jobs for changed sessions
// dedupe keys include the content version so a replayed delivery with an
// unchanged commit set coalesces instead of re-running the capability
func (s *Svc) enqueueEnrichment(ctx context.Context, versions map[string]string) {
	if s.enq == nil || len(versions) == 0 {
		return
	}
	log := logger.C(ctx)
	for id, cv := range versions {
		for _, kind := range []jobsdom.Kind{jobsdom.KindEmbedding, jobsdom.KindNarrative} {
			_, err := s.enq.Enqueue(ctx, jobsdom.EnqueueArgs{
				Kind:      kind,
				DedupeKey: string(kind) + ":" + id + ":" + cv,
				Priority:  jobsdom.PriorityIngest,
				Payload:   map[string]string{"session_id": id, "content_version": cv},
			})
			if err != nil {
				log.Warn().Err(err).
					Str("session_id", id).
					Str("kind", string(kind)).
					Msg("enrichment enqueue failed")
			}
		}
	}
}
