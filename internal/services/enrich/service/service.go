// Package service contains the enrichment stages: narrative, embedding
// and weekly summary, all sharing one cached-capability shape
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"devlog/internal/adapters/ai"
	"devlog/internal/adapters/vector"
	"devlog/internal/modkit/repokit"
	perr "devlog/internal/platform/errors"
	"devlog/internal/platform/store"
	"devlog/internal/services/enrich/domain"
	"devlog/internal/services/enrich/repo"
	sessdom "devlog/internal/services/sessions/domain"

	"golang.org/x/sync/singleflight"
)

// Capability is the AI surface the stages invoke
type Capability interface {
	Narrative(ctx context.Context, sc ai.SessionContext) (string, string, error)
	Embed(ctx context.Context, sc ai.SessionContext) ([]float32, error)
}

// VectorIndex is the nearest-neighbor surface embeddings land in
type VectorIndex interface {
	Upsert(ctx context.Context, sessionID string, ownerID int64, language string, vec []float32) error
	Query(ctx context.Context, vec []float32, topK int, ownerID int64, excludeID string) ([]vector.Match, error)
}

// Config carries the stage cache policies
type Config struct {
	NarrativeTTL time.Duration // narrative entries expire
	WeeklyTTL    time.Duration // weekly summaries roll over
	TopK         int           // default similarity fan-out
}

func (c Config) withDefaults() Config {
	if c.NarrativeTTL <= 0 {
		c.NarrativeTTL = 30 * 24 * time.Hour
	}
	if c.WeeklyTTL <= 0 {
		c.WeeklyTTL = 7 * 24 * time.Hour
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	return c
}

// Svc implements the enrichment ports and job handlers
type Svc struct {
	Repo   repo.Repo
	binder repokit.Binder[repo.Repo]
	db     repokit.TxRunner
	cap    Capability
	vec    VectorIndex
	kv     store.KV
	cfg    Config

	// sf coalesces concurrent narrative requests per session so the
	// on-demand path and the queued path share one capability call
	sf singleflight.Group
}

// New creates the enrich service
// vec and kv may be nil; the affected surfaces then degrade (similarity
// answers unavailable, caching becomes compute-always)
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], capability Capability, vec VectorIndex, kv store.KV, cfg Config) *Svc {
	if db == nil {
		panic("enrich.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("enrich.Service requires a non nil Repo binder")
	}
	if capability == nil {
		panic("enrich.Service requires a non nil Capability")
	}
	return &Svc{
		Repo:   binder.Bind(db),
		binder: binder,
		db:     db,
		cap:    capability,
		vec:    vec,
		kv:     kv,
		cfg:    cfg.withDefaults(),
	}
}

var (
	_ domain.NarrativePort = (*Svc)(nil)
	_ domain.SimilarPort   = (*Svc)(nil)
	_ domain.WeeklyPort    = (*Svc)(nil)
)

func narrativeKey(sessionID, contentVersion string) string {
	return "enrich:narrative:" + sessionID + ":" + contentVersion
}

func embeddingKey(sessionID, contentVersion string) string {
	return "enrich:embedding:" + sessionID + ":" + contentVersion
}

func weeklyKey(ownerID int64, at time.Time) string {
	year, week := at.UTC().ISOWeek()
	return fmt.Sprintf("enrich:weekly:%d:%d-%02d", ownerID, year, week)
}

// Narrative serves the on-demand path; concurrent callers for the same
// session join one in-flight generation
func (s *Svc) Narrative(ctx context.Context, sessionID string) (domain.NarrativeResult, error) {
	v, err, _ := s.sf.Do("narrative:"+sessionID, func() (any, error) {
		out, err := s.generateNarrative(ctx, sessionID)
		if err != nil {
			return domain.NarrativeResult{}, err
		}
		return out, nil
	})
	if err != nil {
		return domain.NarrativeResult{}, err
	}
	return v.(domain.NarrativeResult), nil
}

// generateNarrative is the single narrative code path used by both the
// on-demand endpoint and the queued job
func (s *Svc) generateNarrative(ctx context.Context, sessionID string) (domain.NarrativeResult, error) {
	row, sc, err := s.sessionContext(ctx, sessionID)
	if err != nil {
		return domain.NarrativeResult{}, err
	}

	call := cachedCall[domain.NarrativeResult]{kv: s.kv, ttl: s.cfg.NarrativeTTL}
	out, hit, err := call.do(ctx, narrativeKey(sessionID, row.ContentVersion), func(ctx context.Context) (domain.NarrativeResult, error) {
		text, model, capErr := s.cap.Narrative(ctx, sc)
		if capErr != nil {
			return domain.NarrativeResult{}, capErr
		}
		return domain.NarrativeResult{
			SessionID:   sessionID,
			Narrative:   text,
			Model:       model,
			GeneratedAt: time.Now().UTC(),
		}, nil
	})
	if err != nil {
		return domain.NarrativeResult{}, err
	}
	// a cache hit with a row not marked ready means a queued retry
	// flipped the status after the narrative was already persisted;
	// write the cached result back instead of skipping
	if !hit || row.NarrativeStatus != sessdom.NarrativeReady {
		if err := s.Repo.SetNarrative(ctx, sessionID, out.Narrative, out.Model, out.GeneratedAt); err != nil {
			return domain.NarrativeResult{}, err
		}
	}
	out.Cached = hit
	return out, nil
}

// embedSession computes (or re-reads) the session's vector and indexes it
func (s *Svc) embedSession(ctx context.Context, sessionID string) error {
	row, sc, err := s.sessionContext(ctx, sessionID)
	if err != nil {
		return err
	}

	vec, err := s.sessionVector(ctx, row, sc)
	if err != nil {
		return err
	}
	if s.vec != nil {
		if err := s.vec.Upsert(ctx, sessionID, row.OwnerID, row.PrimaryLanguage, vec); err != nil {
			return err
		}
	}
	return s.Repo.SetEmbeddedAt(ctx, sessionID, time.Now().UTC())
}

// sessionVector runs the embedding capability behind the indefinite
// cache tier; a fixed commit set always maps to the same vector
func (s *Svc) sessionVector(ctx context.Context, row *repo.RowSessionContext, sc ai.SessionContext) ([]float32, error) {
	call := cachedCall[[]float32]{kv: s.kv, ttl: 0}
	vec, _, err := call.do(ctx, embeddingKey(row.SessionID, row.ContentVersion), func(ctx context.Context) ([]float32, error) {
		return s.cap.Embed(ctx, sc)
	})
	return vec, err
}

// Similar answers the top-K nearest sessions, excluding the query
// session, optionally restricted to the same owner
func (s *Svc) Similar(ctx context.Context, sessionID string, k int, sameOwner bool) ([]sessdom.SimilarSession, error) {
	if s.vec == nil {
		return nil, perr.Unavailablef("similarity search not configured")
	}
	row, sc, err := s.sessionContext(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	vec, err := s.sessionVector(ctx, row, sc)
	if err != nil {
		return nil, err
	}

	if k <= 0 {
		k = s.cfg.TopK
	}
	var owner int64
	if sameOwner {
		owner = row.OwnerID
	}
	matches, err := s.vec.Query(ctx, vec, k, owner, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]sessdom.SimilarSession, 0, len(matches))
	for _, m := range matches {
		out = append(out, sessdom.SimilarSession{SessionID: m.SessionID, Score: m.Score})
	}
	return out, nil
}

// WeeklySummary serves the owner's trailing-week aggregate from cache,
// computing it on miss
func (s *Svc) WeeklySummary(ctx context.Context, ownerID int64) (domain.WeeklySummary, error) {
	now := time.Now().UTC()
	call := cachedCall[domain.WeeklySummary]{kv: s.kv, ttl: s.cfg.WeeklyTTL}
	out, _, err := call.do(ctx, weeklyKey(ownerID, now), func(ctx context.Context) (domain.WeeklySummary, error) {
		return s.computeWeekly(ctx, ownerID, now)
	})
	return out, err
}

func (s *Svc) computeWeekly(ctx context.Context, ownerID int64, now time.Time) (domain.WeeklySummary, error) {
	since := now.Add(-7 * 24 * time.Hour)
	rows, err := s.Repo.SessionsOfOwnerSince(ctx, ownerID, since)
	if err != nil {
		return domain.WeeklySummary{}, err
	}

	out := domain.WeeklySummary{
		OwnerID:     ownerID,
		WeekStart:   since,
		WeekEnd:     now,
		LangMinutes: map[string]int{},
		ComputedAt:  now,
	}
	dayCommits := map[string]int{}
	versions := make([]string, 0, len(rows))

	for _, r := range rows {
		out.Sessions++
		out.Commits += r.TotalCommits
		out.ActiveMinutes += r.DurationMinutes
		out.Additions += r.TotalAdditions
		out.Deletions += r.TotalDeletions
		if r.PrimaryLanguage != "" {
			out.LangMinutes[r.PrimaryLanguage] += r.DurationMinutes
		}
		day := r.StartedAt.UTC().Format("2006-01-02")
		dayCommits[day] += r.TotalCommits
		versions = append(versions, r.ContentVersion)
	}

	best := 0
	days := make([]string, 0, len(dayCommits))
	for d := range dayCommits {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		if dayCommits[d] > best {
			best = dayCommits[d]
			out.BusiestDay = d
		}
	}

	out.ContentVersion = weeklyVersion(versions)
	return out, nil
}

// weeklyVersion folds the member sessions' content versions so a changed
// week invalidates downstream consumers
func weeklyVersion(versions []string) string {
	if len(versions) == 0 {
		return "empty"
	}
	sort.Strings(versions)
	sum := sha256.Sum256([]byte(strings.Join(versions, "\n")))
	return hex.EncodeToString(sum[:])[:16]
}

// sessionContext loads the prompt view for one session
func (s *Svc) sessionContext(ctx context.Context, sessionID string) (*repo.RowSessionContext, ai.SessionContext, error) {
	row, err := s.Repo.SessionContext(ctx, sessionID)
	if err != nil {
		return nil, ai.SessionContext{}, err
	}
	if row == nil {
		return nil, ai.SessionContext{}, perr.NotFoundf("session %s not found", sessionID)
	}

	commits, err := s.Repo.SessionCommits(ctx, sessionID)
	if err != nil {
		return nil, ai.SessionContext{}, err
	}

	sc := ai.SessionContext{
		RepoFullName: row.RepoFullName,
		Author:       row.AuthorEmail,
		StartedAt:    row.StartedAt,
		EndedAt:      row.EndedAt,
		Commits:      row.TotalCommits,
		Additions:    row.TotalAdditions,
		Deletions:    row.TotalDeletions,
		Languages:    languagesByWeight(row.LangLines),
	}
	seenFiles := map[string]struct{}{}
	for _, c := range commits {
		sc.Messages = append(sc.Messages, c.Message)
		var files []struct {
			Path string `json:"path"`
		}
		if len(c.Files) > 0 && json.Unmarshal(c.Files, &files) == nil {
			for _, f := range files {
				if _, dup := seenFiles[f.Path]; dup {
					continue
				}
				seenFiles[f.Path] = struct{}{}
				sc.Files = append(sc.Files, f.Path)
			}
		}
	}
	return row, sc, nil
}

// languagesByWeight lists session languages heaviest first
func languagesByWeight(langLines []byte) []string {
	if len(langLines) == 0 {
		return nil
	}
	var weights map[string]int
	if json.Unmarshal(langLines, &weights) != nil {
		return nil
	}
	langs := make([]string, 0, len(weights))
	for l := range weights {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool {
		if weights[langs[i]] == weights[langs[j]] {
			return langs[i] < langs[j]
		}
		return weights[langs[i]] > weights[langs[j]]
	})
	return langs
}
