package service

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"devlog/internal/core/sessionize"
	"devlog/internal/modkit/repokit"
	perr "devlog/internal/platform/errors"
	"devlog/internal/platform/store"
	jobsdom "devlog/internal/services/jobs/domain"
	"devlog/internal/services/sessions/repo"
)

// nopTx satisfies TxRunner for tests; Tx just runs fn against itself
type nopTx struct{}

func (nopTx) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, nil }
func (nopTx) Query(context.Context, string, ...any) (store.Rows, error)      { return nil, nil }
func (nopTx) QueryRow(context.Context, string, ...any) store.Row             { return nil }
func (n nopTx) Tx(_ context.Context, fn func(q store.RowQuerier) error) error {
	return fn(n)
}

// memRepo is an in-memory sessions repo driving the grouping logic
type memRepo struct {
	spans     map[string]*repo.RowSpan
	commits   map[string]repo.RowCommit
	sessionOf map[string]string // sha -> session id, "" when ungrouped
	aggs      map[string]repo.RowAggregates
	deleted   []string
	locks     int
}

func newMemRepo() *memRepo {
	return &memRepo{
		spans:     map[string]*repo.RowSpan{},
		commits:   map[string]repo.RowCommit{},
		sessionOf: map[string]string{},
		aggs:      map[string]repo.RowAggregates{},
	}
}

func (m *memRepo) addCommit(sha string, at time.Time, adds, dels int, files string) {
	m.commits[sha] = repo.RowCommit{
		Sha:          sha,
		AuthorName:   "Dev",
		Message:      "work",
		CommittedAt:  at,
		Additions:    adds,
		Deletions:    dels,
		FilesChanged: strings.Count(files, "path"),
		Files:        []byte(files),
	}
	m.sessionOf[sha] = ""
}

func (m *memRepo) AcquirePairLock(context.Context, int64, string) error {
	m.locks++
	return nil
}

func (m *memRepo) RepoOwner(context.Context, int64) (int64, error) { return 1, nil }

func (m *memRepo) ListSpans(context.Context, int64, string) ([]repo.RowSpan, error) {
	var out []repo.RowSpan
	for _, s := range m.spans {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (m *memRepo) UngroupedCommits(context.Context, int64, string) ([]repo.RowCommit, error) {
	var out []repo.RowCommit
	for sha, sid := range m.sessionOf {
		if sid == "" {
			out = append(out, m.commits[sha])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CommittedAt.Equal(out[j].CommittedAt) {
			return out[i].Sha < out[j].Sha
		}
		return out[i].CommittedAt.Before(out[j].CommittedAt)
	})
	return out, nil
}

func (m *memRepo) UngroupedPairs(context.Context, int) ([]repo.Pair, error) {
	for _, sid := range m.sessionOf {
		if sid == "" {
			return []repo.Pair{{RepoID: 42, AuthorEmail: "dev@acme.io"}}, nil
		}
	}
	return nil, nil
}

func (m *memRepo) CreateSession(
	_ context.Context, id string, _, _ int64, _ string, start, end time.Time,
) error {
	m.spans[id] = &repo.RowSpan{ID: id, StartedAt: start, EndedAt: end}
	return nil
}

func (m *memRepo) AssignCommit(_ context.Context, sha, sessionID string) error {
	m.sessionOf[sha] = sessionID
	return nil
}

func (m *memRepo) ReparentCommits(_ context.Context, from, to string) (int64, error) {
	var n int64
	for sha, sid := range m.sessionOf {
		if sid == from {
			m.sessionOf[sha] = to
			n++
		}
	}
	return n, nil
}

func (m *memRepo) DeleteSession(_ context.Context, id string) error {
	delete(m.spans, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memRepo) CommitsOfSession(_ context.Context, sessionID string) ([]repo.RowCommit, error) {
	var out []repo.RowCommit
	for sha, sid := range m.sessionOf {
		if sid == sessionID {
			out = append(out, m.commits[sha])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CommittedAt.Before(out[j].CommittedAt) })
	return out, nil
}

func (m *memRepo) UpdateAggregates(_ context.Context, agg repo.RowAggregates) error {
	m.aggs[agg.SessionID] = agg
	// keep the span view in lockstep so later passes see fresh windows
	if sp, ok := m.spans[agg.SessionID]; ok {
		sp.StartedAt = agg.StartedAt
		sp.EndedAt = agg.EndedAt
	}
	return nil
}

func (m *memRepo) ListByOwner(context.Context, int64, int, int) ([]repo.RowSession, error) {
	return nil, nil
}

func (m *memRepo) GetByID(context.Context, string) (*repo.RowSession, error) { return nil, nil }

var _ repo.Repo = (*memRepo)(nil)

type fixedBinder struct{ r repo.Repo }

func (b fixedBinder) Bind(repokit.Queryer) repo.Repo { return b.r }

type fakeEnq struct{ jobs []jobsdom.EnqueueArgs }

func (f *fakeEnq) Enqueue(_ context.Context, in jobsdom.EnqueueArgs) (string, error) {
	f.jobs = append(f.jobs, in)
	return "job", nil
}

func at(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

const goFile = `[{"path":"main.go","status":"modified","language":"Go"}]`

func TestGroupPairGapRuleScenario(t *testing.T) {
	t.Parallel()

	m := newMemRepo()
	m.addCommit("aaa", at(9, 0), 10, 2, goFile)
	m.addCommit("bbb", at(9, 10), 5, 1, goFile)
	m.addCommit("ccc", at(9, 50), 3, 3, goFile)

	s := New(nopTx{}, fixedBinder{m}, nil)
	res, err := s.GroupPair(context.Background(), 42, "dev@acme.io")
	if err != nil {
		t.Fatalf("GroupPair: %v", err)
	}
	if res.SessionsCreated != 2 || res.CommitsGrouped != 3 || res.SessionsMerged != 0 {
		t.Fatalf("result: %+v", res)
	}
	if len(m.spans) != 2 {
		t.Fatalf("want 2 sessions, got %d", len(m.spans))
	}
	if m.sessionOf["aaa"] != m.sessionOf["bbb"] {
		t.Fatal("09:00 and 09:10 must share a session")
	}
	if m.sessionOf["ccc"] == m.sessionOf["aaa"] {
		t.Fatal("09:50 must start a new session")
	}

	first := m.aggs[m.sessionOf["aaa"]]
	if !first.StartedAt.Equal(at(9, 0)) || !first.EndedAt.Equal(at(9, 10)) {
		t.Fatalf("first session window: %+v", first)
	}
	if first.TotalCommits != 2 || first.TotalAdditions != 15 || first.TotalDeletions != 3 {
		t.Fatalf("first session aggregates: %+v", first)
	}
	if first.DurationMinutes != 10 {
		t.Fatalf("duration: %d", first.DurationMinutes)
	}

	second := m.aggs[m.sessionOf["ccc"]]
	if second.TotalCommits != 1 || !second.StartedAt.Equal(at(9, 50)) {
		t.Fatalf("second session aggregates: %+v", second)
	}
}

func TestLateCommitMergesSessionsInOnePass(t *testing.T) {
	t.Parallel()

	m := newMemRepo()
	m.addCommit("aaa", at(9, 0), 1, 0, goFile)
	m.addCommit("bbb", at(9, 10), 1, 0, goFile)
	m.addCommit("ccc", at(9, 50), 1, 0, goFile)

	s := New(nopTx{}, fixedBinder{m}, nil)
	if _, err := s.GroupPair(context.Background(), 42, "dev@acme.io"); err != nil {
		t.Fatalf("initial grouping: %v", err)
	}

	// the late arrival bridges the 09:10 end and the 09:50 start
	m.addCommit("ddd", at(9, 25), 1, 0, goFile)
	res, err := s.GroupPair(context.Background(), 42, "dev@acme.io")
	if err != nil {
		t.Fatalf("late grouping: %v", err)
	}
	if res.SessionsMerged != 1 || res.SessionsCreated != 0 {
		t.Fatalf("merge result: %+v", res)
	}
	if len(m.spans) != 1 {
		t.Fatalf("sessions must merge into one, got %d", len(m.spans))
	}
	if len(m.deleted) != 1 {
		t.Fatalf("absorbed session row must be deleted: %v", m.deleted)
	}

	var only string
	for id := range m.spans {
		only = id
	}
	agg := m.aggs[only]
	if agg.TotalCommits != 4 {
		t.Fatalf("merged commit count: %d", agg.TotalCommits)
	}
	if !agg.StartedAt.Equal(at(9, 0)) || !agg.EndedAt.Equal(at(9, 50)) {
		t.Fatalf("merged window: %+v", agg)
	}
	for sha := range m.sessionOf {
		if m.sessionOf[sha] != only {
			t.Fatalf("commit %s not reparented", sha)
		}
	}
}

func TestBackwardExtensionWithinTolerance(t *testing.T) {
	t.Parallel()

	m := newMemRepo()
	m.addCommit("aaa", at(10, 0), 1, 0, goFile)
	m.addCommit("bbb", at(10, 5), 1, 0, goFile)

	s := New(nopTx{}, fixedBinder{m}, nil)
	if _, err := s.GroupPair(context.Background(), 42, "dev@acme.io"); err != nil {
		t.Fatalf("initial grouping: %v", err)
	}

	// 09:40 is before the session start but within the gap tolerance
	m.addCommit("ccc", at(9, 40), 1, 0, goFile)
	res, err := s.GroupPair(context.Background(), 42, "dev@acme.io")
	if err != nil {
		t.Fatalf("backfill grouping: %v", err)
	}
	if res.SessionsCreated != 0 {
		t.Fatalf("must extend backward, not create: %+v", res)
	}
	if len(m.spans) != 1 {
		t.Fatalf("want 1 session, got %d", len(m.spans))
	}
	agg := m.aggs[m.sessionOf["ccc"]]
	if !agg.StartedAt.Equal(at(9, 40)) || !agg.EndedAt.Equal(at(10, 5)) {
		t.Fatalf("extended window: %+v", agg)
	}
}

func TestGroupPairReplayIsNoOp(t *testing.T) {
	t.Parallel()

	m := newMemRepo()
	m.addCommit("aaa", at(9, 0), 1, 0, goFile)

	enq := &fakeEnq{}
	s := New(nopTx{}, fixedBinder{m}, enq)
	if _, err := s.GroupPair(context.Background(), 42, "dev@acme.io"); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	firstJobs := len(enq.jobs)

	res, err := s.GroupPair(context.Background(), 42, "dev@acme.io")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.CommitsGrouped != 0 || res.SessionsCreated != 0 {
		t.Fatalf("replay must group nothing: %+v", res)
	}
	if len(enq.jobs) != firstJobs {
		t.Fatal("replay must not enqueue more enrichment")
	}
}

func TestEnrichmentKeysCarryContentVersion(t *testing.T) {
	t.Parallel()

	m := newMemRepo()
	m.addCommit("aaa", at(9, 0), 1, 0, goFile)

	enq := &fakeEnq{}
	s := New(nopTx{}, fixedBinder{m}, enq)
	if _, err := s.GroupPair(context.Background(), 42, "dev@acme.io"); err != nil {
		t.Fatalf("GroupPair: %v", err)
	}

	if len(enq.jobs) != 2 {
		t.Fatalf("want embedding + narrative jobs, got %d", len(enq.jobs))
	}
	sid := m.sessionOf["aaa"]
	cv := m.aggs[sid].ContentVersion
	if cv == "" {
		t.Fatal("content version not computed")
	}
	kinds := map[jobsdom.Kind]bool{}
	for _, j := range enq.jobs {
		kinds[j.Kind] = true
		want := string(j.Kind) + ":" + sid + ":" + cv
		if j.DedupeKey != want {
			t.Fatalf("dedupe key %q, want %q", j.DedupeKey, want)
		}
		if j.Priority != jobsdom.PriorityIngest {
			t.Fatalf("ingest-triggered jobs must be high priority: %+v", j)
		}
	}
	if !kinds[jobsdom.KindEmbedding] || !kinds[jobsdom.KindNarrative] {
		t.Fatalf("kinds: %v", kinds)
	}
}

func TestContentVersionStableUnderOrder(t *testing.T) {
	t.Parallel()

	a := contentVersion([]string{"x", "y", "z"})
	b := contentVersion([]string{"z", "x", "y"})
	if a != b {
		t.Fatal("content version must not depend on commit order")
	}
	if a == contentVersion([]string{"x", "y"}) {
		t.Fatal("content version must change with the commit set")
	}
}

func TestCheckDisjointRejectsOverlap(t *testing.T) {
	t.Parallel()

	// second span starts only 15 minutes after the first ends
	err := checkDisjoint([]sessionize.Span{
		{ID: "a", Start: at(9, 0), End: at(9, 30)},
		{ID: "b", Start: at(9, 45), End: at(10, 0)},
	}, 42, "dev@acme.io")
	if err == nil {
		t.Fatal("overlapping spans must be rejected")
	}
	if perr.CodeOf(err) != perr.ErrorCodeConsistency {
		t.Fatalf("want consistency violation, got %v", perr.CodeOf(err))
	}
}
