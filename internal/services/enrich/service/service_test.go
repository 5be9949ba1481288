package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"devlog/internal/adapters/ai"
	"devlog/internal/adapters/vector"
	"devlog/internal/modkit/repokit"
	"devlog/internal/platform/store"
	"devlog/internal/services/enrich/repo"
	jobsdom "devlog/internal/services/jobs/domain"
	sessdom "devlog/internal/services/sessions/domain"
)

// nopTx satisfies TxRunner for tests; Tx just runs fn against itself
type nopTx struct{}

func (nopTx) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, nil }
func (nopTx) Query(context.Context, string, ...any) (store.Rows, error)      { return nil, nil }
func (nopTx) QueryRow(context.Context, string, ...any) store.Row             { return nil }
func (n nopTx) Tx(_ context.Context, fn func(q store.RowQuerier) error) error {
	return fn(n)
}

type memRepo struct {
	sessions map[string]*repo.RowSessionContext
	commits  map[string][]repo.RowSessionCommit
	week     map[int64][]repo.RowWeekSession

	narratives map[string]string
	statuses   map[string]string
	embedded   map[string]time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		sessions:   map[string]*repo.RowSessionContext{},
		commits:    map[string][]repo.RowSessionCommit{},
		week:       map[int64][]repo.RowWeekSession{},
		narratives: map[string]string{},
		statuses:   map[string]string{},
		embedded:   map[string]time.Time{},
	}
}

func (m *memRepo) SessionContext(_ context.Context, id string) (*repo.RowSessionContext, error) {
	return m.sessions[id], nil
}

func (m *memRepo) SessionCommits(_ context.Context, id string) ([]repo.RowSessionCommit, error) {
	return m.commits[id], nil
}

func (m *memRepo) SetNarrative(_ context.Context, id, narrative, _ string, _ time.Time) error {
	m.narratives[id] = narrative
	m.statuses[id] = sessdom.NarrativeReady
	if s := m.sessions[id]; s != nil {
		s.NarrativeStatus = sessdom.NarrativeReady
	}
	return nil
}

func (m *memRepo) SetNarrativeStatus(_ context.Context, id, status string) error {
	m.statuses[id] = status
	if s := m.sessions[id]; s != nil {
		s.NarrativeStatus = status
	}
	return nil
}

func (m *memRepo) SetEmbeddedAt(_ context.Context, id string, at time.Time) error {
	m.embedded[id] = at
	return nil
}

func (m *memRepo) OwnersWithSessionsSince(_ context.Context, _ time.Time) ([]int64, error) {
	var out []int64
	for id := range m.week {
		out = append(out, id)
	}
	return out, nil
}

func (m *memRepo) SessionsOfOwnerSince(_ context.Context, ownerID int64, _ time.Time) ([]repo.RowWeekSession, error) {
	return m.week[ownerID], nil
}

type fixedBinder struct{ r repo.Repo }

func (b fixedBinder) Bind(repokit.Queryer) repo.Repo { return b.r }

type fakeCap struct {
	narrativeCalls int
	embedCalls     int
	narrativeErr   error
	embedErr       error
}

func (c *fakeCap) Narrative(_ context.Context, _ ai.SessionContext) (string, string, error) {
	c.narrativeCalls++
	if c.narrativeErr != nil {
		return "", "", c.narrativeErr
	}
	return "shipped the parser rewrite", "test-model", nil
}

func (c *fakeCap) Embed(_ context.Context, _ ai.SessionContext) ([]float32, error) {
	c.embedCalls++
	if c.embedErr != nil {
		return nil, c.embedErr
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeVec struct {
	upserts map[string][]float32
	owners  map[string]int64
	matches []vector.Match

	lastTopK    int
	lastOwner   int64
	lastExclude string
}

func newFakeVec() *fakeVec {
	return &fakeVec{upserts: map[string][]float32{}, owners: map[string]int64{}}
}

func (v *fakeVec) Upsert(_ context.Context, sessionID string, ownerID int64, _ string, vec []float32) error {
	v.upserts[sessionID] = vec
	v.owners[sessionID] = ownerID
	return nil
}

func (v *fakeVec) Query(_ context.Context, _ []float32, topK int, ownerID int64, excludeID string) ([]vector.Match, error) {
	v.lastTopK = topK
	v.lastOwner = ownerID
	v.lastExclude = excludeID
	return v.matches, nil
}

// memKV is a map-backed store.KV; TTLs are recorded, not enforced
type memKV struct {
	vals map[string][]byte
	ttls map[string]time.Duration
}

func newMemKV() *memKV {
	return &memKV{vals: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (k *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := k.vals[key]
	return v, ok, nil
}

func (k *memKV) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	k.vals[key] = val
	k.ttls[key] = ttl
	return nil
}

func (k *memKV) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(k.vals, key)
		delete(k.ttls, key)
	}
	return nil
}

func (k *memKV) Close() error { return nil }

func seedSession(r *memRepo, id string, ownerID int64) {
	r.sessions[id] = &repo.RowSessionContext{
		SessionID:       id,
		RepoFullName:    "acme/widgets",
		OwnerID:         ownerID,
		AuthorEmail:     "dev@example.com",
		StartedAt:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndedAt:         time.Date(2026, 3, 2, 9, 50, 0, 0, time.UTC),
		TotalCommits:    3,
		TotalAdditions:  120,
		TotalDeletions:  40,
		LangLines:       []byte(`{"Go": 90, "Markdown": 10}`),
		PrimaryLanguage: "Go",
		ContentVersion:  "cafebabe00112233",
		NarrativeStatus: sessdom.NarrativeNone,
	}
	r.commits[id] = []repo.RowSessionCommit{
		{Sha: "a1", Message: "add parser", Files: []byte(`[{"path":"parser.go","status":"added","language":"Go"}]`)},
		{Sha: "b2", Message: "fix tokenizer", Files: []byte(`[{"path":"parser.go","status":"modified","language":"Go"}]`)},
	}
}

func newSvc(r *memRepo, c *fakeCap, v *fakeVec, kv store.KV) *Svc {
	var idx VectorIndex
	if v != nil {
		idx = v
	}
	return New(nopTx{}, fixedBinder{r: r}, c, idx, kv, Config{})
}

func TestNarrativeComputesOnceAndPersists(t *testing.T) {
	r := newMemRepo()
	seedSession(r, "s1", 7)
	capab := &fakeCap{}
	kv := newMemKV()
	s := newSvc(r, capab, nil, kv)

	first, err := s.Narrative(context.Background(), "s1")
	if err != nil {
		t.Fatalf("narrative: %v", err)
	}
	if first.Cached {
		t.Fatal("first call reported a cache hit")
	}
	if first.Narrative == "" || first.Model != "test-model" {
		t.Fatalf("unexpected result: %+v", first)
	}
	if r.narratives["s1"] != first.Narrative {
		t.Fatal("fresh narrative was not persisted")
	}
	if r.statuses["s1"] != sessdom.NarrativeReady {
		t.Fatalf("status = %q, want ready", r.statuses["s1"])
	}

	second, err := s.Narrative(context.Background(), "s1")
	if err != nil {
		t.Fatalf("narrative (cached): %v", err)
	}
	if !second.Cached {
		t.Fatal("second call missed the cache")
	}
	if capab.narrativeCalls != 1 {
		t.Fatalf("capability called %d times, want 1", capab.narrativeCalls)
	}
	if ttl := kv.ttls[narrativeKey("s1", "cafebabe00112233")]; ttl != 30*24*time.Hour {
		t.Fatalf("narrative ttl = %v", ttl)
	}
}

func TestNarrativeCacheKeyTracksContentVersion(t *testing.T) {
	r := newMemRepo()
	seedSession(r, "s1", 7)
	capab := &fakeCap{}
	s := newSvc(r, capab, nil, newMemKV())

	if _, err := s.Narrative(context.Background(), "s1"); err != nil {
		t.Fatalf("narrative: %v", err)
	}

	// a regrouped session gets a new content version; the stale cache
	// entry no longer matches and the capability runs again
	r.sessions["s1"].ContentVersion = "deadbeef44556677"
	out, err := s.Narrative(context.Background(), "s1")
	if err != nil {
		t.Fatalf("narrative after regroup: %v", err)
	}
	if out.Cached {
		t.Fatal("stale entry served after content change")
	}
	if capab.narrativeCalls != 2 {
		t.Fatalf("capability called %d times, want 2", capab.narrativeCalls)
	}
}

func TestNarrativeWithoutCacheStillWorks(t *testing.T) {
	r := newMemRepo()
	seedSession(r, "s1", 7)
	capab := &fakeCap{}
	s := newSvc(r, capab, nil, nil)

	for i := 0; i < 2; i++ {
		out, err := s.Narrative(context.Background(), "s1")
		if err != nil {
			t.Fatalf("narrative: %v", err)
		}
		if out.Cached {
			t.Fatal("cache hit reported with no cache wired")
		}
	}
	if capab.narrativeCalls != 2 {
		t.Fatalf("capability called %d times, want 2", capab.narrativeCalls)
	}
}

func TestNarrativeUnknownSession(t *testing.T) {
	s := newSvc(newMemRepo(), &fakeCap{}, nil, nil)
	if _, err := s.Narrative(context.Background(), "missing"); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestEmbeddingIndexedWithOwnerAndCachedIndefinitely(t *testing.T) {
	r := newMemRepo()
	seedSession(r, "s1", 7)
	capab := &fakeCap{}
	v := newFakeVec()
	kv := newMemKV()
	s := newSvc(r, capab, v, kv)

	if err := s.embedSession(context.Background(), "s1"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if v.owners["s1"] != 7 {
		t.Fatalf("owner = %d, want 7", v.owners["s1"])
	}
	if _, ok := r.embedded["s1"]; !ok {
		t.Fatal("embedded_at not recorded")
	}
	if ttl := kv.ttls[embeddingKey("s1", "cafebabe00112233")]; ttl != 0 {
		t.Fatalf("embedding ttl = %v, want no expiry", ttl)
	}

	if err := s.embedSession(context.Background(), "s1"); err != nil {
		t.Fatalf("re-embed: %v", err)
	}
	if capab.embedCalls != 1 {
		t.Fatalf("embed capability called %d times, want 1", capab.embedCalls)
	}
}

func TestSimilarExcludesSelfAndScopesOwner(t *testing.T) {
	r := newMemRepo()
	seedSession(r, "s1", 7)
	v := newFakeVec()
	v.matches = []vector.Match{
		{SessionID: "s2", Score: 0.91},
		{SessionID: "s3", Score: 0.74},
	}
	s := newSvc(r, &fakeCap{}, v, newMemKV())

	got, err := s.Similar(context.Background(), "s1", 0, true)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if v.lastExclude != "s1" {
		t.Fatalf("exclude = %q, want s1", v.lastExclude)
	}
	if v.lastOwner != 7 {
		t.Fatalf("owner filter = %d, want 7", v.lastOwner)
	}
	if v.lastTopK != 5 {
		t.Fatalf("topK defaulted to %d, want 5", v.lastTopK)
	}
	if len(got) != 2 || got[0].SessionID != "s2" || got[0].Score != 0.91 {
		t.Fatalf("unexpected matches: %+v", got)
	}

	if _, err := s.Similar(context.Background(), "s1", 3, false); err != nil {
		t.Fatalf("similar (all owners): %v", err)
	}
	if v.lastOwner != 0 {
		t.Fatalf("owner filter = %d, want 0 for cross-owner search", v.lastOwner)
	}
	if v.lastTopK != 3 {
		t.Fatalf("topK = %d, want 3", v.lastTopK)
	}
}

func TestSimilarWithoutIndexUnavailable(t *testing.T) {
	r := newMemRepo()
	seedSession(r, "s1", 7)
	s := newSvc(r, &fakeCap{}, nil, nil)
	if _, err := s.Similar(context.Background(), "s1", 5, false); err == nil {
		t.Fatal("expected unavailable error without an index")
	}
}

func TestWeeklySummaryAggregates(t *testing.T) {
	r := newMemRepo()
	day := func(d int, h int) time.Time {
		return time.Date(2026, 3, d, h, 0, 0, 0, time.UTC)
	}
	r.week[7] = []repo.RowWeekSession{
		{StartedAt: day(2, 9), DurationMinutes: 50, TotalCommits: 4, TotalAdditions: 100, TotalDeletions: 20, PrimaryLanguage: "Go", ContentVersion: "v1"},
		{StartedAt: day(2, 14), DurationMinutes: 30, TotalCommits: 2, TotalAdditions: 40, TotalDeletions: 10, PrimaryLanguage: "Go", ContentVersion: "v2"},
		{StartedAt: day(3, 10), DurationMinutes: 90, TotalCommits: 3, TotalAdditions: 60, TotalDeletions: 5, PrimaryLanguage: "TypeScript", ContentVersion: "v3"},
	}
	s := newSvc(r, &fakeCap{}, nil, nil)

	got, err := s.WeeklySummary(context.Background(), 7)
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}
	if got.Sessions != 3 || got.Commits != 9 || got.ActiveMinutes != 170 {
		t.Fatalf("totals wrong: %+v", got)
	}
	if got.Additions != 200 || got.Deletions != 35 {
		t.Fatalf("line totals wrong: %+v", got)
	}
	if got.LangMinutes["Go"] != 80 || got.LangMinutes["TypeScript"] != 90 {
		t.Fatalf("language minutes wrong: %v", got.LangMinutes)
	}
	if got.BusiestDay != "2026-03-02" {
		t.Fatalf("busiest day = %q", got.BusiestDay)
	}
	if got.ContentVersion == "" || got.ContentVersion == "empty" {
		t.Fatalf("content version not derived: %q", got.ContentVersion)
	}
}

func TestWeeklySummaryServedFromCache(t *testing.T) {
	r := newMemRepo()
	r.week[7] = []repo.RowWeekSession{
		{StartedAt: time.Now().UTC(), DurationMinutes: 10, TotalCommits: 1, ContentVersion: "v1"},
	}
	kv := newMemKV()
	s := newSvc(r, &fakeCap{}, nil, kv)

	first, err := s.WeeklySummary(context.Background(), 7)
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}

	// new data arrives; the cached week keeps serving until the TTL rolls
	r.week[7] = append(r.week[7], repo.RowWeekSession{
		StartedAt: time.Now().UTC(), DurationMinutes: 20, TotalCommits: 5, ContentVersion: "v2",
	})
	second, err := s.WeeklySummary(context.Background(), 7)
	if err != nil {
		t.Fatalf("weekly (cached): %v", err)
	}
	if second.Commits != first.Commits {
		t.Fatalf("cached summary recomputed: %+v vs %+v", first, second)
	}
}

func TestHandleNarrativeSkipsStaleContentVersion(t *testing.T) {
	r := newMemRepo()
	seedSession(r, "s1", 7)
	capab := &fakeCap{}
	s := newSvc(r, capab, nil, nil)

	payload, _ := json.Marshal(jobPayload{SessionID: "s1", ContentVersion: "superseded"})
	if err := s.HandleNarrative(context.Background(), jobsdom.Job{Payload: payload}); err != nil {
		t.Fatalf("stale job should complete cleanly: %v", err)
	}
	if capab.narrativeCalls != 0 {
		t.Fatal("capability invoked for a superseded job")
	}
}

func TestHandleNarrativeKeepsReadyStatusAfterOnDemand(t *testing.T) {
	r := newMemRepo()
	seedSession(r, "s1", 7)
	capab := &fakeCap{}
	kv := newMemKV()
	s := newSvc(r, capab, nil, kv)

	// the on-demand endpoint wins the race with the queued job
	if _, err := s.Narrative(context.Background(), "s1"); err != nil {
		t.Fatalf("narrative: %v", err)
	}
	if r.statuses["s1"] != sessdom.NarrativeReady {
		t.Fatalf("status = %q, want ready", r.statuses["s1"])
	}

	payload, _ := json.Marshal(jobPayload{SessionID: "s1", ContentVersion: "cafebabe00112233"})
	if err := s.HandleNarrative(context.Background(), jobsdom.Job{Payload: payload}); err != nil {
		t.Fatalf("queued job: %v", err)
	}
	if r.statuses["s1"] != sessdom.NarrativeReady {
		t.Fatalf("status = %q after queued job, want ready", r.statuses["s1"])
	}
	if r.narratives["s1"] == "" {
		t.Fatal("narrative lost after queued job")
	}
	if capab.narrativeCalls != 1 {
		t.Fatalf("capability called %d times, want 1", capab.narrativeCalls)
	}
}

func TestNarrativeCacheHitRestoresPendingRow(t *testing.T) {
	r := newMemRepo()
	seedSession(r, "s1", 7)
	kv := newMemKV()
	s := newSvc(r, &fakeCap{}, nil, kv)

	if _, err := s.Narrative(context.Background(), "s1"); err != nil {
		t.Fatalf("narrative: %v", err)
	}
	// a queued retry flips the row back to pending between cache fill
	// and its own generate call
	if err := r.SetNarrativeStatus(context.Background(), "s1", sessdom.NarrativePending); err != nil {
		t.Fatalf("set status: %v", err)
	}

	out, err := s.Narrative(context.Background(), "s1")
	if err != nil {
		t.Fatalf("narrative (cached): %v", err)
	}
	if !out.Cached {
		t.Fatal("expected a cache hit")
	}
	if r.statuses["s1"] != sessdom.NarrativeReady {
		t.Fatalf("status = %q, want ready restored from cache", r.statuses["s1"])
	}
}

func TestHandleNarrativeCompletesForVanishedSession(t *testing.T) {
	s := newSvc(newMemRepo(), &fakeCap{}, nil, nil)
	payload, _ := json.Marshal(jobPayload{SessionID: "gone", ContentVersion: "x"})
	if err := s.HandleNarrative(context.Background(), jobsdom.Job{Payload: payload}); err != nil {
		t.Fatalf("vanished session should complete the job: %v", err)
	}
}

func TestHandleNarrativePropagatesCapabilityError(t *testing.T) {
	r := newMemRepo()
	seedSession(r, "s1", 7)
	capErr := errors.New("upstream timeout")
	s := newSvc(r, &fakeCap{narrativeErr: capErr}, nil, nil)

	payload, _ := json.Marshal(jobPayload{SessionID: "s1", ContentVersion: "cafebabe00112233"})
	err := s.HandleNarrative(context.Background(), jobsdom.Job{Payload: payload})
	if !errors.Is(err, capErr) {
		t.Fatalf("err = %v, want capability error for the retry loop", err)
	}
	if r.statuses["s1"] != sessdom.NarrativePending {
		t.Fatalf("status = %q, want pending while retries remain", r.statuses["s1"])
	}
}

func TestNarrativeTerminalMarksUnavailable(t *testing.T) {
	r := newMemRepo()
	seedSession(r, "s1", 7)
	s := newSvc(r, &fakeCap{}, nil, nil)

	payload, _ := json.Marshal(jobPayload{SessionID: "s1"})
	s.NarrativeTerminal(context.Background(), jobsdom.Job{Payload: payload}, errors.New("upstream down"))
	if r.statuses["s1"] != sessdom.NarrativeUnavailable {
		t.Fatalf("status = %q, want unavailable", r.statuses["s1"])
	}
}

func TestHandleEmbeddingRunsStage(t *testing.T) {
	r := newMemRepo()
	seedSession(r, "s1", 7)
	v := newFakeVec()
	s := newSvc(r, &fakeCap{}, v, nil)

	payload, _ := json.Marshal(jobPayload{SessionID: "s1", ContentVersion: "cafebabe00112233"})
	if err := s.HandleEmbedding(context.Background(), jobsdom.Job{Payload: payload}); err != nil {
		t.Fatalf("embedding job: %v", err)
	}
	if _, ok := v.upserts["s1"]; !ok {
		t.Fatal("vector not indexed")
	}
}

func TestSessionContextPrompt(t *testing.T) {
	r := newMemRepo()
	seedSession(r, "s1", 7)
	s := newSvc(r, &fakeCap{}, nil, nil)

	_, sc, err := s.sessionContext(context.Background(), "s1")
	if err != nil {
		t.Fatalf("sessionContext: %v", err)
	}
	if len(sc.Languages) == 0 || sc.Languages[0] != "Go" {
		t.Fatalf("languages = %v, want Go first", sc.Languages)
	}
	if len(sc.Messages) != 2 {
		t.Fatalf("messages = %v", sc.Messages)
	}
	// the same path touched twice appears once
	if len(sc.Files) != 1 || sc.Files[0] != "parser.go" {
		t.Fatalf("files = %v", sc.Files)
	}
}
