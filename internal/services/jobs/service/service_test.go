package service

import (
	"context"
	"testing"
	"time"

	"devlog/internal/modkit"
	perr "devlog/internal/platform/errors"

	dom "devlog/internal/services/jobs/domain"
	jrepo "devlog/internal/services/jobs/repo"
)

// fakeRepo records queue transitions in memory
type fakeRepo struct {
	enqueued  []dom.Job
	completed []string
	requeued  []string
	failed    []string
	lastErr   string
}

func (f *fakeRepo) Enqueue(_ context.Context, j dom.Job) (string, error) {
	f.enqueued = append(f.enqueued, j)
	return j.ID, nil
}
func (f *fakeRepo) Lease(context.Context, int, time.Duration) ([]dom.Job, error) { return nil, nil }
func (f *fakeRepo) Complete(_ context.Context, id string) error {
	f.completed = append(f.completed, id)
	return nil
}
func (f *fakeRepo) Requeue(_ context.Context, id string, lastErr string, _ time.Time) error {
	f.requeued = append(f.requeued, id)
	f.lastErr = lastErr
	return nil
}
func (f *fakeRepo) MarkFailed(_ context.Context, id string, lastErr string) error {
	f.failed = append(f.failed, id)
	f.lastErr = lastErr
	return nil
}
func (f *fakeRepo) ReclaimExpired(context.Context) (int64, error) { return 0, nil }

var _ jrepo.Repo = (*fakeRepo)(nil)

func newTestSvc(f *fakeRepo) *Svc {
	s := New(modkit.Deps{}, Config{MaxAttempts: 3})
	s.repo = f
	return s
}

func TestHandleJobRetriesThenTerminal(t *testing.T) {
	t.Parallel()

	f := &fakeRepo{}
	s := newTestSvc(f)

	calls := 0
	s.Register(dom.KindNarrative, func(context.Context, dom.Job) error {
		calls++
		return perr.Unavailablef("capability timeout")
	})
	terminalFired := 0
	s.RegisterTerminal(dom.KindNarrative, func(context.Context, dom.Job, error) {
		terminalFired++
	})

	ctx := context.Background()

	// each lease increments the delivery counter before the worker
	// sees the snapshot, so the first delivery arrives with Attempts=1
	for attempts := 1; attempts <= 3; attempts++ {
		j := dom.Job{ID: "j1", Kind: dom.KindNarrative, Attempts: attempts, MaxAttempts: 3}
		_ = s.handleJob(ctx, j)
	}

	if calls != 3 {
		t.Fatalf("handler must run exactly 3 times, ran %d", calls)
	}
	if len(f.requeued) != 2 {
		t.Fatalf("want 2 requeues before terminal, got %d", len(f.requeued))
	}
	if len(f.failed) != 1 {
		t.Fatalf("want 1 terminal failure, got %d", len(f.failed))
	}
	if terminalFired != 1 {
		t.Fatalf("terminal hook must fire once, fired %d", terminalFired)
	}

	// a fourth delivery must not happen from the queue's point of view:
	// the job is in state failed. Simulate a defensive re-lease anyway
	// and confirm it goes terminal immediately without another requeue
	before := calls
	_ = s.handleJob(ctx, dom.Job{ID: "j1", Kind: dom.KindNarrative, Attempts: 4, MaxAttempts: 3})
	if calls != before+1 || len(f.requeued) != 2 {
		t.Fatalf("exhausted job must never requeue again")
	}
}

func TestHandleJobNonRetryableIsImmediatelyTerminal(t *testing.T) {
	t.Parallel()

	f := &fakeRepo{}
	s := newTestSvc(f)
	s.Register(dom.KindEmbedding, func(context.Context, dom.Job) error {
		return perr.InvalidArgf("bad payload")
	})

	_ = s.handleJob(context.Background(), dom.Job{ID: "j2", Kind: dom.KindEmbedding, Attempts: 1, MaxAttempts: 3})

	if len(f.requeued) != 0 || len(f.failed) != 1 {
		t.Fatalf("non-retryable failure must not requeue: requeued=%d failed=%d", len(f.requeued), len(f.failed))
	}
}

func TestHandleJobSuccessCompletes(t *testing.T) {
	t.Parallel()

	f := &fakeRepo{}
	s := newTestSvc(f)
	s.Register(dom.KindInsights, func(context.Context, dom.Job) error { return nil })

	if err := s.handleJob(context.Background(), dom.Job{ID: "j3", Kind: dom.KindInsights, Attempts: 1, MaxAttempts: 3}); err != nil {
		t.Fatalf("handleJob: %v", err)
	}
	if len(f.completed) != 1 || f.completed[0] != "j3" {
		t.Fatalf("job not completed: %+v", f.completed)
	}
}

func TestHandleJobUnknownKindFails(t *testing.T) {
	t.Parallel()

	f := &fakeRepo{}
	s := newTestSvc(f)

	if err := s.handleJob(context.Background(), dom.Job{ID: "j4", Kind: "mystery"}); err == nil {
		t.Fatal("unknown kind must error")
	}
	if len(f.failed) != 1 {
		t.Fatalf("unknown kind must be recorded as failed, got %+v", f.failed)
	}
}

func TestNextAfterBackoff(t *testing.T) {
	t.Parallel()

	base := 500 * time.Millisecond
	if d := nextAfter(1, base); d != 500*time.Millisecond {
		t.Fatalf("attempt 1: %v", d)
	}
	if d := nextAfter(2, base); d != 1*time.Second {
		t.Fatalf("attempt 2: %v", d)
	}
	if d := nextAfter(3, base); d != 2*time.Second {
		t.Fatalf("attempt 3: %v", d)
	}
	// growth is capped
	if d := nextAfter(20, base); d != 30*time.Second {
		t.Fatalf("cap: %v", d)
	}
	if d := nextAfter(0, base); d != 500*time.Millisecond {
		t.Fatalf("floor: %v", d)
	}
}

func TestEnqueueValidation(t *testing.T) {
	t.Parallel()

	f := &fakeRepo{}
	s := newTestSvc(f)
	ctx := context.Background()

	if _, err := s.Enqueue(ctx, dom.EnqueueArgs{Kind: dom.KindNarrative}); err == nil {
		t.Fatal("missing dedupe key must be rejected")
	}

	id, err := s.Enqueue(ctx, dom.EnqueueArgs{
		Kind:      dom.KindNarrative,
		DedupeKey: "narrative:s1:v1",
		Priority:  dom.PriorityIngest,
		Payload:   map[string]string{"session_id": "s1"},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	_ = id
	if len(f.enqueued) != 1 {
		t.Fatalf("want 1 enqueued job, got %d", len(f.enqueued))
	}
	j := f.enqueued[0]
	if j.MaxAttempts != 3 || j.Priority != dom.PriorityIngest || j.RunAt.IsZero() {
		t.Fatalf("enqueue defaults wrong: %+v", j)
	}
}

func TestSchedulerInstants(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC) // a Saturday
	d := nextDaily(now, 2)
	if !d.Equal(time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)) {
		t.Fatalf("nextDaily before the hour: %v", d)
	}
	d = nextDaily(now.Add(2*time.Hour), 2)
	if !d.Equal(time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC)) {
		t.Fatalf("nextDaily at the hour must roll to tomorrow: %v", d)
	}

	w := nextWeekly(now, time.Monday, 3)
	if !w.Equal(time.Date(2026, 3, 16, 3, 0, 0, 0, time.UTC)) {
		t.Fatalf("nextWeekly: %v", w)
	}
	if w.Weekday() != time.Monday {
		t.Fatalf("nextWeekly landed on %v", w.Weekday())
	}
}
