package sessionize

import (
	"testing"
	"time"
)

func at(hh, mm int) time.Time {
	return time.Date(2026, 3, 14, hh, mm, 0, 0, time.UTC)
}

// feed runs Place+Apply for each timestamp in order and returns the spans
func feed(t *testing.T, spans []Span, times []time.Time) []Span {
	t.Helper()
	n := 0
	for _, ts := range times {
		d := Place(spans, ts)
		n++
		spans = Apply(spans, d, ts, newID(n))
	}
	return spans
}

func newID(n int) string { return string(rune('a' + n - 1)) }

func TestGapRuleSplitsSessions(t *testing.T) {
	t.Parallel()

	// 09:00, 09:10, 09:50 -> two sessions [09:00-09:10] and [09:50-09:50]
	spans := feed(t, nil, []time.Time{at(9, 0), at(9, 10), at(9, 50)})

	if len(spans) != 2 {
		t.Fatalf("want 2 sessions, got %d: %+v", len(spans), spans)
	}
	if !spans[0].Start.Equal(at(9, 0)) || !spans[0].End.Equal(at(9, 10)) {
		t.Fatalf("first session span wrong: %+v", spans[0])
	}
	if !spans[1].Start.Equal(at(9, 50)) || !spans[1].End.Equal(at(9, 50)) {
		t.Fatalf("second session span wrong: %+v", spans[1])
	}
}

func TestExactThirtyMinuteGapStaysTogether(t *testing.T) {
	t.Parallel()

	// "within 30 minutes of each other" is inclusive; only a strictly
	// greater gap splits
	spans := feed(t, nil, []time.Time{at(9, 0), at(9, 30)})
	if len(spans) != 1 {
		t.Fatalf("30m gap must not split, got %d sessions", len(spans))
	}

	spans = feed(t, nil, []time.Time{at(9, 0), at(9, 31)})
	if len(spans) != 2 {
		t.Fatalf("31m gap must split, got %d sessions", len(spans))
	}
}

func TestLateCommitBridgesTwoSessions(t *testing.T) {
	t.Parallel()

	// the two-session layout from the gap scenario
	spans := feed(t, nil, []time.Time{at(9, 0), at(9, 10), at(9, 50)})

	// a late 09:25 commit is within tolerance of both sessions
	d := Place(spans, at(9, 25))
	if d.Kind != Bridge {
		t.Fatalf("want Bridge, got %+v", d)
	}
	if d.Target != spans[0].ID || d.Absorb != spans[1].ID {
		t.Fatalf("bridge must keep the earlier session: %+v", d)
	}

	spans = Apply(spans, d, at(9, 25), "")
	if len(spans) != 1 {
		t.Fatalf("want 1 merged session, got %d", len(spans))
	}
	if !spans[0].Start.Equal(at(9, 0)) || !spans[0].End.Equal(at(9, 50)) {
		t.Fatalf("merged span wrong: %+v", spans[0])
	}
}

func TestBackwardExtension(t *testing.T) {
	t.Parallel()

	spans := feed(t, nil, []time.Time{at(10, 0), at(10, 5)})

	// a commit before the session start but within tolerance of it
	// extends the session backward rather than opening a new one
	d := Place(spans, at(9, 40))
	if d.Kind != Attach {
		t.Fatalf("want Attach, got %+v", d)
	}
	spans = Apply(spans, d, at(9, 40), "")
	if !spans[0].Start.Equal(at(9, 40)) || !spans[0].End.Equal(at(10, 5)) {
		t.Fatalf("backward extension wrong: %+v", spans[0])
	}
}

func TestInsideWindowCommitAttaches(t *testing.T) {
	t.Parallel()

	spans := feed(t, nil, []time.Time{at(9, 0), at(9, 20)})

	d := Place(spans, at(9, 10))
	if d.Kind != Attach {
		t.Fatalf("want Attach for in-window commit, got %+v", d)
	}
	spans = Apply(spans, d, at(9, 10), "")
	if len(spans) != 1 || !spans[0].Start.Equal(at(9, 0)) || !spans[0].End.Equal(at(9, 20)) {
		t.Fatalf("in-window attach must not change the span: %+v", spans)
	}
}

func TestOrderInsensitivity(t *testing.T) {
	t.Parallel()

	// delivering in timestamp order and in shuffled order must converge
	// to the same structure once each commit is placed
	times := []time.Time{at(9, 0), at(9, 10), at(9, 25), at(9, 50), at(11, 0)}
	sorted := feed(t, nil, times)

	shuffled := []time.Time{at(9, 50), at(9, 0), at(11, 0), at(9, 25), at(9, 10)}
	alt := feed(t, nil, shuffled)

	if len(sorted) != len(alt) {
		t.Fatalf("structures diverge: %d vs %d sessions", len(sorted), len(alt))
	}
	for i := range sorted {
		if !sorted[i].Start.Equal(alt[i].Start) || !sorted[i].End.Equal(alt[i].End) {
			t.Fatalf("span %d diverges: %+v vs %+v", i, sorted[i], alt[i])
		}
	}
}

func TestPrimaryLanguage(t *testing.T) {
	t.Parallel()

	got := PrimaryLanguage(map[string]int{"Go": 120, "SQL": 40, "": 999})
	if got != "Go" {
		t.Fatalf("want Go, got %q", got)
	}

	// ties break lexicographically for determinism
	got = PrimaryLanguage(map[string]int{"Python": 10, "Go": 10})
	if got != "Go" {
		t.Fatalf("tie break wrong: %q", got)
	}

	if got := PrimaryLanguage(nil); got != "" {
		t.Fatalf("empty weights must yield empty language, got %q", got)
	}
}
