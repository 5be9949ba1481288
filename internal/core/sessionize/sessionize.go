// Package sessionize implements the temporal-gap clustering rule that turns
// a (repository, author) commit stream into coding sessions. It is pure:
// callers load the pair's current spans, ask Place where a commit belongs,
// and apply the decision transactionally
package sessionize

import (
	"sort"
	"time"
)

// Gap is the maximum distance between consecutive commits in one session
// commits further apart than this start a new session
const Gap = 30 * time.Minute

// Span is the time extent of an existing session
type Span struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Kind enumerates placement outcomes
type Kind uint8

const (
	// StartNew opens a fresh session at the commit's timestamp
	StartNew Kind = iota

	// Attach joins exactly one existing session, extending it forward or
	// backward when the timestamp falls outside its current window
	Attach

	// Bridge joins the earlier of two sessions and closes the gap to the
	// later one, so the two must merge into a single session
	Bridge
)

// Decision says where a commit belongs relative to the existing spans
type Decision struct {
	Kind Kind

	// Target is the session receiving the commit (Attach, Bridge)
	Target string

	// Absorb is the session removed by the merge (Bridge only)
	// its commits reparent onto Target and its row is deleted
	Absorb string
}

// Place decides where a commit at t belongs among spans.
// spans must be sorted by Start and pairwise separated by more than Gap;
// that invariant means at most two spans can be within tolerance of t,
// and when two are, attaching to the earlier one closes the gap to the
// later one, which forces a merge
func Place(spans []Span, t time.Time) Decision {
	var hits []int
	for i, s := range spans {
		if !t.Before(s.Start.Add(-Gap)) && !t.After(s.End.Add(Gap)) {
			hits = append(hits, i)
		}
	}
	switch len(hits) {
	case 0:
		return Decision{Kind: StartNew}
	case 1:
		return Decision{Kind: Attach, Target: spans[hits[0]].ID}
	default:
		return Decision{Kind: Bridge, Target: spans[hits[0]].ID, Absorb: spans[hits[1]].ID}
	}
}

// Apply folds a decision back into the span set and returns it sorted.
// newID names the created span for StartNew; it is ignored otherwise
func Apply(spans []Span, d Decision, t time.Time, newID string) []Span {
	out := make([]Span, 0, len(spans)+1)

	switch d.Kind {
	case StartNew:
		out = append(out, spans...)
		out = append(out, Span{ID: newID, Start: t, End: t})

	case Attach:
		for _, s := range spans {
			if s.ID == d.Target {
				if t.Before(s.Start) {
					s.Start = t
				}
				if t.After(s.End) {
					s.End = t
				}
			}
			out = append(out, s)
		}

	case Bridge:
		var target, absorb Span
		for _, s := range spans {
			switch s.ID {
			case d.Target:
				target = s
			case d.Absorb:
				absorb = s
			default:
				out = append(out, s)
			}
		}
		merged := Span{ID: target.ID, Start: target.Start, End: absorb.End}
		if t.Before(merged.Start) {
			merged.Start = t
		}
		if t.After(merged.End) {
			merged.End = t
		}
		out = append(out, merged)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// PrimaryLanguage picks the language with the greatest cumulative
// changed-line weight; ties break lexicographically so results are stable
func PrimaryLanguage(weights map[string]int) string {
	best := ""
	bestW := -1
	for lang, w := range weights {
		if lang == "" {
			continue
		}
		if w > bestW || (w == bestW && lang < best) {
			best, bestW = lang, w
		}
	}
	return best
}
