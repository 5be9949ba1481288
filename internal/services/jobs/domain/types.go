// Package domain defines the enrichment job queue types and ports
package domain

import (
	"context"
	"time"
)

// Kind enumerates the closed set of job variants
// dispatch is a table of Kind -> Handler, nothing dynamic
type Kind string

const (
	// KindNarrative generates the session narrative
	KindNarrative Kind = "narrative"

	// KindEmbedding computes and indexes the session embedding
	KindEmbedding Kind = "embedding"

	// KindWeeklySummary computes an owner's trailing-week summary
	KindWeeklySummary Kind = "weekly_summary"

	// KindInsights recomputes an owner's 30-day patterns
	KindInsights Kind = "insights"
)

// Priority classes; lower leases first, FIFO within a class
const (
	// PriorityIngest is for jobs triggered by webhook ingestion
	PriorityIngest int16 = 10

	// PriorityAnalytic is for scheduled batch work
	PriorityAnalytic int16 = 100
)

// Job states
const (
	StateQueued = "queued"
	StateLeased = "leased"
	StateDone   = "done"
	StateFailed = "failed"
)

// Job is one queued unit of enrichment work
type Job struct {
	ID          string
	Kind        Kind
	DedupeKey   string
	Priority    int16
	State       string
	// Attempts counts deliveries, incremented when the job is leased,
	// so a reclaimed crash still consumes one
	Attempts    int
	MaxAttempts int
	Payload     []byte
	RunAt       time.Time
	LeasedUntil *time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EnqueueArgs describes a submission
// DedupeKey collapses resubmissions while a live (queued or leased) job
// with the same key exists
type EnqueueArgs struct {
	Kind      Kind
	DedupeKey string
	Priority  int16
	Payload   any       // JSON-marshaled by the service
	RunAt     time.Time // zero means now
}

// Handler executes one job kind
// a nil return completes the job; a retryable error requeues with backoff;
// anything else (or an exhausted budget) is terminal
type Handler func(ctx context.Context, job Job) error

// TerminalHook runs once after a job's retry budget is exhausted
// stages use it to surface "unavailable" on the owning record
type TerminalHook func(ctx context.Context, job Job, lastErr error)

// EnqueuePort accepts job submissions
type EnqueuePort interface {
	Enqueue(ctx context.Context, in EnqueueArgs) (string, error)
}

// WorkerPort runs the consuming loop until ctx is done
type WorkerPort interface {
	Run(ctx context.Context) error
}

// SchedulerPort runs the recurring dispatch loop until ctx is done
type SchedulerPort interface {
	RunScheduler(ctx context.Context) error
}

// RegistryPort lets stages register their handlers before the worker runs
type RegistryPort interface {
	Register(kind Kind, h Handler)
	RegisterTerminal(kind Kind, hook TerminalHook)
}
