// Package service implements the enrichment job orchestrator
package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"devlog/internal/modkit"
	"devlog/internal/modkit/repokit"
	perr "devlog/internal/platform/errors"

	dom "devlog/internal/services/jobs/domain"
	jrepo "devlog/internal/services/jobs/repo"
)

// Service bundles the orchestrator ports
type Service interface {
	dom.EnqueuePort
	dom.WorkerPort
	dom.SchedulerPort
	dom.RegistryPort
}

// Config controls the worker and scheduler
type Config struct {
	Concurrency    int
	QueueTakeBatch int
	LeaseFor       time.Duration
	RetryBaseMs    int
	MaxAttempts    int
	PollEvery      time.Duration

	// recurring dispatch instants (UTC)
	DailyHourUTC  int
	WeeklyDayUTC  time.Weekday
	WeeklyHourUTC int
}

// Svc implements the orchestrator
type Svc struct {
	db   repokit.TxRunner
	repo jrepo.Repo
	cfg  Config
	deps modkit.Deps

	mu        sync.RWMutex
	handlers  map[dom.Kind]dom.Handler
	terminals map[dom.Kind]dom.TerminalHook
}

// New constructs the service
func New(deps modkit.Deps, cfg Config) *Svc {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.QueueTakeBatch <= 0 {
		cfg.QueueTakeBatch = 16
	}
	if cfg.LeaseFor <= 0 {
		cfg.LeaseFor = 60 * time.Second
	}
	if cfg.RetryBaseMs <= 0 {
		cfg.RetryBaseMs = 500
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 500 * time.Millisecond
	}
	if cfg.DailyHourUTC <= 0 {
		cfg.DailyHourUTC = 2
	}
	if cfg.WeeklyHourUTC <= 0 {
		cfg.WeeklyHourUTC = 3
	}
	b := jrepo.NewPG()
	return &Svc{
		db:        deps.PG,
		repo:      b.Bind(deps.PG),
		cfg:       cfg,
		deps:      deps,
		handlers:  map[dom.Kind]dom.Handler{},
		terminals: map[dom.Kind]dom.TerminalHook{},
	}
}

// Register installs the handler for a job kind
func (s *Svc) Register(kind dom.Kind, h dom.Handler) {
	s.mu.Lock()
	s.handlers[kind] = h
	s.mu.Unlock()
}

// RegisterTerminal installs the exhausted-budget hook for a job kind
func (s *Svc) RegisterTerminal(kind dom.Kind, hook dom.TerminalHook) {
	s.mu.Lock()
	s.terminals[kind] = hook
	s.mu.Unlock()
}

// Enqueue submits a job; a live duplicate (same dedupe key) coalesces
func (s *Svc) Enqueue(ctx context.Context, in dom.EnqueueArgs) (string, error) {
	if in.Kind == "" || in.DedupeKey == "" {
		return "", perr.InvalidArgf("enqueue requires kind and dedupe key")
	}
	payload, err := json.Marshal(in.Payload)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "marshal job payload")
	}
	runAt := in.RunAt
	if runAt.IsZero() {
		runAt = time.Now().UTC()
	}
	priority := in.Priority
	if priority == 0 {
		priority = dom.PriorityAnalytic
	}
	return s.repo.Enqueue(ctx, dom.Job{
		Kind:        in.Kind,
		DedupeKey:   in.DedupeKey,
		Priority:    priority,
		MaxAttempts: s.cfg.MaxAttempts,
		Payload:     payload,
		RunAt:       runAt,
	})
}

// nextAfter computes the exponential backoff delay before attempt n (1-based)
// capped at 30 seconds so stuck upstreams do not park jobs for hours
func nextAfter(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base << (attempt - 1)
	const ceiling = 30 * time.Second
	if d > ceiling || d <= 0 {
		return ceiling
	}
	return d
}

func (s *Svc) handler(kind dom.Kind) (dom.Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[kind]
	return h, ok
}

func (s *Svc) terminal(kind dom.Kind) (dom.TerminalHook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.terminals[kind]
	return h, ok
}
