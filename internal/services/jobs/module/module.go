// Package module wires the jobs orchestrator and exposes its ports
package module

import (
	"devlog/internal/modkit"
	"devlog/internal/modkit/httpkit"
	"devlog/internal/services/jobs/service"
)

// Ports exposed for cross wiring
type Ports struct {
	Enqueuer  service.Service
	Worker    service.Service
	Scheduler service.Service
	Registry  service.Service
}

// Module defines the jobs module
type Module struct {
	deps  modkit.Deps
	ports Ports
	svc   *service.Svc
}

// New constructs the jobs module
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)

	if overrides.Concurrency != 0 {
		opts.Concurrency = overrides.Concurrency
	}
	if overrides.QueueTakeBatch != 0 {
		opts.QueueTakeBatch = overrides.QueueTakeBatch
	}
	if overrides.RetryBaseMs != 0 {
		opts.RetryBaseMs = overrides.RetryBaseMs
	}
	if overrides.MaxAttempts != 0 {
		opts.MaxAttempts = overrides.MaxAttempts
	}

	svc := service.New(deps, service.Config{
		Concurrency:    opts.Concurrency,
		QueueTakeBatch: opts.QueueTakeBatch,
		LeaseFor:       opts.LeaseFor,
		RetryBaseMs:    opts.RetryBaseMs,
		MaxAttempts:    opts.MaxAttempts,
		PollEvery:      opts.PollEvery,
		DailyHourUTC:   opts.DailyHourUTC,
		WeeklyDayUTC:   opts.WeeklyDayUTC,
		WeeklyHourUTC:  opts.WeeklyHourUTC,
	})

	m := &Module{deps: deps, svc: svc}
	m.ports = Ports{Enqueuer: svc, Worker: svc, Scheduler: svc, Registry: svc}
	return m
}

// Service returns the underlying service for handler registration in main
func (m *Module) Service() *service.Svc { return m.svc }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "jobs" }

// MountRoutes returns no HTTP routes; the queue is internal
func (m *Module) MountRoutes(_ httpkit.Router) {}
