// Package module wires sessions into the API using modkit
package module

import (
	"net/http"

	modkit "devlog/internal/modkit"
	"devlog/internal/modkit/httpkit"
	enrichdom "devlog/internal/services/enrich/domain"
	jobsdom "devlog/internal/services/jobs/domain"
	sessionshttp "devlog/internal/services/sessions/http"
	sessionsrepo "devlog/internal/services/sessions/repo"
	sessionssvc "devlog/internal/services/sessions/service"
)

// EnrichPorts carries the enrichment surfaces the session endpoints use
// any of them may be nil in processes without enrichment wiring
type EnrichPorts struct {
	Narrative enrichdom.NarrativePort
	Similar   enrichdom.SimilarPort
	Weekly    enrichdom.WeeklyPort
}

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws    []func(http.Handler) http.Handler
	ports  any
	enrich EnrichPorts

	svc sessionssvc.Service
}

// New constructs a sessions module
func New(deps modkit.Deps, enq jobsdom.EnqueuePort, enrich EnrichPorts, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("sessions"),
		modkit.WithPrefix("/sessions"),
	}, opts...)...)

	repo := sessionsrepo.NewPG()
	svc := sessionssvc.New(deps.PG, repo, enq)

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		enrich: enrich,
		svc:    svc,
	}
	m.ports = Ports{Grouper: svc, Reader: svc}
	return m
}

// Service returns the underlying service for process composition
func (m *Module) Service() sessionssvc.Service { return m.svc }

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, func(rr httpkit.Router) {
		sessionshttp.Register(rr, m.svc, m.enrich.Narrative, m.enrich.Similar, m.enrich.Weekly)
	})
}

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }
