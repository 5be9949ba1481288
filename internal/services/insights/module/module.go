// Package module wires insights into the API using modkit
package module

import (
	stdhttp "net/http"

	modkit "devlog/internal/modkit"
	"devlog/internal/modkit/httpkit"
	"devlog/internal/platform/config"
	insightshttp "devlog/internal/services/insights/http"
	insightsrepo "devlog/internal/services/insights/repo"
	insightssvc "devlog/internal/services/insights/service"
	jobsdom "devlog/internal/services/jobs/domain"
)

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws   []func(stdhttp.Handler) stdhttp.Handler
	ports any

	svc *insightssvc.Svc
}

// New constructs an insights module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("insights"),
		modkit.WithPrefix("/insights"),
	}, opts...)...)

	svc := insightssvc.New(deps.PG, insightsrepo.NewPG(), insightssvc.Config{
		Parallelism: parallelism(deps.Cfg),
	})

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		svc:    svc,
	}
	m.ports = Ports{Reader: svc, Recompute: svc}
	return m
}

func parallelism(cfg config.Conf) int {
	return cfg.Prefix("INSIGHTS_").MayInt("PARALLELISM", 4)
}

// Service returns the underlying service for handler registration in main
func (m *Module) Service() *insightssvc.Svc { return m.svc }

// RegisterHandlers attaches the recompute sweep to the jobs registry
func (m *Module) RegisterHandlers(reg jobsdom.RegistryPort) { m.svc.RegisterHandlers(reg) }

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, func(rr httpkit.Router) {
		insightshttp.Register(rr, m.svc, m.svc)
	})
}

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(stdhttp.Handler) stdhttp.Handler { return m.mws }
