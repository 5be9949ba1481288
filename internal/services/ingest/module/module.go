// Package module wires ingest into the API using modkit
package module

import (
	"net/http"

	modkit "devlog/internal/modkit"
	"devlog/internal/modkit/httpkit"
	ingesthttp "devlog/internal/services/ingest/http"
	ingestrepo "devlog/internal/services/ingest/repo"
	ingestsvc "devlog/internal/services/ingest/service"
	sessdom "devlog/internal/services/sessions/domain"
)

// Module implements the modkit.Module interface
type Module struct {
	deps modkit.Deps
	name string

	mws   []func(http.Handler) http.Handler
	ports any

	opts Options
	svc  ingestsvc.Service
}

// New constructs an ingest module
// the sessions grouper port must be supplied by the composition root
func New(deps modkit.Deps, grouper sessdom.GrouperPort, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("ingest")}, opts...)...)

	o := FromConfig(deps.Cfg)
	repo := ingestrepo.NewPG()
	svc := ingestsvc.New(deps.PG, repo, grouper)

	m := &Module{
		deps: deps,
		name: b.Name,
		mws:  b.Mw,
		opts: o,
		svc:  svc,
	}
	m.ports = Ports{Ingest: svc}
	return m
}

// MountRoutes mounts the webhook and repository surfaces
// two prefixes on purpose: the webhook path is provider-facing and
// never shares middleware tweaks with the management routes
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, "/webhooks", m.mws, func(rr httpkit.Router) {
		ingesthttp.RegisterWebhooks(rr, m.svc, m.opts.WebhookSecret)
	})

	mws := m.mws
	if m.opts.APIToken != "" {
		mws = append(mws[:len(mws):len(mws)], httpkit.Auth(ingesthttp.TokenAuth{Token: m.opts.APIToken}))
	}
	httpkit.MountUnder(r, "/repos", mws, func(rr httpkit.Router) {
		ingesthttp.RegisterRepos(rr, m.svc)
	})
}

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }
