// Package module wires the enrichment stages and exposes their ports
package module

import (
	"context"

	"devlog/internal/adapters/ai"
	"devlog/internal/adapters/vector"
	"devlog/internal/modkit"
	"devlog/internal/modkit/httpkit"
	"devlog/internal/services/enrich/repo"
	"devlog/internal/services/enrich/service"
	jobsdom "devlog/internal/services/jobs/domain"
)

// Module defines the enrich module
type Module struct {
	deps  modkit.Deps
	svc   *service.Svc
	vec   *vector.Index
	ports Ports
}

// New constructs the enrich module
// the vector index is created only when a ClickHouse connection is present
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.APIKey != "" {
		opts.APIKey = overrides.APIKey
	}
	if overrides.BaseURL != "" {
		opts.BaseURL = overrides.BaseURL
	}
	if overrides.ChatModel != "" {
		opts.ChatModel = overrides.ChatModel
	}
	if overrides.EmbedModel != "" {
		opts.EmbedModel = overrides.EmbedModel
	}
	if overrides.NarrativeTTL != 0 {
		opts.NarrativeTTL = overrides.NarrativeTTL
	}
	if overrides.WeeklyTTL != 0 {
		opts.WeeklyTTL = overrides.WeeklyTTL
	}
	if overrides.TopK != 0 {
		opts.TopK = overrides.TopK
	}

	client := ai.NewClient(ai.Options{
		APIKey:     opts.APIKey,
		BaseURL:    opts.BaseURL,
		ChatModel:  opts.ChatModel,
		EmbedModel: opts.EmbedModel,
		RatePerSec: opts.RatePerSec,
		Burst:      opts.Burst,
	})

	var (
		vec *vector.Index
		idx service.VectorIndex
	)
	if deps.CH != nil {
		vec = vector.New(deps.CH)
		idx = vec
	}

	svc := service.New(deps.PG, repo.NewPG(), client, idx, deps.RDS, service.Config{
		NarrativeTTL: opts.NarrativeTTL,
		WeeklyTTL:    opts.WeeklyTTL,
		TopK:         opts.TopK,
	})

	m := &Module{deps: deps, svc: svc, vec: vec}
	m.ports = Ports{Narrative: svc, Similar: svc, Weekly: svc}
	return m
}

// Service returns the underlying service
func (m *Module) Service() *service.Svc { return m.svc }

// RegisterHandlers attaches the stage handlers to the jobs registry
func (m *Module) RegisterHandlers(reg jobsdom.RegistryPort) { m.svc.RegisterHandlers(reg) }

// EnsureSchema creates the vector index table when ClickHouse is wired
func (m *Module) EnsureSchema(ctx context.Context) error {
	if m.vec == nil {
		return nil
	}
	return m.vec.EnsureSchema(ctx)
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "enrich" }

// MountRoutes returns no HTTP routes; the sessions module fronts the
// enrichment surfaces
func (m *Module) MountRoutes(_ httpkit.Router) {}
