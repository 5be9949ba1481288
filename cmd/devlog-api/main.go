package main

import (
	"context"
	stdhttp "net/http"

	"devlog/internal/core/version"
	"devlog/internal/modkit"
	"devlog/internal/modkit/httpkit"
	"devlog/internal/modkit/module"
	"devlog/internal/modkit/repokit"
	"devlog/internal/platform/config"
	"devlog/internal/platform/logger"
	phttp "devlog/internal/platform/net/http"
	"devlog/internal/platform/net/middleware"
	"devlog/internal/platform/store"

	enrichmod "devlog/internal/services/enrich/module"
	ingestmod "devlog/internal/services/ingest/module"
	insightsmod "devlog/internal/services/insights/module"
	jobsdom "devlog/internal/services/jobs/domain"
	jobsmod "devlog/internal/services/jobs/module"
	sessmod "devlog/internal/services/sessions/module"
)

func main() {
	version.SetService("devlog-api")

	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	rdsCfg := root.Prefix("SERVICE_REDIS_")

	l := logger.Get()
	ctx := context.Background()

	cfg := store.Config{
		AppName: "devlog",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
	}
	if chCfg.MayBool("ENABLED", true) {
		cfg.CH = store.CHConfig{
			Enabled: true,
			URL:     chCfg.MustString("DBURL"),
			Role:    "api",
		}
	}
	if rdsCfg.MayBool("ENABLED", true) {
		cfg.RDS = store.RedisConfig{
			Enabled:  true,
			Addr:     rdsCfg.MayString("ADDR", "localhost:6379"),
			DB:       rdsCfg.MayInt("DB", 0),
			Password: rdsCfg.MayString("PASSWORD", ""),
		}
	}

	st, err := store.Open(ctx, cfg, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	repokit.MustGuard(ctx, st)

	deps := modkit.Deps{
		Log: *l,
		Cfg: root,
		PG:  st.PG,
		CH:  st.CH,
		RDS: st.RDS,
	}

	// Build the queue first; everything downstream enqueues through it
	jm := jobsmod.New(deps, jobsmod.Options{})
	em := enrichmod.New(deps, enrichmod.Options{})
	if err := em.EnsureSchema(ctx); err != nil {
		l.Panic().Err(err).Msg("vector schema failed")
	}

	enrichPorts := em.Ports().(enrichmod.Ports)
	sm := sessmod.New(deps,
		module.MustPortsOf[jobsdom.EnqueuePort](jm),
		sessmod.EnrichPorts{
			Narrative: enrichPorts.Narrative,
			Similar:   enrichPorts.Similar,
			Weekly:    enrichPorts.Weekly,
		},
	)
	im := ingestmod.New(deps, sm.Ports().(sessmod.Ports).Grouper)
	pm := insightsmod.New(deps)

	module.Register(jm.Name(), jm.Ports())
	module.Register(em.Name(), em.Ports())
	module.Register(sm.Name(), sm.Ports())
	module.Register(im.Name(), im.Ports())
	module.Register(pm.Name(), pm.Ports())
	l.Info().Strs("modules", module.Names()).Msg("modules registered")

	srv := phttp.NewServer(apiCfg)
	r := srv.Router()
	r.Use(middleware.Defaults()...)
	if origins := apiCfg.MayCSV("CORS_ORIGINS", nil); len(origins) > 0 {
		r.Use(middleware.CORS(middleware.CORSOptions{AllowedOrigins: origins}))
	}

	httpkit.Get(r, "/version", func(_ *stdhttp.Request) (any, error) {
		return version.Info(), nil
	})
	httpkit.Get(r, "/health", func(req *stdhttp.Request) (any, error) {
		return map[string]string{"status": "ok"}, st.Guard(req.Context())
	})

	for _, m := range []modkit.Module{im, sm, pm} {
		m.MountRoutes(r)
	}

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
