package main

import (
	"context"
	"os/signal"
	"syscall"

	"devlog/internal/core/version"
	"devlog/internal/modkit"
	"devlog/internal/modkit/module"
	"devlog/internal/modkit/repokit"
	"devlog/internal/platform/config"
	"devlog/internal/platform/logger"
	"devlog/internal/platform/store"

	enrichmod "devlog/internal/services/enrich/module"
	insightsmod "devlog/internal/services/insights/module"
	jobsmod "devlog/internal/services/jobs/module"

	"golang.org/x/sync/errgroup"
)

func main() {
	version.SetService("devlog-worker")

	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	rdsCfg := root.Prefix("SERVICE_REDIS_")

	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := store.Config{
		AppName: "devlog",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 8)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
	}
	if chCfg.MayBool("ENABLED", true) {
		cfg.CH = store.CHConfig{
			Enabled: true,
			URL:     chCfg.MustString("DBURL"),
			Role:    "worker",
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

	jm := jobsmod.New(deps, jobsmod.Options{})
	em := enrichmod.New(deps, enrichmod.Options{})
	pm := insightsmod.New(deps)

	if err := em.EnsureSchema(ctx); err != nil {
		l.Panic().Err(err).Msg("vector schema failed")
	}

	// Handlers must be registered before the worker leases anything
	em.RegisterHandlers(jm.Service())
	pm.RegisterHandlers(jm.Service())

	module.Register(jm.Name(), jm.Ports())
	module.Register(em.Name(), em.Ports())
	module.Register(pm.Name(), pm.Ports())
	l.Info().Strs("modules", module.Names()).Msg("modules registered")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return jm.Service().Run(ctx) })
	g.Go(func() error { return jm.Service().RunScheduler(ctx) })

	l.Info().Msg("worker running")
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		l.Fatal().Err(err).Msg("worker stopped")
	}
	l.Info().Msg("worker shut down")
}
