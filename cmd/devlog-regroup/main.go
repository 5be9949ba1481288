// devlog-regroup reassigns ungrouped commits to sessions
// use it for recovery after partial failures or for backfill after
// importing historic commits
package main

import (
	"context"
	"flag"
	"log"

	"devlog/internal/core/version"
	"devlog/internal/modkit"
	"devlog/internal/modkit/module"
	"devlog/internal/platform/config"
	"devlog/internal/platform/logger"
	"devlog/internal/platform/store"

	jobsdom "devlog/internal/services/jobs/domain"
	jobsmod "devlog/internal/services/jobs/module"
	sessmod "devlog/internal/services/sessions/module"
)

func main() {
	version.SetService("devlog-regroup")

	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")

	l := logger.Get()

	var (
		fRepoID = flag.Int64("repo", 0, "restrict to one repository id (requires -author)")
		fAuthor = flag.String("author", "", "restrict to one author email (requires -repo)")
		fNoEnq  = flag.Bool("no-enqueue", false, "group only, skip enrichment enqueue")
	)
	flag.Parse()

	if (*fRepoID != 0) != (*fAuthor != "") {
		log.Fatal("-repo and -author must be given together")
	}

	st, err := store.Open(context.Background(), store.Config{
		AppName: "devlog",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{
		Log: *l,
		Cfg: root,
		PG:  st.PG,
	}

	var enq jobsdom.EnqueuePort
	if !*fNoEnq {
		jm := jobsmod.New(deps, jobsmod.Options{})
		enq = module.MustPortsOf[jobsdom.EnqueuePort](jm)
	}

	sm := sessmod.New(deps, enq, sessmod.EnrichPorts{})
	grouper := sm.Ports().(sessmod.Ports).Grouper

	ctx := context.Background()

	var (
		res    = struct{ Grouped, Created, Merged int }{}
		runErr error
	)
	if *fRepoID != 0 {
		out, err := grouper.GroupPair(ctx, *fRepoID, *fAuthor)
		res.Grouped, res.Created, res.Merged = out.CommitsGrouped, out.SessionsCreated, out.SessionsMerged
		runErr = err
	} else {
		out, err := grouper.GroupUngrouped(ctx)
		res.Grouped, res.Created, res.Merged = out.CommitsGrouped, out.SessionsCreated, out.SessionsMerged
		runErr = err
	}
	if runErr != nil {
		l.Fatal().Err(runErr).Msg("regroup failed")
	}

	l.Info().
		Int("commits_grouped", res.Grouped).
		Int("sessions_created", res.Created).
		Int("sessions_merged", res.Merged).
		Msg("regroup complete")
}
