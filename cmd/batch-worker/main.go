package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/priority-appointment-scheduling/internal/app"
	"github.com/hackgods/priority-appointment-scheduling/internal/config"
	"github.com/hackgods/priority-appointment-scheduling/internal/logging"
)

// batch-worker periodically drains the request queue of every calendar.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("", "info").Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "batch-worker").Logger()
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("batch worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(rootCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	// Run once at startup
	runOnce(rootCtx, a)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping batch worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, a)
		}
	}
}

// runOnce reloads calendars from Postgres, drains every queue and saves the
// result.
func runOnce(ctx context.Context, a *app.App) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	svc, log := a.Service, a.Log
	start := time.Now()
	if a.PgPool != nil {
		if _, err := svc.LoadAll(runCtx); err != nil {
			log.Error().Err(err).Msg("reloading calendars failed")
			return
		}
	}

	reports, err := svc.ProcessEverything(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("batch run error")
		return
	}
	if err := svc.SaveAll(runCtx); err != nil {
		log.Error().Err(err).Msg("saving calendars after batch run failed")
	}

	var total, confirmed int
	for _, r := range reports {
		total += r.Total()
		confirmed += len(r.Confirmed())
	}
	log.Info().
		Int("calendars", len(reports)).
		Int("requests", total).
		Int("confirmed", confirmed).
		Dur("elapsed", time.Since(start)).
		Msg("batch run complete")
}
