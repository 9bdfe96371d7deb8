package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/availability-booking/internal/config"
	"github.com/clinicore/availability-booking/internal/db"
	"github.com/clinicore/availability-booking/internal/schedule"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "schedule-worker").Logger()
	log.Info().Msg("schedule-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("running schedule worker")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	svc := schedule.NewService(schedule.NewPgRepository(pgPool), log)

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping schedule worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *schedule.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	activated, finished, err := svc.AdvanceDefinitions(runCtx, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("definition advance run error")
		return
	}
	log.Info().
		Int("activated", activated).
		Int("finished", finished).
		Dur("took", time.Since(start)).
		Msg("definition advance run complete")
}
