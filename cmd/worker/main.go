package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mentorapi/internal/bootstrap"
	"mentorapi/internal/infra"
)

const stopGrace = 30 * time.Second

// The worker runs the stale-job sweeper on its cron schedule so RUNNING jobs
// converge even when no caller is polling them.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewComponentLogger(cfg.AppEnv, "worker")

	if cfg.StoreDriver == infra.StoreDriverMemory {
		logger.Fatal().Msg("worker: memory store cannot be shared with the api, use postgres or sqlite")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build runtime")
	}
	defer rt.Close()

	if n, err := rt.Sweeper.Sweep(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: initial sweep failed")
	} else {
		logger.Info().Int("jobs", n).Msg("worker: initial sweep finished")
	}

	if err := rt.Sweeper.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to start sweeper")
	}
	logger.Info().Str("schedule", cfg.SweepSchedule).Msg("worker: started")

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	rt.Sweeper.Stop(stopCtx)
	logger.Info().Msg("worker: stopped")
}
