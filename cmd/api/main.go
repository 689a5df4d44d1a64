package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mentorapi/internal/bootstrap"
	"mentorapi/internal/http/handlers"
	httpapi "mentorapi/internal/http/httpapi"
	"mentorapi/internal/infra"
)

const shutdownGrace = 30 * time.Second

func main() {
	// Load .env when present
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewComponentLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	rt, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to build runtime")
	}
	defer rt.Close()

	if cfg.EmbeddedSweeper {
		if err := rt.Sweeper.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("api: failed to start sweeper")
		}
	}

	app := handlers.NewApp(rt.Service, &logger)
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		JWTSecret:          cfg.JWTSecret,
		RequireAuth:        cfg.AuthRequired,
		CallbackSecret:     cfg.VideoCallbackSecret,
		CORSAllowedOrigins: cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		Logger:             logger,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("store", cfg.StoreDriver).
			Bool("embedded_sweeper", cfg.EmbeddedSweeper).
			Msg("api: listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	if cfg.EmbeddedSweeper {
		rt.Sweeper.Stop(shutdownCtx)
	}
	logger.Info().Msg("api: stopped")
}
