package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/ninewheels/server/internal/httpserver"
	"github.com/ninewheels/server/pkg/ninewheels"
)

func main() {
	// Optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("NW_CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()

	cfg, err := ninewheels.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	app, err := ninewheels.NewApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("assemble app")
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.Logger.Error().Err(err).Msg("shutdown cleanup failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.RunBackground(ctx)

	server := httpserver.New(cfg, app.Handler(), app.Logger)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			app.Logger.Fatal().Err(err).Msg("http server failed")
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Enforcement.ShutdownGrace.Duration)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error().Err(err).Msg("http server shutdown failed")
		}
	}
}
