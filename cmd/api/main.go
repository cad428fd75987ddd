package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"genstudio/internal/bootstrap"
	"genstudio/internal/http/handlers"
	httpapi "genstudio/internal/http/httpapi"
	"genstudio/internal/infra"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply the bootstrap schema before serving")
	flag.Parse()

	_ = godotenv.Load(".env", ".env.local")

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generation stack")
	}
	defer stack.Close()

	if *migrate {
		if err := bootstrap.ApplySchema(ctx, stack.SQL); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply schema")
		}
		logger.Info().Msg("schema applied")
	}

	app := handlers.NewApp(handlers.Options{
		Models:      stack.Models,
		Generations: stack.Service,
		Signer:      stack.Signer,
		Refresher:   stack.Refresher,
		Files:       stack.Files,
		DB:          stack.Pool,
		Logger:      &logger,
	})
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CORSOrigins:     cfg.CORSAllowedOrigins,
	})

	server := infra.NewHTTPServer(cfg, router, logger)
	go func() {
		logger.Info().Str("storage", cfg.StorageBackend).Int("models", stack.Models.Len()).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
