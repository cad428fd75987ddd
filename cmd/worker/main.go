package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"genstudio/internal/bootstrap"
	"genstudio/internal/generation"
	"genstudio/internal/infra"
)

func main() {
	_ = godotenv.Load(".env", ".env.local")

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build generation stack")
	}
	defer stack.Close()

	reconciler, err := generation.NewReconciler(generation.ReconcilerOptions{
		Generations: stack.Generations,
		Service:     stack.Service,
		Schedule:    cfg.ReconcileSchedule,
		Grace:       cfg.ReconcileGrace,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid reconcile schedule")
	}

	if n, err := reconciler.RunOnce(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: initial reconcile failed")
	} else {
		logger.Info().Int("finished", n).Msg("worker: initial reconcile done")
	}

	if err := reconciler.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to start reconciler")
	}
	logger.Info().Str("schedule", cfg.ReconcileSchedule).Msg("worker: started")

	<-ctx.Done()
	reconciler.Stop()
	logger.Info().Msg("worker: stopped")
}
