// Package bootstrap assembles the generation stack from configuration. The
// api and worker binaries share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"genstudio/internal/adapter/repo"
	"genstudio/internal/assets"
	"genstudio/internal/catalog"
	"genstudio/internal/generation"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/providers/fal"
	"genstudio/internal/sqlinline"
	"genstudio/internal/storage"
)

// Stack holds the wired components.
type Stack struct {
	Pool        *pgxpool.Pool
	SQL         *infra.SQLRunner
	Models      *catalog.Registry
	Generations *repo.GenerationRepositoryPG
	Assets      *repo.AssetRepositoryPG
	Signer      *assets.Signer
	Refresher   *assets.Refresher
	Service     *generation.Service
	// Files is set when the local storage backend is active.
	Files *storage.FileStore

	closers []func()
}

// Close releases the cache and the database pool.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// Build connects to the database and wires every component. The fal key
// comes from the environment first and the integration token table second;
// without one the stack still starts but every run fails with
// missing_credentials.
func Build(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Stack, error) {
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Stack{Pool: pool, SQL: infra.NewSQLRunner(pool, *logger)}
	s.closers = append(s.closers, pool.Close)

	if err := s.build(ctx, cfg, logger); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Stack) build(ctx context.Context, cfg *infra.Config, logger *infra.Logger) error {
	models := catalog.Default()
	if cfg.ModelCatalogPath != "" {
		extra, err := catalog.LoadFile(cfg.ModelCatalogPath)
		if err != nil {
			return err
		}
		if models, err = catalog.Merge(models, extra); err != nil {
			return err
		}
		logger.Info().Str("path", cfg.ModelCatalogPath).Int("models", models.Len()).Msg("model catalog loaded")
	}
	s.Models = models

	var jobs generation.JobClient = generation.UnavailableClient{}
	var uploader generation.Uploader
	key, err := credentials.NewStore(s.SQL).ResolveFalAPIKey(ctx, cfg.FalAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("could not read fal api key from integration tokens")
	}
	client, err := fal.NewClient(fal.Options{
		APIKey:         key,
		QueueBaseURL:   cfg.FalQueueBaseURL,
		StorageBaseURL: cfg.FalStorageBaseURL,
		Logger:         logger,
	})
	switch {
	case err == nil:
		jobs, uploader = client, client
	case errors.Is(err, fal.ErrMissingAPIKey):
		logger.Warn().Msg("FAL_KEY is not set; generations will fail with missing_credentials")
	default:
		return err
	}

	runner, err := generation.NewRunner(generation.RunnerOptions{
		Client:       jobs,
		Logger:       logger,
		PollInterval: cfg.GenerationPollInterval,
		Timeout:      cfg.GenerationTimeout,
	})
	if err != nil {
		return err
	}

	store, err := s.openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}

	cache, err := s.openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	s.Signer, err = assets.NewSigner(assets.SignerOptions{Store: store, Cache: cache, DefaultTTL: cfg.SignedURLTTL, Logger: logger})
	if err != nil {
		return err
	}
	s.Refresher = assets.NewRefresher(s.Signer, 0)

	s.Generations = repo.NewGenerationRepository(s.SQL)
	s.Assets = repo.NewAssetRepository(s.SQL)
	correlator, err := assets.NewCorrelator(assets.CorrelatorOptions{
		Assets:       s.Assets,
		Store:        store,
		Mirror:       cfg.MirrorOutputs,
		AllowedHosts: cfg.MirrorHostAllowlist,
		HTTPClient:   &http.Client{Timeout: 2 * time.Minute},
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	s.Service, err = generation.NewService(generation.ServiceOptions{
		Models:      models,
		Runner:      runner,
		Uploader:    uploader,
		Generations: s.Generations,
		Assets:      s.Assets,
		Persister:   correlator,
		Signer:      s.Signer,
		SignTTL:     cfg.SignedURLTTL,
		Logger:      logger,
	})
	return err
}

func (s *Stack) openStorage(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (storage.Store, error) {
	switch cfg.StorageBackend {
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		}, *logger)
	case "local":
		files, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL, cfg.StorageSigningSecret)
		if err != nil {
			return nil, err
		}
		s.Files = files
		return files, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown storage backend %q", cfg.StorageBackend)
	}
}

func (s *Stack) openCache(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (assets.Cache, error) {
	if cfg.RedisURL == "" {
		return assets.NewMemoryCache(0), nil
	}
	cache, err := assets.NewRedisCache(ctx, cfg.RedisURL, "genstudio:signed:", logger)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = cache.Close() })
	return cache, nil
}

// ApplySchema runs the bootstrap DDL. Every statement is idempotent.
func ApplySchema(ctx context.Context, sql infra.SQLExecutor) error {
	for _, stmt := range sqlinline.Schema {
		if _, err := sql.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
