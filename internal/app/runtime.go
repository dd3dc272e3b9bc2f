package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/safeagree/internal/artifact"
	"horse.fit/safeagree/internal/cli"
	"horse.fit/safeagree/internal/config"
	"horse.fit/safeagree/internal/content"
	"horse.fit/safeagree/internal/db"
	"horse.fit/safeagree/internal/fingerprint"
	"horse.fit/safeagree/internal/langdetect"
	"horse.fit/safeagree/internal/logging"
	"horse.fit/safeagree/internal/policy"
	"horse.fit/safeagree/internal/reader"
	"horse.fit/safeagree/internal/summarizer"
)

// runtime holds the wired services shared by every command.
type runtime struct {
	cfg          *config.Config
	logger       zerolog.Logger
	pool         *db.Pool
	artifacts    policy.ArtifactStore
	orchestrator *policy.Orchestrator
	library      *policy.Library
	sweeper      *policy.Sweeper
}

func loadEnvAndConfig(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// openRuntime loads configuration, connects to postgres and wires the
// policy services. connectTimeout bounds only the connection and migration.
func openRuntime(envLoader *cli.EnvLoader, connectTimeout time.Duration) (*runtime, error) {
	cfg, logger, pool, err := openPool(envLoader, connectTimeout)
	if err != nil {
		return nil, err
	}

	rt, err := wireRuntime(cfg, logger, pool)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	return rt, nil
}

func openPool(envLoader *cli.EnvLoader, connectTimeout time.Duration) (*config.Config, zerolog.Logger, *db.Pool, error) {
	cfg, logger, err := loadEnvAndConfig(envLoader)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	dbCtx, dbCancel := context.WithTimeout(context.Background(), connectTimeout)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return nil, zerolog.Logger{}, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, logger, pool, nil
}

func wireRuntime(cfg *config.Config, logger zerolog.Logger, pool *db.Pool) (*runtime, error) {
	artifacts, err := newArtifactStore(cfg, pool)
	if err != nil {
		return nil, err
	}

	summ, err := newSummarizer(cfg)
	if err != nil {
		return nil, err
	}

	fetcher := reader.NewFetcher(reader.FetchOptions{
		Timeout:       cfg.FetchTimeout,
		BodyByteLimit: cfg.FetchMaxBytes,
	})
	normalizer := content.NewNormalizer(fetcher, content.DefaultExtractors())

	orchestrator, err := policy.NewOrchestrator(policy.Deps{
		Catalog:          pool,
		Artifacts:        artifacts,
		Normalizer:       normalizer,
		Summarizer:       summ,
		Logger:           logging.Component(logger, "orchestrator"),
		SummarizeTimeout: cfg.SummarizerTimeout,
		Hash:             fingerprint.Of,
		DetectLanguage:   langdetect.Detect,
	})
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	library := policy.NewLibrary(pool, orchestrator, logging.Component(logger, "library"), policy.LibraryOptions{
		ImportConcurrency: cfg.ImportConcurrency,
	})
	sweeper := policy.NewSweeper(pool, artifacts, logging.Component(logger, "sweeper"), cfg.SweepGrace, nil)

	logger.Debug().
		Str("artifact_backend", cfg.ArtifactBackendName()).
		Str("summarizer", summ.Name()).
		Str("model", summarizer.ModelOf(summ)).
		Msg("runtime wired")

	return &runtime{
		cfg:          cfg,
		logger:       logger,
		pool:         pool,
		artifacts:    artifacts,
		orchestrator: orchestrator,
		library:      library,
		sweeper:      sweeper,
	}, nil
}

func (r *runtime) Close() {
	if r == nil || r.pool == nil {
		return
	}
	_ = r.pool.Close()
}

func newArtifactStore(cfg *config.Config, pool *db.Pool) (policy.ArtifactStore, error) {
	switch cfg.ArtifactBackendName() {
	case config.ArtifactBackendPostgres:
		return db.NewBlobStore(pool), nil
	case config.ArtifactBackendFilesystem:
		dir := strings.TrimSpace(cfg.ArtifactDir)
		if dir == "" {
			dir = artifact.DefaultDir()
		}
		store, err := artifact.NewFileStore(dir)
		if err != nil {
			return nil, fmt.Errorf("open artifact directory: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported artifact backend %q", cfg.ArtifactBackend)
	}
}

func newSummarizer(cfg *config.Config) (summarizer.Summarizer, error) {
	registry := summarizer.NewRegistryFromOptions(summarizer.Options{
		Provider: cfg.SummarizerProvider,
		Endpoint: cfg.SummarizerEndpoint,
		Model:    cfg.SummarizerModel,
		APIKey:   cfg.SummarizerAPIKey,
	})
	summ, err := registry.Provider("")
	if err != nil {
		return nil, fmt.Errorf("resolve summarizer: %w", err)
	}
	return summ, nil
}
