// Package bootstrap provides dependency initialization for clipmerge.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/clipmerge/internal/config"
	"github.com/maauso/clipmerge/internal/job"
	"github.com/maauso/clipmerge/internal/media"
	"github.com/maauso/clipmerge/internal/merge"
	"github.com/maauso/clipmerge/internal/storage"
)

// Pipeline holds the merge engine and the storage it renders into.
type Pipeline struct {
	Store  storage.Storage
	Engine media.Engine
	Runner *merge.Runner
}

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	*Pipeline
	Repo         job.Repository
	MergeService *job.MergeService

	closeRepo func() error
}

// NewPipeline creates the storage backend, the ffmpeg engine and the merge
// runner.
func NewPipeline(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	engine := media.NewFFmpegEngine(cfg.FFmpegPath,
		media.WithFFprobePath(cfg.FFprobePath),
		media.WithEncoderSettings(cfg.EncoderSettings()),
	)

	return &Pipeline{
		Store:  store,
		Engine: engine,
		Runner: merge.NewRunner(engine, store, logger),
	}, nil
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	pipeline, err := NewPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{Pipeline: pipeline, closeRepo: func() error { return nil }}
	if cfg.JobDBPath != "" {
		repo, err := job.NewSQLiteRepository(cfg.JobDBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("open job database: %w", err)
		}
		logger.Info("sqlite job repository configured", slog.String("path", cfg.JobDBPath))
		deps.Repo = repo
		deps.closeRepo = repo.Close
	} else {
		deps.Repo = job.NewMemoryRepository()
	}

	deps.MergeService = job.NewMergeService(deps.Repo, pipeline.Runner, logger,
		job.WithMaxConcurrentJobs(cfg.MaxConcurrentJobs),
	)
	return deps, nil
}

// Close stops running merges and releases the job repository.
func (d *Dependencies) Close() error {
	d.MergeService.Shutdown()
	return d.closeRepo()
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("prefix", cfg.S3Prefix),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
	)
	return localStore, nil
}
