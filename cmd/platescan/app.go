package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/soochol/platescan/internal/config"
	"github.com/soochol/platescan/internal/db"
	"github.com/soochol/platescan/internal/detect"
	"github.com/soochol/platescan/internal/metrics"
	"github.com/soochol/platescan/internal/repository"
	"github.com/soochol/platescan/internal/services"
	"github.com/soochol/platescan/internal/storage"
	"github.com/soochol/platescan/internal/transcode"
)

// app holds the components shared by serve and process.
type app struct {
	cfg     *config.Config
	uploads *storage.LocalStorage
	results *storage.LocalStorage
	jobs    repository.JobRepository
	metrics *metrics.Metrics
	process *services.ProcessService
	db      *db.DB
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))

	a := &app{cfg: cfg, metrics: metrics.New()}

	if a.uploads, err = storage.NewLocalStorage(cfg.Storage.UploadDir); err != nil {
		return nil, fmt.Errorf("upload storage: %w", err)
	}
	if a.results, err = storage.NewLocalStorage(cfg.Storage.ResultDir); err != nil {
		return nil, fmt.Errorf("result storage: %w", err)
	}

	memJobs := repository.NewMemoryJobRepository()
	a.jobs = memJobs
	if cfg.Database.URL != "" {
		database, err := db.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.db = database
		a.jobs = repository.NewPersistentJobRepository(memJobs, database)
		slog.Info("job history backed by database")
	}

	detector := &detect.Detector{
		Python:  cfg.Detector.Python,
		Script:  cfg.Detector.Script,
		Weights: cfg.Detector.Weights,
		Conf:    cfg.Detector.Conf,
		Device:  cfg.Detector.Device,
		RunsDir: cfg.Detector.RunsDir,
		Timeout: cfg.Detector.Timeout,
	}
	encoder := &transcode.Encoder{
		FFmpeg:     cfg.Encoder.FFmpeg,
		VideoCodec: cfg.Encoder.VideoCodec,
		Timeout:    cfg.Encoder.Timeout,
	}

	a.process = services.NewProcessService(a.uploads, a.results, detector, encoder, a.jobs)
	a.process.SetAllowedExtensions(cfg.Upload.AllowedExtensions)
	a.process.SetLimiter(services.NewConcurrencyLimiter(cfg.Upload.MaxConcurrent))
	a.process.SetMetrics(a.metrics)
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("close database", "err", err)
		}
	}
}
