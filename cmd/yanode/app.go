package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/config"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/drive"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/drive/s3drive"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/extract"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/format"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/history"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/index"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/logging"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/search"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/pkg/retry"
)

// backend is a drive that can both list and download.
type backend interface {
	drive.Directory
	drive.Fetcher
}

// app holds the wired components shared by every command.
type app struct {
	cfg       *config.Config
	drive     backend
	index     *index.Cache
	engine    *search.Engine
	history   history.Store
	formatter *format.Formatter
}

// setup loads configuration and initializes logging.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		OutputPath: cfg.LogFile,
	}); err != nil {
		return nil, fmt.Errorf("logging init error: %w", err)
	}
	return cfg, nil
}

func newBackend(ctx context.Context, cfg *config.Config) (backend, error) {
	switch cfg.Drive.Backend {
	case "s3":
		return s3drive.New(ctx, s3drive.Config{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
		})
	default:
		rc := retry.DefaultConfig()
		rc.MaxAttempts = cfg.Drive.MaxAttempts
		return drive.New(drive.Config{
			BaseURL:     cfg.Drive.BaseURL,
			Token:       cfg.Drive.APIToken,
			Timeout:     cfg.Drive.Timeout,
			RetryConfig: rc,
			RatePerSec:  cfg.Drive.RatePerSec,
			RateBurst:   cfg.Drive.RateBurst,
		}), nil
	}
}

func newHistory(ctx context.Context, cfg *config.Config) (history.Store, error) {
	if cfg.DatabaseURL == "" {
		logging.Info("no DATABASE_URL, keeping history in memory")
		return history.NewMemoryStore(100), nil
	}
	logging.Info("connecting to PostgreSQL...")
	return history.NewPostgres(ctx, cfg.DatabaseURL)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	b, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("drive backend: %w", err)
	}

	idx := index.New(b, index.Config{
		TTL:          cfg.Index.TTL,
		BuildTimeout: cfg.Index.BuildTimeout,
		PageSize:     cfg.Drive.PageSize,
	})

	blobs, err := extract.NewBlobCache(cfg.Drive.BlobCacheDir, cfg.Drive.BlobCacheMB<<20, b,
		func() string { return idx.Stats().DriveID })
	if err != nil {
		return nil, err
	}
	reg := extract.NewRegistry()
	reg.Register(extract.NewText(blobs), models.ExtTXT)

	s, x := cfg.Search, cfg.Extract
	engine := search.New(idx, b, reg, extract.NewSniffCache(x.SniffCacheSize), search.Config{
		Budget:          s.Budget,
		FastBudget:      s.FastBudget,
		Workers:         s.Workers,
		StrictCaps:      search.Caps(s.StrictCaps),
		BroadCaps:       search.Caps(s.BroadCaps),
		BroadPDFNameCap: s.BroadPDFNameCap,
		DeepCapNoName:   s.DeepCapNoName,
		DeepCapName:     s.DeepCapName,
		RemoteLimit:     s.RemoteLimit,
		NameCandidates:  s.NameCandidates,
		NameTop:         s.NameTop,
		PageSize:        cfg.Drive.PageSize,
		PDFSamplePages:  x.PDFSamplePages,
		OCRSamplePages:  x.OCRSamplePages,
		DeepPages:       x.DeepPages,
		OCRStride:       x.OCRStride,
		SampleBytes:     x.SampleBytes,
		UIHost:          cfg.Drive.UIHost,
	})

	hist, err := newHistory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}

	logging.Info("components initialized",
		zap.String("backend", cfg.Drive.Backend),
		zap.Duration("index_ttl", cfg.Index.TTL),
		zap.Int("workers", s.Workers),
	)
	return &app{
		cfg:       cfg,
		drive:     b,
		index:     idx,
		engine:    engine,
		history:   hist,
		formatter: format.New(s.PreviewClip),
	}, nil
}

func (a *app) Close() {
	if err := a.history.Close(); err != nil {
		logging.Warn("close history", zap.Error(err))
	}
	logging.Sync()
}
