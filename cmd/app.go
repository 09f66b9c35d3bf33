package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/h4x3rotab/repoview/internal/cache"
	"github.com/h4x3rotab/repoview/internal/config"
	"github.com/h4x3rotab/repoview/internal/ignore"
	"github.com/h4x3rotab/repoview/internal/logging"
	"github.com/h4x3rotab/repoview/internal/metrics"
	"github.com/h4x3rotab/repoview/internal/renderer"
	"github.com/h4x3rotab/repoview/internal/scanner"
	"github.com/h4x3rotab/repoview/internal/validation"
)

// app holds the components shared by serve and check.
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	sandbox  *validation.Sandbox
	ignore   *ignore.Matcher
	renderer *renderer.Renderer
	markdown *cache.CachedMarkdown
	scanner  *scanner.Scanner
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := newLogger(cfg)

	sandbox, err := validation.NewSandbox(cfg.Repo)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	matcher, err := ignore.Load(sandbox.Root())
	if err != nil {
		logger.Warn(ctx, err, "ignoring unreadable .gitignore")
	}

	r := renderer.New(renderer.WithCodeStyle(cfg.Render.CodeStyle))
	var lru *cache.LRU
	if cfg.Render.CacheBytes > 0 {
		lru = cache.New(cfg.Render.CacheBytes)
	}
	md := cache.NewMarkdown(r, lru)

	sc := scanner.New(scanner.Options{
		Sandbox:   sandbox,
		Markdown:  md,
		IsIgnored: matcher.Ignores,
		Logger:    logger,
		OnComplete: func(result *scanner.ScanResult, err error, elapsed time.Duration) {
			files, broken := 0, 0
			if result != nil {
				files, broken = result.FilesScanned, len(result.Broken)
			}
			metrics.RecordScan(files, broken, elapsed, err)
		},
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		sandbox:  sandbox,
		ignore:   matcher,
		renderer: r,
		markdown: md,
		scanner:  sc,
	}, nil
}

func (a *app) scanOptions() scanner.ScanOptions {
	return scanner.ScanOptions{
		MaxFiles:        a.cfg.Scan.MaxFiles,
		MaxBytesPerFile: a.cfg.Scan.MaxBytesPerFile,
		Concurrency:     a.cfg.Scan.Concurrency,
	}
}
