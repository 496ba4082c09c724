// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/odal/internal/apperr"
	"github.com/starford/odal/internal/exiftool"
	"github.com/starford/odal/internal/hasher"
	"github.com/starford/odal/internal/identity"
	"github.com/starford/odal/internal/indexer"
	"github.com/starford/odal/internal/models"
	"github.com/starford/odal/internal/output"
	"github.com/starford/odal/internal/pathinfo"
	"github.com/starford/odal/internal/rename"
	"github.com/starford/odal/internal/sidecar"
	"github.com/starford/odal/internal/watch"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{mode: ModeIndex}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	if app.target == "" {
		return fmt.Errorf("target path is required")
	}

	cfg := app.config

	// Structured JSON logger with a per-run correlation id attached at
	// the boundary.
	runID := uuid.NewString()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	})).With(slog.String("run_id", runID))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("target", app.target),
		slog.String("mode", string(app.mode)),
		slog.Any("algorithms", cfg.Hashing.Algorithms),
		slog.String("identity_algorithm", cfg.Hashing.Identity),
		slog.Bool("recurse", cfg.Traverse.Recurse),
		slog.String("log_level", cfg.App.LogLevel.String()))

	writer := app.writer
	if writer == nil {
		if cfg.Output.Path != "" {
			writer = output.NewFileWriter(cfg.Output.Path)
		} else {
			writer = output.NewStreamWriter(os.Stdout)
		}
	}

	// Destructive preconditions are validated before any processing
	// starts, never after partial destructive work.
	if cfg.Sidecars.Consume && !writer.Durable() {
		return fmt.Errorf("sidecar consume mode: %w", apperr.ErrNoDestination)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch app.mode {
	case ModeIndex:
		_, err := runIndex(ctx, cfg, app, writer, logger, runID)
		return err

	case ModeRename:
		return runRename(ctx, cfg, app, writer, logger, runID)

	case ModeWatch:
		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return watch.Run(gCtx, app.target, logger, func(wCtx context.Context) error {
				_, err := runIndex(wCtx, cfg, app, writer, logger, runID)
				return err
			})
		})
		// Index once up front so the destination is populated before
		// the first change arrives.
		if _, err := runIndex(ctx, cfg, app, writer, logger, runID); err != nil {
			logger.Warn("initial index failed", slog.String("error", err.Error()))
		}
		return g.Wait()
	}
	return fmt.Errorf("unknown mode %q", app.mode)
}

// buildIndexer assembles the engine from configuration.
func buildIndexer(cfg *Config, app *application, logger *slog.Logger, consume bool) (*indexer.Indexer, error) {
	hashes, err := hasher.New(cfg.Hashing.Algorithms)
	if err != nil {
		return nil, err
	}
	if cfg.Hashing.NormalizeNames {
		hashes = hashes.WithNormalization()
	}

	ident, err := identity.New(cfg.Hashing.Identity, cfg.Hashing.NormalizeNames)
	if err != nil {
		return nil, err
	}

	classifier, err := sidecar.NewClassifier(cfg.Sidecars.Table(), logger)
	if err != nil {
		return nil, err
	}

	extValidator, err := pathinfo.NewExtValidator(cfg.Traverse.ExtensionPattern)
	if err != nil {
		return nil, err
	}

	var extractor *exiftool.Extractor
	if cfg.Exif.Enabled {
		extractor = exiftool.New(cfg.Exif.Binary, cfg.Exif.Exclude, logger)
	}

	return indexer.New(indexer.Config{
		Hashes:               hashes,
		Identity:             ident,
		Classifier:           classifier,
		Extractor:            extractor,
		ExtValidator:         extValidator,
		Recurse:              cfg.Traverse.Recurse,
		Workers:              cfg.Traverse.Workers,
		Exclude:              cfg.Traverse.Exclude,
		ConsumeSidecars:      consume,
		RetainSidecarEntries: cfg.Sidecars.RetainEntries,
		Logger:               logger,
		Progress:             app.progress,
	})
}

// runIndex performs one full indexing pass, writes the tree, and — in
// consume mode — applies the queued sidecar deletions only after the
// destination holds the complete tree. A cancelled run discards the
// queue wholesale.
func runIndex(ctx context.Context, cfg *Config, app *application, writer output.Writer, logger *slog.Logger, runID string) (*models.IndexEntry, error) {
	ix, err := buildIndexer(cfg, app, logger, cfg.Sidecars.Consume)
	if err != nil {
		return nil, err
	}

	tree, report, err := ix.Run(ctx, app.target)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("run cancelled, pending deletions discarded")
		}
		return nil, err
	}
	report.RunID = runID

	if err := writer.Write(tree); err != nil {
		return nil, err
	}

	if cfg.Sidecars.Consume {
		for _, p := range ix.PendingDeletions() {
			if err := os.Remove(p); err != nil {
				logger.Warn("consumed sidecar delete failed",
					slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("consumed sidecar deleted", slog.String("path", p))
			}
		}
	}

	logger.Info("index complete",
		slog.Int("discovered", report.Discovered),
		slog.Int("complete", report.Complete),
		slog.Int("degraded", report.Degraded),
		slog.Int("skipped", report.Skipped),
		slog.Duration("elapsed", report.Elapsed))
	return tree, nil
}

// runRename indexes the target, then computes and executes the rename
// plan against the assembled tree.
func runRename(ctx context.Context, cfg *Config, app *application, writer output.Writer, logger *slog.Logger, runID string) error {
	tree, err := runIndex(ctx, cfg, app, writer, logger, runID)
	if err != nil {
		return err
	}

	info, err := pathinfo.Resolve(app.target)
	if err != nil {
		return err
	}

	engine := rename.New(logger, cfg.Rename.Apply)
	ops, err := engine.Plan(info.Abs, tree)
	if err != nil {
		return err
	}
	renamed, err := engine.Execute(ops)
	if err != nil {
		return err
	}

	logger.Info("rename complete",
		slog.Int("planned", len(ops)),
		slog.Int("renamed", renamed),
		slog.Bool("apply", cfg.Rename.Apply))
	return nil
}
