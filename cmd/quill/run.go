package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/server"
	"quill/internal/store"
	"quill/internal/watcher"
	"quill/internal/worker"
)

const shutdownGrace = 10 * time.Second

// runServer serves HTTP until ctx is canceled.
func runServer(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) error {
	var pageCache *cache.Cache
	if cfg.Cache.Enabled {
		opened, err := cache.Open(cfg.CachePath(), time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer opened.Close()
		pageCache = opened
	}

	srv := server.New(cfg, st, pageCache, logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runWorker drains background jobs and watches the import drop directory
// until ctx is canceled.
func runWorker(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) error {
	w := worker.New(cfg, st, logger)
	worker.NewHandlers(cfg, st, logger).Register(w)
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	if cfg.Paths.ImportDropDir != "" {
		dropWatcher := watcher.New(st, cfg.Paths.ImportDropDir, logger)
		if err := dropWatcher.Start(ctx); err != nil {
			logger.Warn("import drop watcher unavailable", logging.Error(err))
		} else {
			defer dropWatcher.Stop()
		}
	}

	<-ctx.Done()
	return nil
}
