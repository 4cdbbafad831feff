package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quill/internal/config"
	"quill/internal/featured"
	"quill/internal/imagefetch"
	"quill/internal/logging"
	"quill/internal/render"
	"quill/internal/store"
	"quill/internal/urlrepair"
	"quill/internal/watcher"
	"quill/internal/wordpress"
)

// Handlers wires the domain services behind the worker's job kinds.
type Handlers struct {
	cfg       *config.Config
	store     *store.Store
	importer  *wordpress.Importer
	migrator  *imagefetch.Migrator
	extractor *featured.Extractor
	logger    *slog.Logger
}

// NewHandlers builds the handler set for a worker process.
func NewHandlers(cfg *config.Config, st *store.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	renderer := render.New()
	repairer := urlrepair.New(cfg.Import.WordPressHost)
	fetcher := imagefetch.New(st, cfg.Paths.UploadsDir,
		time.Duration(cfg.Worker.DownloadTimeout)*time.Second, logger)
	return &Handlers{
		cfg:       cfg,
		store:     st,
		importer:  wordpress.NewImporter(st, renderer, logger),
		migrator:  imagefetch.NewMigrator(st, fetcher, renderer, repairer, logger),
		extractor: featured.NewExtractor(st, fetcher, repairer, logger),
		logger:    logging.WithComponent(logger, "worker"),
	}
}

// Register installs one handler per job kind on the worker.
func (h *Handlers) Register(w *Worker) {
	w.Register(store.JobImportExport, h.HandleImportExport)
	w.Register(store.JobDownloadImages, h.HandleDownloadImages)
	w.Register(store.JobExtractFeatured, h.HandleExtractFeatured)
}

// HandleImportExport imports the export file named in the payload, or the
// configured export path when the payload carries none.
func (h *Handlers) HandleImportExport(ctx context.Context, job *store.Job) error {
	var payload watcher.ImportPayload
	if job.PayloadJSON != "" {
		if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
			return fmt.Errorf("decode import payload: %w", err)
		}
	}
	path := payload.Path
	if path == "" {
		path = h.cfg.Import.ExportPath
	}
	if path == "" {
		return errors.New("no export path in payload or configuration")
	}

	author, err := h.store.UserByUsername(ctx, h.cfg.Admin.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("default author %q does not exist", h.cfg.Admin.Username)
		}
		return fmt.Errorf("resolve default author: %w", err)
	}

	stats, err := h.importer.ImportFile(ctx, path, author)
	if err != nil {
		return err
	}
	h.logger.Info("export imported",
		logging.String("path", path),
		logging.Int("posts_created", stats.PostsCreated),
		logging.Int("posts_updated", stats.PostsUpdated))
	return nil
}

// HandleDownloadImages localizes remote WordPress images across all posts.
func (h *Handlers) HandleDownloadImages(ctx context.Context, _ *store.Job) error {
	updated, err := h.migrator.Run(ctx)
	if err != nil {
		return err
	}
	h.logger.Info("image download pass finished", logging.Int("posts_updated", updated))
	return nil
}

// HandleExtractFeatured assigns featured images to posts that lack one.
func (h *Handlers) HandleExtractFeatured(ctx context.Context, _ *store.Job) error {
	assigned, err := h.extractor.Run(ctx)
	if err != nil {
		return err
	}
	h.logger.Info("featured extraction finished", logging.Int("posts_assigned", assigned))
	return nil
}
