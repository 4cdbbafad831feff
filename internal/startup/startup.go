// Package startup runs the deployment sequence: admin bootstrap, the
// first-boot WordPress import, content URL repair, and featured image
// extraction. Every step is idempotent so the sequence can run on each boot.
package startup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"quill/internal/config"
	"quill/internal/featured"
	"quill/internal/imagefetch"
	"quill/internal/logging"
	"quill/internal/render"
	"quill/internal/store"
	"quill/internal/urlrepair"
	"quill/internal/wordpress"
)

// Report summarizes what the startup sequence did.
type Report struct {
	AdminCreated     bool
	Imported         bool
	ImportStats      *wordpress.Stats
	URLsRepaired     int
	FeaturedAssigned int
	RemotePending    int
	JobsEnqueued     []string
}

// Runner executes the startup sequence against an opened store.
type Runner struct {
	cfg      *config.Config
	store    *store.Store
	renderer *render.Renderer
	repairer *urlrepair.Repairer
	logger   *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(cfg *config.Config, st *store.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		store:    st,
		renderer: render.New(),
		repairer: urlrepair.New(cfg.Import.WordPressHost),
		logger:   logging.WithComponent(logger, "startup"),
	}
}

// Run executes the sequence and stops at the first failing step.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	admin, created, err := EnsureAdmin(ctx, r.store, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("ensure admin: %w", err)
	}
	report.AdminCreated = created
	if created {
		r.logger.Info("created admin user", logging.String("username", admin.Username))
	}

	if err := r.maybeImport(ctx, admin, report); err != nil {
		return nil, fmt.Errorf("import export: %w", err)
	}

	repaired, err := r.repairURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("repair urls: %w", err)
	}
	report.URLsRepaired = repaired

	if err := r.extractFeatured(ctx, report); err != nil {
		return nil, fmt.Errorf("extract featured images: %w", err)
	}

	return report, nil
}

// EnsureAdmin creates the configured admin user if it does not exist. An
// existing user is returned untouched, so a changed configured password never
// rewrites the stored hash.
func EnsureAdmin(ctx context.Context, st *store.Store, cfg *config.Config) (*store.User, bool, error) {
	existing, err := st.UserByUsername(ctx, cfg.Admin.Username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	if cfg.Admin.Password == "" {
		return nil, false, fmt.Errorf("admin user %q does not exist and no password is configured", cfg.Admin.Username)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, err
	}

	user, err := st.CreateUser(ctx, &store.User{
		Username:     cfg.Admin.Username,
		Email:        cfg.Admin.Email,
		DisplayName:  cfg.Admin.Username,
		PasswordHash: string(hash),
		IsAdmin:      true,
	})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// maybeImport runs the WordPress import only on an empty posts table, and
// only when the configured export file is actually present.
func (r *Runner) maybeImport(ctx context.Context, admin *store.User, report *Report) error {
	count, err := r.store.CountPosts(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		r.logger.Info("skipping import, posts already exist", logging.Int("posts", count))
		return nil
	}

	path := r.cfg.Import.ExportPath
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		r.logger.Info("no export file found, skipping import", logging.String("path", path))
		return nil
	}

	importer := wordpress.NewImporter(r.store, r.renderer, r.logger)
	stats, err := importer.ImportFile(ctx, path, admin)
	if err != nil {
		return err
	}
	report.Imported = true
	report.ImportStats = stats
	return nil
}

// repairURLs collapses corrupted WordPress upload URLs in every post's
// markdown and re-renders the HTML of the ones that changed.
func (r *Runner) repairURLs(ctx context.Context) (int, error) {
	if r.repairer.Host() == "" {
		return 0, nil
	}

	posts, err := r.store.ListPosts(ctx)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		collapsed := r.repairer.Collapse(post.ContentMD)
		if collapsed == post.ContentMD {
			continue
		}
		html, err := r.renderer.HTML(collapsed)
		if err != nil {
			return repaired, fmt.Errorf("render post %q: %w", post.Slug, err)
		}
		post.ContentMD = collapsed
		post.ContentHTML = html
		if err := r.store.UpdatePost(ctx, post); err != nil {
			return repaired, err
		}
		repaired++
		r.logger.Info("repaired corrupted urls",
			logging.Int64(logging.FieldPostID, post.ID),
			logging.String(logging.FieldSlug, post.Slug))
	}
	return repaired, nil
}

// extractFeatured resolves featured images from already stored uploads and
// hands remote downloads to the worker queue.
func (r *Runner) extractFeatured(ctx context.Context, report *Report) error {
	fetcher := imagefetch.New(r.store, r.cfg.Paths.UploadsDir,
		time.Duration(r.cfg.Worker.DownloadTimeout)*time.Second, r.logger)
	extractor := featured.NewExtractor(r.store, fetcher, r.repairer, r.logger)

	assigned, remote, err := extractor.RunLocal(ctx)
	if err != nil {
		return err
	}
	report.FeaturedAssigned = assigned
	report.RemotePending = remote

	if remote == 0 {
		return nil
	}
	for _, kind := range []string{store.JobDownloadImages, store.JobExtractFeatured} {
		if _, err := r.store.EnqueueJob(ctx, kind, ""); err != nil {
			return err
		}
		report.JobsEnqueued = append(report.JobsEnqueued, kind)
	}
	return nil
}
