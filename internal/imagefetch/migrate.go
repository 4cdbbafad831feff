package imagefetch

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"quill/internal/logging"
	"quill/internal/render"
	"quill/internal/store"
	"quill/internal/urlrepair"
)

var (
	markdownImagePattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)
	htmlImagePattern     = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)
)

// Migrator localizes remote image references: every image on the origin host
// is downloaded into uploads and the post content rewritten to the local URL.
// Posts whose content does not change are not saved, so repeat runs stop
// doing work once everything is local.
type Migrator struct {
	store    *store.Store
	fetcher  *Fetcher
	renderer *render.Renderer
	repairer *urlrepair.Repairer
	logger   *slog.Logger
}

// NewMigrator constructs a Migrator.
func NewMigrator(st *store.Store, fetcher *Fetcher, renderer *render.Renderer, repairer *urlrepair.Repairer, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Migrator{
		store:    st,
		fetcher:  fetcher,
		renderer: renderer,
		repairer: repairer,
		logger:   logging.WithComponent(logger, "image-migrate"),
	}
}

// Run processes every post and returns the number of images downloaded.
func (m *Migrator) Run(ctx context.Context) (int, error) {
	posts, err := m.store.ListPosts(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		downloaded, err := m.ProcessPost(ctx, post)
		if err != nil {
			return total, fmt.Errorf("migrate images for %q: %w", post.Slug, err)
		}
		total += downloaded
	}
	m.logger.Info("image migration complete",
		logging.Int("posts", len(posts)),
		logging.Int("downloaded", total))
	return total, nil
}

// ProcessPost downloads the post's origin-host images and rewrites content
// references. Returns how many images were fetched.
func (m *Migrator) ProcessPost(ctx context.Context, post *store.Post) (int, error) {
	urls := m.collectURLs(post.ContentMD)
	if len(urls) == 0 {
		return 0, nil
	}

	downloaded := 0
	content := post.ContentMD
	for _, rawURL := range urls {
		target := m.repairer.CanonicalUploadsURL(rawURL)
		if target == "" || !strings.HasPrefix(target, "http") {
			continue
		}
		image, err := m.fetcher.Fetch(ctx, target)
		if err != nil {
			m.logger.Warn("image download failed",
				logging.Int64(logging.FieldPostID, post.ID),
				logging.String("url", target),
				logging.Error(err))
			continue
		}
		content = strings.ReplaceAll(content, rawURL, LocalURL(image))
		downloaded++
	}

	if content == post.ContentMD {
		return downloaded, nil
	}

	post.ContentMD = content
	html, err := m.renderer.HTML(content)
	if err != nil {
		return downloaded, err
	}
	post.ContentHTML = html
	if err := m.store.UpdatePost(ctx, post); err != nil {
		return downloaded, err
	}
	return downloaded, nil
}

// collectURLs returns image URLs in content that reference the origin host.
// Already-local /uploads/ references stay untouched.
func (m *Migrator) collectURLs(content string) []string {
	seen := make(map[string]struct{})
	var urls []string
	add := func(url string) {
		if _, dup := seen[url]; dup {
			return
		}
		if m.repairer.Host() == "" || !strings.Contains(url, m.repairer.Host()) {
			return
		}
		seen[url] = struct{}{}
		urls = append(urls, url)
	}
	for _, match := range markdownImagePattern.FindAllStringSubmatch(content, -1) {
		add(match[1])
	}
	for _, match := range htmlImagePattern.FindAllStringSubmatch(content, -1) {
		add(match[1])
	}
	return urls
}
