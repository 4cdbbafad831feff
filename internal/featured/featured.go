// Package featured assigns featured images to posts by pulling the first
// image referenced in their content. Posts that already carry a featured
// image are never touched.
package featured

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"quill/internal/imagefetch"
	"quill/internal/logging"
	"quill/internal/store"
	"quill/internal/urlrepair"
)

var (
	htmlImagePattern     = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)
	markdownImagePattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)
)

// FirstImageURL returns the first image URL referenced in HTML or markdown
// content, preferring the HTML since imported posts carry images there.
func FirstImageURL(contentHTML, contentMD string) string {
	if match := htmlImagePattern.FindStringSubmatch(contentHTML); match != nil {
		return match[1]
	}
	if match := markdownImagePattern.FindStringSubmatch(contentMD); match != nil {
		return match[1]
	}
	return ""
}

// Extractor walks posts without a featured image and assigns one.
type Extractor struct {
	store    *store.Store
	fetcher  *imagefetch.Fetcher
	repairer *urlrepair.Repairer
	logger   *slog.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(st *store.Store, fetcher *imagefetch.Fetcher, repairer *urlrepair.Repairer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		store:    st,
		fetcher:  fetcher,
		repairer: repairer,
		logger:   logging.WithComponent(logger, "featured"),
	}
}

// Run processes every post lacking a featured image and returns how many
// were assigned. Posts without any image in their content are skipped, as
// are images that cannot be downloaded; both are left for a later run.
func (e *Extractor) Run(ctx context.Context) (int, error) {
	assigned, _, err := e.run(ctx, true)
	return assigned, err
}

// RunLocal assigns featured images that resolve from already stored uploads
// without touching the network. The second result counts posts whose first
// image would need a remote download.
func (e *Extractor) RunLocal(ctx context.Context) (int, int, error) {
	return e.run(ctx, false)
}

func (e *Extractor) run(ctx context.Context, fetchRemote bool) (int, int, error) {
	posts, err := e.store.ListPostsWithoutFeaturedImage(ctx)
	if err != nil {
		return 0, 0, err
	}

	assigned := 0
	remote := 0
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return assigned, remote, err
		}
		ok, needsFetch, err := e.processPost(ctx, post, fetchRemote)
		if err != nil {
			return assigned, remote, err
		}
		if ok {
			assigned++
		}
		if needsFetch {
			remote++
		}
	}
	e.logger.Info("featured extraction complete",
		logging.Int("candidates", len(posts)),
		logging.Int("assigned", assigned),
		logging.Int("remote_pending", remote))
	return assigned, remote, nil
}

func (e *Extractor) processPost(ctx context.Context, post *store.Post, fetchRemote bool) (bool, bool, error) {
	rawURL := FirstImageURL(post.ContentHTML, post.ContentMD)
	if rawURL == "" {
		return false, false, nil
	}

	// Images already downloaded into uploads resolve without touching the
	// network or the media host.
	if name := localUploadName(rawURL); name != "" {
		image, err := e.store.ImageByOriginalName(ctx, name)
		if err == nil {
			if err := e.store.SetFeaturedImage(ctx, post.ID, image.ID); err != nil {
				return false, false, err
			}
			return true, false, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return false, false, err
		}
	}

	imageURL := e.repairer.CanonicalUploadsURL(rawURL)
	if imageURL == "" {
		return false, false, nil
	}
	if !fetchRemote {
		return false, true, nil
	}

	image, err := e.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		e.logger.Warn("could not resolve featured image",
			logging.Int64(logging.FieldPostID, post.ID),
			logging.String("url", imageURL),
			logging.Error(err))
		return false, false, nil
	}

	if err := e.store.SetFeaturedImage(ctx, post.ID, image.ID); err != nil {
		return false, false, err
	}
	e.logger.Info("assigned featured image",
		logging.Int64(logging.FieldPostID, post.ID),
		logging.String(logging.FieldSlug, post.Slug),
		logging.String("file", image.FilePath))
	return true, false, nil
}

var uploadNamePattern = regexp.MustCompile(`^/uploads/.*/([^/]+)$`)

func localUploadName(imageURL string) string {
	if match := uploadNamePattern.FindStringSubmatch(imageURL); match != nil {
		return match[1]
	}
	return ""
}
