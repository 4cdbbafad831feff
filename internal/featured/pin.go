package featured

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quill/internal/logging"
	"quill/internal/render"
	"quill/internal/store"
)

// PinResult reports what a Pin pass did.
type PinResult struct {
	Updated  int
	Skipped  int
	NotFound []string
}

// Pinner prepends known image URLs to posts whose content carries no image.
// Covers posts whose featured media existed on WordPress but never appeared
// in the exported content.
type Pinner struct {
	store    *store.Store
	renderer *render.Renderer
	logger   *slog.Logger
}

// NewPinner constructs a Pinner.
func NewPinner(st *store.Store, renderer *render.Renderer, logger *slog.Logger) *Pinner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pinner{
		store:    st,
		renderer: renderer,
		logger:   logging.WithComponent(logger, "featured-pin"),
	}
}

// Pin applies a slug-to-image-URL map. A post already carrying any image in
// its content is skipped, so the pass is idempotent.
func (p *Pinner) Pin(ctx context.Context, pins map[string]string) (*PinResult, error) {
	result := &PinResult{}
	for postSlug, imageURL := range pins {
		post, err := p.store.PostBySlug(ctx, postSlug)
		if errors.Is(err, store.ErrNotFound) {
			result.NotFound = append(result.NotFound, postSlug)
			p.logger.Warn("pinned post not found", logging.String(logging.FieldSlug, postSlug))
			continue
		}
		if err != nil {
			return nil, err
		}

		if FirstImageURL(post.ContentHTML, post.ContentMD) != "" {
			result.Skipped++
			continue
		}

		post.ContentMD = fmt.Sprintf("![](%s)\n\n%s", imageURL, post.ContentMD)
		post.ContentHTML, err = p.renderer.HTML(post.ContentMD)
		if err != nil {
			return nil, fmt.Errorf("render %q: %w", postSlug, err)
		}
		if err := p.store.UpdatePost(ctx, post); err != nil {
			return nil, err
		}
		result.Updated++
		p.logger.Info("pinned image", logging.String(logging.FieldSlug, postSlug))
	}
	return result, nil
}
