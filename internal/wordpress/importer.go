package wordpress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quill/internal/logging"
	"quill/internal/render"
	"quill/internal/slug"
	"quill/internal/store"
)

// Stats summarizes one import run.
type Stats struct {
	TagsCreated     int
	PostsCreated    int
	PostsUpdated    int
	CommentsCreated int
}

// Importer writes parsed exports into the store.
type Importer struct {
	store    *store.Store
	renderer *render.Renderer
	logger   *slog.Logger
}

// NewImporter constructs an Importer.
func NewImporter(st *store.Store, renderer *render.Renderer, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Importer{
		store:    st,
		renderer: renderer,
		logger:   logging.WithComponent(logger, "wordpress-import"),
	}
}

// ImportFile parses the export at path and imports it. The defaultAuthor owns
// posts whose WordPress author has no wp:author entry.
func (i *Importer) ImportFile(ctx context.Context, path string, defaultAuthor *store.User) (*Stats, error) {
	export, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	i.logger.Info("parsed export",
		logging.String("path", path),
		logging.Int("posts", len(export.Posts)),
		logging.Int("tags", len(export.Tags)),
		logging.Int("authors", len(export.Authors)))
	return i.Import(ctx, export, defaultAuthor)
}

// Import writes an export into the store. Safe to run repeatedly: posts,
// tags, and comments are matched by their WordPress IDs and updated in place.
func (i *Importer) Import(ctx context.Context, export *Export, defaultAuthor *store.User) (*Stats, error) {
	if defaultAuthor == nil {
		return nil, errors.New("default author is required")
	}
	stats := &Stats{}

	authors, err := i.importAuthors(ctx, export.Authors)
	if err != nil {
		return nil, err
	}

	tags, err := i.importTags(ctx, export.Tags, stats)
	if err != nil {
		return nil, err
	}

	for _, exportPost := range export.Posts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := i.importPost(ctx, exportPost, authors, tags, defaultAuthor, stats); err != nil {
			return nil, fmt.Errorf("import post %q: %w", exportPost.Title, err)
		}
	}

	i.logger.Info("import complete",
		logging.Int("tags_created", stats.TagsCreated),
		logging.Int("posts_created", stats.PostsCreated),
		logging.Int("posts_updated", stats.PostsUpdated),
		logging.Int("comments_created", stats.CommentsCreated))
	return stats, nil
}

func (i *Importer) importAuthors(ctx context.Context, exportAuthors []ExportAuthor) (map[string]*store.User, error) {
	authors := make(map[string]*store.User, len(exportAuthors))
	for _, author := range exportAuthors {
		user, _, err := i.store.GetOrCreateUser(ctx, author.Login, &store.User{
			Email:       author.Email,
			DisplayName: author.DisplayName,
		})
		if err != nil {
			return nil, fmt.Errorf("import author %q: %w", author.Login, err)
		}
		authors[author.Login] = user
	}
	return authors, nil
}

func (i *Importer) importTags(ctx context.Context, exportTags []ExportTag, stats *Stats) (map[string]*store.Tag, error) {
	tags := make(map[string]*store.Tag, len(exportTags))
	for _, exportTag := range exportTags {
		tag, created, err := i.store.GetOrCreateTag(ctx, exportTag.Slug, exportTag.Name, exportTag.TermID)
		if err != nil {
			return nil, fmt.Errorf("import tag %q: %w", exportTag.Slug, err)
		}
		if created {
			stats.TagsCreated++
		}
		tags[exportTag.Slug] = tag
	}
	return tags, nil
}

func (i *Importer) importPost(
	ctx context.Context,
	exportPost ExportPost,
	authors map[string]*store.User,
	tags map[string]*store.Tag,
	defaultAuthor *store.User,
	stats *Stats,
) error {
	author, ok := authors[exportPost.Author]
	if !ok {
		author = defaultAuthor
	}

	contentMD := HTMLToMarkdown(exportPost.ContentHTML)
	contentHTML, err := i.renderer.HTML(contentMD)
	if err != nil {
		return err
	}
	excerpt := strings.TrimSpace(exportPost.Excerpt)
	if excerpt == "" {
		excerpt = render.Excerpt(contentMD, 200)
	}

	existing, err := i.store.PostByWPID(ctx, exportPost.ID)
	switch {
	case err == nil:
		existing.Title = exportPost.Title
		existing.ContentMD = contentMD
		existing.ContentHTML = contentHTML
		existing.Excerpt = excerpt
		existing.Status = store.PostStatus(exportPost.Status)
		existing.AuthorID = author.ID
		existing.PublishedAt = exportPost.PublishedAt
		if err := i.store.UpdatePost(ctx, existing); err != nil {
			return err
		}
		stats.PostsUpdated++
		return i.finishPost(ctx, existing, exportPost, tags, stats)

	case errors.Is(err, store.ErrNotFound):
		postSlug := exportPost.Slug
		if postSlug == "" {
			postSlug = slug.Make(exportPost.Title)
		}
		postSlug, err = slug.Unique(ctx, i.store, postSlug, 0)
		if err != nil {
			return err
		}
		created, err := i.store.CreatePost(ctx, &store.Post{
			Title:       exportPost.Title,
			Slug:        postSlug,
			ContentMD:   contentMD,
			ContentHTML: contentHTML,
			Excerpt:     excerpt,
			Status:      store.PostStatus(exportPost.Status),
			AuthorID:    author.ID,
			PublishedAt: exportPost.PublishedAt,
			WPPostID:    exportPost.ID,
		})
		if err != nil {
			return err
		}
		stats.PostsCreated++
		i.logger.Debug("created post",
			logging.Int64(logging.FieldPostID, created.ID),
			logging.String(logging.FieldSlug, created.Slug))
		return i.finishPost(ctx, created, exportPost, tags, stats)

	default:
		return err
	}
}

func (i *Importer) finishPost(
	ctx context.Context,
	post *store.Post,
	exportPost ExportPost,
	tags map[string]*store.Tag,
	stats *Stats,
) error {
	for _, tagSlug := range exportPost.Tags {
		tag, ok := tags[tagSlug]
		if !ok {
			continue
		}
		if err := i.store.AttachTag(ctx, post.ID, tag.ID); err != nil {
			return err
		}
	}

	// WordPress comment IDs map to local IDs so parent links resolve even
	// when parents were imported on an earlier run.
	localIDs := make(map[int64]int64, len(exportPost.Comments))
	for _, exportComment := range exportPost.Comments {
		existing, err := i.store.CommentByWPID(ctx, exportComment.ID)
		if err == nil {
			localIDs[exportComment.ID] = existing.ID
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		var parentID int64
		if exportComment.ParentID != 0 {
			parentID = localIDs[exportComment.ParentID]
		}
		comment := &store.Comment{
			PostID:      post.ID,
			ParentID:    parentID,
			AuthorName:  exportComment.AuthorName,
			AuthorEmail: exportComment.AuthorEmail,
			Content:     exportComment.Content,
			Status:      store.CommentStatus(exportComment.Status),
			WPCommentID: exportComment.ID,
		}
		if exportComment.CreatedAt != nil {
			comment.CreatedAt = *exportComment.CreatedAt
		}
		created, err := i.store.CreateComment(ctx, comment)
		if err != nil {
			return err
		}
		localIDs[exportComment.ID] = created.ID
		stats.CommentsCreated++
	}
	return nil
}
