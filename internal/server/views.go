package server

import (
	"context"
	"errors"
	"time"

	"quill/internal/imagefetch"
	"quill/internal/store"
)

// postSummary is the list-page shape of a post.
type postSummary struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Excerpt       string     `json:"excerpt"`
	FeaturedImage string     `json:"featured_image,omitempty"`
	Tags          []tagView  `json:"tags"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

// postDetail is the full post payload.
type postDetail struct {
	postSummary
	ContentHTML string         `json:"content_html"`
	Author      string         `json:"author"`
	Comments    []*commentView `json:"comments"`
	Related     []postSummary  `json:"related"`
	Views       int64          `json:"views"`
}

type tagView struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	PostCount int    `json:"post_count,omitempty"`
}

type commentView struct {
	ID         int64          `json:"id"`
	AuthorName string         `json:"author_name"`
	Content    string         `json:"content"`
	CreatedAt  time.Time      `json:"created_at"`
	Replies    []*commentView `json:"replies"`
}

type pageMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPosts int `json:"total_posts"`
	TotalPages int `json:"total_pages"`
}

type postList struct {
	Posts []postSummary `json:"posts"`
	Meta  pageMeta      `json:"meta"`
}

func (s *Server) summarize(ctx context.Context, post *store.Post) (postSummary, error) {
	summary := postSummary{
		ID:          post.ID,
		Title:       post.Title,
		Slug:        post.Slug,
		Excerpt:     post.Excerpt,
		PublishedAt: post.PublishedAt,
		Tags:        []tagView{},
	}

	tags, err := s.store.TagsForPost(ctx, post.ID)
	if err != nil {
		return summary, err
	}
	for _, tag := range tags {
		summary.Tags = append(summary.Tags, tagView{Name: tag.Name, Slug: tag.Slug})
	}

	if post.FeaturedImageID != 0 {
		image, err := s.store.ImageByID(ctx, post.FeaturedImageID)
		if err == nil {
			summary.FeaturedImage = imagefetch.LocalURL(image)
		} else if !errors.Is(err, store.ErrNotFound) {
			return summary, err
		}
	}
	return summary, nil
}

func (s *Server) summarizeAll(ctx context.Context, posts []*store.Post) ([]postSummary, error) {
	summaries := make([]postSummary, 0, len(posts))
	for _, post := range posts {
		summary, err := s.summarize(ctx, post)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// threadComments nests replies under their parents. Replies whose parent is
// missing or unapproved surface as top-level comments instead of vanishing.
func threadComments(comments []*store.Comment) []*commentView {
	views := make(map[int64]*commentView, len(comments))
	for _, comment := range comments {
		views[comment.ID] = &commentView{
			ID:         comment.ID,
			AuthorName: comment.AuthorName,
			Content:    comment.Content,
			CreatedAt:  comment.CreatedAt,
			Replies:    []*commentView{},
		}
	}

	roots := []*commentView{}
	for _, comment := range comments {
		view := views[comment.ID]
		if parent, ok := views[comment.ParentID]; ok && comment.ParentID != 0 {
			parent.Replies = append(parent.Replies, view)
			continue
		}
		roots = append(roots, view)
	}
	return roots
}

func totalPages(total, pageSize int) int {
	if total == 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
