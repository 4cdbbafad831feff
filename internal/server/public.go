package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"quill/internal/logging"
	"quill/internal/store"
)

const (
	relatedLimit      = 3
	searchLimit       = 50
	sidebarTagLimit   = 20
	sidebarPostLimit  = 5
	sidebarViewWindow = 30 * 24 * time.Hour
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sidebar struct {
	Tags    []tagView             `json:"tags"`
	Popular []store.PostViewCount `json:"popular"`
}

func (s *Server) buildSidebar(r *http.Request) (*sidebar, error) {
	if cached, err := s.cache.Get("sidebar"); err == nil {
		var side sidebar
		if json.Unmarshal(cached, &side) == nil {
			return &side, nil
		}
	}

	ctx := r.Context()
	side := &sidebar{Tags: []tagView{}, Popular: []store.PostViewCount{}}

	tags, err := s.store.TagsWithPublishedCounts(ctx, sidebarTagLimit)
	if err != nil {
		return nil, err
	}
	for _, tag := range tags {
		side.Tags = append(side.Tags, tagView{Name: tag.Name, Slug: tag.Slug, PostCount: tag.PostCount})
	}

	popular, err := s.store.TopViewedSince(ctx, time.Now().Add(-sidebarViewWindow), sidebarPostLimit)
	if err != nil {
		return nil, err
	}
	side.Popular = popular

	if encoded, err := json.Marshal(side); err == nil {
		if err := s.cache.Set("sidebar", encoded); err != nil {
			s.logger.Warn("cache sidebar", logging.Error(err))
		}
	}
	return side, nil
}

type homePage struct {
	postList
	Sidebar *sidebar `json:"sidebar"`
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := pageParam(r)
	pageSize := s.cfg.Server.PageSize

	total, err := s.store.CountPublished(ctx)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	posts, err := s.store.ListPublished(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	summaries, err := s.summarizeAll(ctx, posts)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	side, err := s.buildSidebar(r)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, homePage{
		postList: postList{
			Posts: summaries,
			Meta: pageMeta{
				Page:       page,
				PageSize:   pageSize,
				TotalPosts: total,
				TotalPages: totalPages(total, pageSize),
			},
		},
		Sidebar: side,
	})
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	admin, err := s.store.UserByUsername(ctx, s.cfg.Admin.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.writeInternalError(w, err)
		return
	}

	total, err := s.store.CountPublished(ctx)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	about := map[string]any{"published_posts": total}
	if admin != nil {
		about["author"] = admin.DisplayName
		about["email"] = admin.Email
	}
	s.writeJSON(w, http.StatusOK, about)
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.TagsWithPublishedCounts(r.Context(), 0)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	views := make([]tagView, 0, len(tags))
	for _, tag := range tags {
		views = append(views, tagView{Name: tag.Name, Slug: tag.Slug, PostCount: tag.PostCount})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tags": views})
}

func (s *Server) handleTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := mux.Vars(r)["slug"]

	tag, err := s.store.TagBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "tag not found")
			return
		}
		s.writeInternalError(w, err)
		return
	}

	page := pageParam(r)
	pageSize := s.cfg.Server.PageSize

	total, err := s.store.CountPublishedByTag(ctx, tag.ID)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	posts, err := s.store.ListPublishedByTag(ctx, tag.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	summaries, err := s.summarizeAll(ctx, posts)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"tag": tagView{Name: tag.Name, Slug: tag.Slug, PostCount: total},
		"posts": postList{
			Posts: summaries,
			Meta: pageMeta{
				Page:       page,
				PageSize:   pageSize,
				TotalPosts: total,
				TotalPages: totalPages(total, pageSize),
			},
		},
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeJSON(w, http.StatusOK, map[string]any{"query": "", "posts": []postSummary{}})
		return
	}

	posts, err := s.store.SearchPublished(r.Context(), query, searchLimit)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	summaries, err := s.summarizeAll(r.Context(), posts)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"query": query, "posts": summaries})
}

func (s *Server) handleCopyLink(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(r.URL.Query().Get("slug"))
	if slug == "" {
		s.writeError(w, http.StatusBadRequest, "slug parameter is required")
		return
	}
	if _, err := s.store.PostBySlug(r.Context(), slug); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "post not found")
			return
		}
		s.writeInternalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"url": absoluteURL(s.cfg.Server.BaseURL, "/"+slug),
	})
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := mux.Vars(r)["slug"]

	post, err := s.store.PostBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "post not found")
			return
		}
		s.writeInternalError(w, err)
		return
	}
	if !post.IsPublished(time.Now()) {
		s.writeError(w, http.StatusNotFound, "post not found")
		return
	}

	summary, err := s.summarize(ctx, post)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	detail := postDetail{postSummary: summary, ContentHTML: post.ContentHTML}

	author, err := s.store.UserByID(ctx, post.AuthorID)
	if err == nil {
		detail.Author = author.DisplayName
	} else if !errors.Is(err, store.ErrNotFound) {
		s.writeInternalError(w, err)
		return
	}

	comments, err := s.store.ApprovedCommentsForPost(ctx, post.ID)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	detail.Comments = threadComments(comments)

	related, err := s.store.RelatedPublished(ctx, post.ID, relatedLimit)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	detail.Related, err = s.summarizeAll(ctx, related)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	views, err := s.store.ViewCountForPost(ctx, post.ID)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	s.recordPageView(ctx, r, post.ID)
	detail.Views = views + 1
	s.writeJSON(w, http.StatusOK, detail)
}

type commentPayload struct {
	PostID      int64  `json:"post_id" validate:"required"`
	ParentID    int64  `json:"parent_id"`
	AuthorName  string `json:"author_name" validate:"required,max=80"`
	AuthorEmail string `json:"author_email" validate:"omitempty,email"`
	Content     string `json:"content" validate:"required,max=4000"`
}

// handleCreateComment accepts a public comment. Comments start out pending
// and stay invisible until approved in the editor.
func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var payload commentPayload
	if !s.decodeBody(w, r, &payload) {
		return
	}

	ctx := r.Context()
	post, err := s.store.PostByID(ctx, payload.PostID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "post not found")
			return
		}
		s.writeInternalError(w, err)
		return
	}
	if !post.IsPublished(time.Now()) {
		s.writeError(w, http.StatusNotFound, "post not found")
		return
	}

	if payload.ParentID != 0 {
		parent, err := s.store.CommentByID(ctx, payload.ParentID)
		if err != nil || parent.PostID != post.ID {
			s.writeError(w, http.StatusBadRequest, "parent comment does not belong to this post")
			return
		}
	}

	comment, err := s.store.CreateComment(ctx, &store.Comment{
		PostID:      post.ID,
		ParentID:    payload.ParentID,
		AuthorName:  payload.AuthorName,
		AuthorEmail: payload.AuthorEmail,
		Content:     payload.Content,
		Status:      store.CommentPending,
	})
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"id":     comment.ID,
		"status": string(comment.Status),
	})
}

func pageParam(r *http.Request) int {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page = parsed
		}
	}
	return page
}

func absoluteURL(base, path string) string {
	return fmt.Sprintf("%s%s", strings.TrimRight(base, "/"), path)
}
