package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"quill/internal/imagefetch"
	"quill/internal/logging"
	"quill/internal/render"
	"quill/internal/slug"
	"quill/internal/store"
)

const maxUploadBytes = 25 << 20

type loginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if !s.decodeBody(w, r, &payload) {
		return
	}

	user, err := s.store.UserByUsername(r.Context(), payload.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.writeInternalError(w, err)
		return
	}
	if !user.IsAdmin {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	session, _ := s.sessions.Get(r, sessionName)
	session.Values["user_id"] = user.ID
	if err := session.Save(r, w); err != nil {
		s.writeInternalError(w, err)
		return
	}

	s.logger.Info("editor login", logging.String("username", user.Username))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"username":     user.Username,
		"display_name": user.DisplayName,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessions.Get(r, sessionName)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		s.writeInternalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// requireEditor gates the editor API behind a valid admin session.
func (s *Server) requireEditor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessions.Get(r, sessionName)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		userID, ok := session.Values["user_id"].(int64)
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		user, err := s.store.UserByID(r.Context(), userID)
		if err != nil || !user.IsAdmin {
			s.writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type postPayload struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Slug        string   `json:"slug" validate:"omitempty,max=80"`
	ContentMD   string   `json:"content_md" validate:"required"`
	Excerpt     string   `json:"excerpt" validate:"omitempty,max=500"`
	Status      string   `json:"status" validate:"required,oneof=draft scheduled published"`
	Tags        []string `json:"tags" validate:"omitempty,dive,required"`
	PublishedAt string   `json:"published_at" validate:"omitempty"`
}

func (s *Server) handleEditorListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.store.ListPosts(r.Context())
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	type editorPost struct {
		ID          int64      `json:"id"`
		Title       string     `json:"title"`
		Slug        string     `json:"slug"`
		Status      string     `json:"status"`
		PublishedAt *time.Time `json:"published_at,omitempty"`
		UpdatedAt   time.Time  `json:"updated_at"`
	}
	views := make([]editorPost, 0, len(posts))
	for _, post := range posts {
		views = append(views, editorPost{
			ID:          post.ID,
			Title:       post.Title,
			Slug:        post.Slug,
			Status:      string(post.Status),
			PublishedAt: post.PublishedAt,
			UpdatedAt:   post.UpdatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"posts": views})
}

func (s *Server) handleEditorCreatePost(w http.ResponseWriter, r *http.Request) {
	var payload postPayload
	if !s.decodeBody(w, r, &payload) {
		return
	}
	ctx := r.Context()

	admin, err := s.store.UserByUsername(ctx, s.cfg.Admin.Username)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	candidate := payload.Slug
	if candidate == "" {
		candidate = slug.Make(payload.Title)
	}
	unique, err := slug.Unique(ctx, s.store, candidate, 0)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	post := &store.Post{
		Title:     payload.Title,
		Slug:      unique,
		ContentMD: payload.ContentMD,
		Status:    store.PostStatus(payload.Status),
		AuthorID:  admin.ID,
	}
	if err := s.applyContent(post, &payload); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.store.CreatePost(ctx, post)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	if err := s.replaceTags(ctx, created.ID, payload.Tags); err != nil {
		s.writeInternalError(w, err)
		return
	}

	s.flushCache()
	s.writeJSON(w, http.StatusCreated, map[string]any{"id": created.ID, "slug": created.Slug})
}

func (s *Server) handleEditorGetPost(w http.ResponseWriter, r *http.Request) {
	post, ok := s.editorPost(w, r)
	if !ok {
		return
	}
	tags, err := s.store.TagsForPost(r.Context(), post.ID)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":           post.ID,
		"title":        post.Title,
		"slug":         post.Slug,
		"content_md":   post.ContentMD,
		"content_html": post.ContentHTML,
		"excerpt":      post.Excerpt,
		"status":       string(post.Status),
		"tags":         names,
		"published_at": post.PublishedAt,
	})
}

func (s *Server) handleEditorUpdatePost(w http.ResponseWriter, r *http.Request) {
	post, ok := s.editorPost(w, r)
	if !ok {
		return
	}
	var payload postPayload
	if !s.decodeBody(w, r, &payload) {
		return
	}
	ctx := r.Context()

	if payload.Slug != "" && payload.Slug != post.Slug {
		unique, err := slug.Unique(ctx, s.store, payload.Slug, post.ID)
		if err != nil {
			s.writeInternalError(w, err)
			return
		}
		post.Slug = unique
	}

	post.Title = payload.Title
	post.ContentMD = payload.ContentMD
	post.Status = store.PostStatus(payload.Status)
	if err := s.applyContent(post, &payload); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.UpdatePost(ctx, post); err != nil {
		s.writeInternalError(w, err)
		return
	}
	if err := s.replaceTags(ctx, post.ID, payload.Tags); err != nil {
		s.writeInternalError(w, err)
		return
	}

	s.flushCache()
	s.writeJSON(w, http.StatusOK, map[string]any{"id": post.ID, "slug": post.Slug})
}

func (s *Server) handleEditorDeletePost(w http.ResponseWriter, r *http.Request) {
	post, ok := s.editorPost(w, r)
	if !ok {
		return
	}
	if err := s.store.DeletePost(r.Context(), post.ID); err != nil {
		s.writeInternalError(w, err)
		return
	}
	s.flushCache()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type previewPayload struct {
	ContentMD string `json:"content_md" validate:"required"`
}

func (s *Server) handleEditorPreview(w http.ResponseWriter, r *http.Request) {
	var payload previewPayload
	if !s.decodeBody(w, r, &payload) {
		return
	}
	html, err := s.renderer.HTML(payload.ContentMD)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not render markdown")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"content_html": html})
}

func (s *Server) handleEditorListImages(w http.ResponseWriter, r *http.Request) {
	images, err := s.store.ListImages(r.Context())
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	type imageView struct {
		ID           int64  `json:"id"`
		URL          string `json:"url"`
		OriginalName string `json:"original_name"`
		SizeBytes    int64  `json:"size_bytes"`
	}
	views := make([]imageView, 0, len(images))
	for _, image := range images {
		views = append(views, imageView{
			ID:           image.ID,
			URL:          imagefetch.LocalURL(image),
			OriginalName: image.OriginalName,
			SizeBytes:    image.SizeBytes,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"images": views})
}

func (s *Server) handleEditorUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	image, err := s.fetcher.Save(r.Context(), filepath.Base(header.Filename), data)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"id":  image.ID,
		"url": imagefetch.LocalURL(image),
	})
}

// editorPost loads the post named in the route. On failure a response has
// been written and ok is false.
func (s *Server) editorPost(w http.ResponseWriter, r *http.Request) (*store.Post, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid post id")
		return nil, false
	}
	post, err := s.store.PostByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "post not found")
			return nil, false
		}
		s.writeInternalError(w, err)
		return nil, false
	}
	return post, true
}

// applyContent renders markdown, fills the excerpt, and resolves the publish
// timestamp from the payload.
func (s *Server) applyContent(post *store.Post, payload *postPayload) error {
	html, err := s.renderer.HTML(payload.ContentMD)
	if err != nil {
		return errors.New("could not render markdown")
	}
	post.ContentHTML = html

	post.Excerpt = payload.Excerpt
	if post.Excerpt == "" {
		post.Excerpt = render.Excerpt(payload.ContentMD, 200)
	}

	if payload.PublishedAt != "" {
		published, err := time.Parse(time.RFC3339, payload.PublishedAt)
		if err != nil {
			return errors.New("published_at must be RFC 3339")
		}
		published = published.UTC()
		post.PublishedAt = &published
	}
	if post.Status == store.PostPublished && post.PublishedAt == nil {
		now := time.Now().UTC()
		post.PublishedAt = &now
	}
	return nil
}

func (s *Server) replaceTags(ctx context.Context, postID int64, names []string) error {
	tagIDs := make([]int64, 0, len(names))
	for _, name := range names {
		tag, _, err := s.store.GetOrCreateTag(ctx, slug.Make(name), name, 0)
		if err != nil {
			return err
		}
		tagIDs = append(tagIDs, tag.ID)
	}
	return s.store.ReplacePostTags(ctx, postID, tagIDs)
}

// flushCache clears cached fragments after any editor mutation.
func (s *Server) flushCache() {
	if err := s.cache.InvalidateAll(); err != nil {
		s.logger.Warn("cache flush", logging.Error(err))
	}
}
