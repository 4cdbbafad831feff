// Package server exposes the public blog API and the session-authenticated
// editor API over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/imagefetch"
	"quill/internal/logging"
	"quill/internal/render"
	"quill/internal/store"
)

const sessionName = "quill_session"

// Server handles HTTP traffic for the blog.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	cache    *cache.Cache
	renderer *render.Renderer
	fetcher  *imagefetch.Fetcher
	sessions *sessions.CookieStore
	validate *validator.Validate
	logger   *slog.Logger

	router     *mux.Router
	httpServer *http.Server
	listener   net.Listener
}

// New wires the server. The cache may be nil when caching is disabled.
func New(cfg *config.Config, st *store.Store, c *cache.Cache, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	cookieStore := sessions.NewCookieStore([]byte(cfg.Server.SessionSecret))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		cfg:      cfg,
		store:    st,
		cache:    c,
		renderer: render.New(),
		fetcher:  imagefetch.New(st, cfg.Paths.UploadsDir, 30*time.Second, logger),
		sessions: cookieStore,
		validate: validator.New(),
		logger:   logging.WithComponent(logger, "server"),
	}
	s.router = s.routes()

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recoverMiddleware, s.logMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/about", s.handleAbout).Methods(http.MethodGet)
	r.HandleFunc("/tags", s.handleTags).Methods(http.MethodGet)
	r.HandleFunc("/tag/{slug}", s.handleTag).Methods(http.MethodGet)
	r.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/feed", s.handleFeed).Methods(http.MethodGet)
	r.HandleFunc("/sitemap.xml", s.handleSitemap).Methods(http.MethodGet)
	r.HandleFunc("/api/copy-link", s.handleCopyLink).Methods(http.MethodGet)
	r.HandleFunc("/comments", s.handleCreateComment).Methods(http.MethodPost)

	uploads := http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.cfg.Paths.UploadsDir)))
	r.PathPrefix("/uploads/").Handler(uploads).Methods(http.MethodGet)

	editor := r.PathPrefix("/editor").Subrouter()
	editor.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	editor.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	authed := editor.NewRoute().Subrouter()
	authed.Use(s.requireEditor)
	authed.HandleFunc("/posts", s.handleEditorListPosts).Methods(http.MethodGet)
	authed.HandleFunc("/posts", s.handleEditorCreatePost).Methods(http.MethodPost)
	authed.HandleFunc("/posts/{id:[0-9]+}", s.handleEditorGetPost).Methods(http.MethodGet)
	authed.HandleFunc("/posts/{id:[0-9]+}", s.handleEditorUpdatePost).Methods(http.MethodPut)
	authed.HandleFunc("/posts/{id:[0-9]+}", s.handleEditorDeletePost).Methods(http.MethodDelete)
	authed.HandleFunc("/preview", s.handleEditorPreview).Methods(http.MethodPost)
	authed.HandleFunc("/images", s.handleEditorListImages).Methods(http.MethodGet)
	authed.HandleFunc("/images", s.handleEditorUploadImage).Methods(http.MethodPost)

	// Post detail is the catch-all and must come after every fixed route.
	r.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	r.HandleFunc("/{slug}", s.handlePost).Methods(http.MethodGet)
	return r
}

// Start binds the configured address and serves until Shutdown. It returns
// once the listener is accepting connections.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Server.Bind)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.cfg.Server.Bind, err)
	}
	s.listener = listener
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", logging.Error(err))
		}
	}()

	s.logger.Info("http server listening", logging.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound address, useful when the config asked for port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
