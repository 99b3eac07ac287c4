// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects storage, the identity
// registry, services, handlers and middleware, and it decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → storage (sqlite | firestore) ─┬→ WishlistService → Wishlist/Shared/Preview handlers
//	                                              └→ identity.Registry → AuthService → Auth/Events handlers
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/wishlist/internal/auth"
	"github.com/sakif/wishlist/internal/config"
	"github.com/sakif/wishlist/internal/handler"
	"github.com/sakif/wishlist/internal/hosted"
	"github.com/sakif/wishlist/internal/identity"
	"github.com/sakif/wishlist/internal/metrics"
	"github.com/sakif/wishlist/internal/middleware"
	"github.com/sakif/wishlist/internal/preview"
	"github.com/sakif/wishlist/internal/repository"
	firestoreRepo "github.com/sakif/wishlist/internal/repository/firestore"
	sqliteRepo "github.com/sakif/wishlist/internal/repository/sqlite"
	"github.com/sakif/wishlist/internal/service"
)

// store is what a storage backend provides: wishlists and sessions.
type store interface {
	repository.WishlistRepository
	repository.SessionRepository
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the storage connection and the identity registry. Both
// are released in Close, which Start calls during graceful shutdown.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	store    store
	hosted   *hosted.Backend // nil unless Firebase is in use
	registry *identity.Registry
	closers  []io.Closer
}

// New creates a new Server from cfg, opening the configured storage backend
// and sign-in methods.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	if err := s.openStorage(ctx); err != nil {
		s.Close()
		return nil, err
	}

	if err := s.setupRoutes(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// openStorage connects the configured backend. In mock mode that is a local
// SQLite file; in hosted mode it is Firestore through the Firebase app.
func (s *Server) openStorage(ctx context.Context) error {
	if s.config.NeedsFirebase() {
		backend, err := hosted.Open(ctx, hosted.Config{
			ProjectID:       s.config.FirebaseProjectID,
			CredentialsFile: s.config.CredentialsFile,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("opening firebase: %w", err)
		}
		s.hosted = backend
		s.closers = append(s.closers, backend)
	}

	switch s.config.StorageBackend {
	case config.BackendFirestore:
		s.store = firestoreRepo.New(s.hosted.Firestore())
	default:
		if s.config.DBPath != ":memory:" {
			dir := filepath.Dir(s.config.DBPath)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(s.config.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		s.store = db
		s.closers = append(s.closers, db)
	}

	s.logger.Info("storage ready", slog.String("backend", s.config.StorageBackend))
	return nil
}

// authMethods builds the enabled sign-in methods, keyed by the method name
// the handlers put in identity.Credentials.
func (s *Server) authMethods(ctx context.Context) (identity.Methods, *auth.GoogleProvider, error) {
	methods := identity.Methods{}
	var google *auth.GoogleProvider

	if s.config.DemoAuth {
		methods["demo"] = auth.NewDemoAuthenticator(auth.NewPasswordService(), s.config.DemoPasswordHash)
	}
	if s.config.GoogleEnabled() {
		google = auth.NewGoogleProvider(s.config.GoogleClientID, s.config.GoogleClientSecret, s.config.GoogleCallbackURL)
		methods["google"] = google
	}
	if s.config.FirebaseAuth {
		client, err := s.hosted.Auth(ctx)
		if err != nil {
			return nil, nil, err
		}
		methods["firebase"] = auth.NewFirebaseAuthenticator(client)
	}

	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	s.logger.Info("sign-in methods enabled", slog.Any("methods", names))
	return methods, google, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /                                   → landing page
// GET    /static/*                           → static files
// GET    /metrics                            → Prometheus exposition
// POST   /auth/demo/login                    → demo sign-in
// GET    /auth/google/login, /callback       → Google sign-in (when configured)
// POST   /auth/firebase/login                → Firebase sign-in (when configured)
// POST   /auth/logout                        → sign out
// GET    /api/session/events                 → websocket identity feed
// GET    /shared/{id}, /api/shared/{id}      → public share view (HTML, JSON)
// GET    /api/me                             → current identity        [auth]
// POST   /api/preview                        → link preview lookup     [auth]
// GET    /api/wishlists, POST                → list own, create        [auth]
// GET    /api/wishlists/{id}, PATCH, DELETE  → owner only              [auth]
// POST   /api/wishlists/{id}/items           → add item                [auth]
// PATCH  /api/wishlists/{id}/items/{itemID}  → update item             [auth]
// DELETE /api/wishlists/{id}/items/{itemID}  → delete item             [auth]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP: extracts the real client IP from proxy headers
// 3. Logger and Metrics: sit outside Recoverer so a recovered panic is
//    logged and counted as the 500 it became
// 4. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes(ctx context.Context) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(chimiddleware.Recoverer)

	// === Dependencies ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	methods, google, err := s.authMethods(ctx)
	if err != nil {
		return fmt.Errorf("configuring sign-in: %w", err)
	}
	s.registry = identity.NewRegistry(methods, s.store, s.logger)
	authSvc := service.NewAuthService(s.registry, tokens, s.metrics, s.logger)

	// A nil *preview.Fetcher inside the interface would not compare equal
	// to nil, so only assign when enabled.
	var finder service.ImageFinder
	if s.config.PreviewEnabled {
		finder = preview.NewFetcher(s.config.PreviewTimeout)
	}
	wishlists := service.NewWishlistService(s.store, finder, s.metrics, s.logger)

	secure := s.config.SecureCookies()
	authHandler := handler.NewAuthHandler(authSvc, google, secure, s.logger)
	eventsHandler := handler.NewEventsHandler(authSvc, s.config.BaseURL, secure, s.logger)
	wishlistHandler := handler.NewWishlistHandler(wishlists, s.logger)
	previewHandler := handler.NewPreviewHandler(wishlists)
	sharedHandler, err := handler.NewSharedHandler(wishlists, s.config.TemplateDir, s.logger)
	if err != nil {
		return fmt.Errorf("creating shared handler: %w", err)
	}
	homeHandler, err := handler.NewHomeHandler(authSvc, s.config.TemplateDir, google != nil, s.config.DemoAuth, s.logger)
	if err != nil {
		return fmt.Errorf("creating home handler: %w", err)
	}

	// === Static files and metrics ===
	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	s.router.Handle("/metrics", s.metrics.Handler())

	// === Auth routes ===
	s.router.Route("/auth", func(r chi.Router) {
		if s.config.DemoAuth {
			r.Post("/demo/login", authHandler.HandleDemoLogin)
		}
		if google != nil {
			r.Get("/google/login", authHandler.HandleGoogleLogin)
			r.Get("/google/callback", authHandler.HandleGoogleCallback)
		}
		if s.config.FirebaseAuth {
			r.Post("/firebase/login", authHandler.HandleFirebaseLogin)
		}
		r.Post("/logout", authHandler.HandleLogout)
	})

	// === Pages ===
	s.router.Get("/", homeHandler.HandleHome)
	s.router.With(auth.OptionalAuth(tokens)).Get("/shared/{id}", sharedHandler.HandleSharedPage)

	// === API routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.With(auth.OptionalAuth(tokens)).Get("/shared/{id}", sharedHandler.HandleSharedJSON)
		r.Get("/session/events", eventsHandler.HandleEvents)

		// Everything below needs a valid token.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authHandler.HandleMe)
			r.Post("/preview", previewHandler.HandlePreview)

			r.Route("/wishlists", func(r chi.Router) {
				r.Get("/", wishlistHandler.HandleList)
				r.Post("/", wishlistHandler.HandleCreate)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", wishlistHandler.HandleGet)
					r.Patch("/", wishlistHandler.HandleUpdate)
					r.Delete("/", wishlistHandler.HandleDelete)

					r.Post("/items", wishlistHandler.HandleAddItem)
					r.Patch("/items/{itemID}", wishlistHandler.HandleUpdateItem)
					r.Delete("/items/{itemID}", wishlistHandler.HandleDeleteItem)
				})
			})
		})
	})

	return nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the identity registry and the storage connections.
func (s *Server) Close() {
	if s.registry != nil {
		s.registry.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.logger.Warn("closing storage", slog.String("error", err.Error()))
		}
	}
	s.closers = nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the registry and storage (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the websocket feed is long-lived. Handlers that
		// call out (link previews) carry their own deadlines.
		IdleTimeout: 60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
			slog.String("storage", s.config.StorageBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
