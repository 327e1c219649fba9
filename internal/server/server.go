// Package server is the local HTTP bridge between a host shell and the
// pageview operations.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spider-crawler/pageview/internal/config"
	"github.com/spider-crawler/pageview/internal/fetcher"
	"github.com/spider-crawler/pageview/internal/logger"
	"github.com/spider-crawler/pageview/internal/session"
	"github.com/spider-crawler/pageview/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Commands are the two host operations.
type Commands interface {
	FetchURL(ctx context.Context, url string) (*fetcher.Result, error)
	OpenExternalURL(url string) error
}

// Browser is an in-app browsing session.
type Browser interface {
	Navigate(ctx context.Context, input string) (*session.View, error)
	Back(ctx context.Context) (*session.View, error)
	Forward(ctx context.Context) (*session.View, error)
	Reload(ctx context.Context) (*session.View, error)
}

// VisitLog is the read side of the visit log.
type VisitLog interface {
	ListVisits(ctx context.Context, limit int) ([]*storage.Visit, error)
	GetStats(ctx context.Context) (*storage.Stats, error)
}

// Deps are the capabilities the bridge serves. Visits may be nil.
type Deps struct {
	Commands Commands
	Browser  Browser
	Visits   VisitLog
	Version  string
}

// Server represents an HTTP server with lifecycle management.
type Server struct {
	router *gin.Engine
	server *http.Server
	deps   Deps
	log    logger.Logger
	start  time.Time
}

// New creates the bridge. Routes are registered immediately; nothing listens
// until Run.
func New(cfg config.ServerConfig, deps Deps, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(RecoveryMiddleware(log))
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(log))

	s := &Server{
		router: router,
		deps:   deps,
		log:    log,
		start:  time.Now(),
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	router.GET("/health", s.health)

	limited := router.Group("/",
		OriginMiddleware(cfg.AllowedOrigins),
		RateLimitMiddleware(NewClientRateLimiter(cfg.RequestsPerSecond, cfg.Burst)),
	)
	limited.GET("/view", s.view)

	api := limited.Group("/api", RequireJSONMiddleware())
	api.POST("/fetch_url", s.fetchURL)
	api.POST("/open_external_url", s.openExternalURL)
	api.POST("/navigate", s.navigate)
	api.POST("/back", s.back)
	api.POST("/forward", s.forward)
	api.POST("/reload", s.reload)
	api.GET("/history", s.history)
	api.GET("/history/stats", s.stats)
	api.GET("/history/export", s.export)

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", logger.String("address", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("Context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("HTTP server stopped gracefully")
	return nil
}
