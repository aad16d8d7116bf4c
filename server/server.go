// Package server exposes the aggregation pipeline over HTTP: the JSON news
// and health API consumed by the web layer, plus RSS/OPML re-exports.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/pulsepoint/pulsepoint/pkg/domain"
	"github.com/pulsepoint/pulsepoint/pkg/feed"
)

// NewsProvider serves the current aggregated result, refreshing as needed
type NewsProvider interface {
	Get(ctx context.Context) (*domain.AggregateResult, error)
	Last() *domain.AggregateResult
}

// Config holds server parameters
type Config struct {
	Listen  string
	Timeout time.Duration
	BaseURL string
	Version string
	Debug   bool
}

// Server represents HTTP server instance
type Server struct {
	news      NewsProvider
	sources   []domain.Source
	generator *feed.Generator
	config    Config

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// New initializes a new server instance
func New(cfg Config, news NewsProvider, sources []domain.Source) *Server {
	s := &Server{
		news:      news,
		sources:   sources,
		generator: feed.NewGenerator(cfg.BaseURL),
		config:    cfg,
		router:    routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	log.Printf("[INFO] starting server on %s", s.config.Listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.router,
		ReadTimeout:  s.config.Timeout,
		WriteTimeout: s.config.Timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("pulsepoint", "pulsepoint", s.config.Version))
	s.router.Use(rest.Ping)

	if s.config.Debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	// API routes
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /news", s.newsHandler)
		r.HandleFunc("GET /health", s.healthHandler)
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("GET /sources", s.sourcesHandler)
	})

	// feed re-exports
	s.router.HandleFunc("GET /rss", s.rssHandler)
	s.router.HandleFunc("GET /opml", s.opmlHandler)
}
