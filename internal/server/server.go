// Package server is the HTTP front end that stores, renders and dumps
// wiki pages.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/wiki-wanted/internal/markup"
	"github.com/alvmarrod/wiki-wanted/internal/storage"
	"github.com/alvmarrod/wiki-wanted/internal/title"
)

// DefaultMaxAge applies to rendered pages that carry no cache hint
const DefaultMaxAge = 300

// maxPageBytes caps the body of a page save
const maxPageBytes = 1 << 20

// Store is the page surface the front end reads and writes
type Store interface {
	GetPage(ctx context.Context, ns int, title string) (*storage.Page, error)
	UpsertPage(ctx context.Context, ns int, title, content string) (int64, error)
	ReplaceLinks(ctx context.Context, fromID int64, targets []storage.LinkTarget) error
	ReplaceProperties(ctx context.Context, pageID int64, props map[string]string) error
	ListProperties(ctx context.Context, pageID int64) (map[string]string, error)
}

// Server represents the wiki HTTP front end
type Server struct {
	router      *http.ServeMux
	server      *http.Server
	addr        string
	articlePath string
	store       Store
	renderer    *markup.Renderer
	titles      *title.Parser
	linker      markup.PageLinker
}

// NewServer creates a new HTTP server instance
func NewServer(addr, articlePath string, store Store, renderer *markup.Renderer, titles *title.Parser, linker markup.PageLinker) *Server {
	if articlePath == "" {
		articlePath = "/wiki/"
	}
	if !strings.HasSuffix(articlePath, "/") {
		articlePath += "/"
	}
	s := &Server{
		addr:        addr,
		articlePath: articlePath,
		store:       store,
		renderer:    renderer,
		titles:      titles,
		linker:      linker,
		router:      http.NewServeMux(),
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.applyMiddleware(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("GET "+s.articlePath+"{title...}", s.handleView)
	s.router.HandleFunc("PUT "+s.articlePath+"{title...}", s.handleSave)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	logrus.Infof("Starting HTTP server on %s", s.addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logrus.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	logrus.Info("Server shut down successfully")
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// applyMiddleware wraps the handler with middleware in the correct order
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last one wraps first)
	handler = RecoveryMiddleware(s.articlePath)(handler)
	handler = LoggingMiddleware(s.articlePath)(handler)
	handler = RequestIDMiddleware()(handler)
	return gzhttp.GzipHandler(handler)
}
