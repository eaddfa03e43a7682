package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/wiki-wanted/internal/markup"
	"github.com/alvmarrod/wiki-wanted/internal/propsdump"
	"github.com/alvmarrod/wiki-wanted/internal/title"
	"github.com/alvmarrod/wiki-wanted/internal/wanted"
)

// SaveResponse is returned by a page save
type SaveResponse struct {
	PageID int64  `json:"page_id"`
	Title  string `json:"title"`
	Links  int    `json:"links"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleView renders a page, or runs the page action named by ?action=
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	t, err := s.titles.Parse(r.PathValue("title"))
	if err != nil || t.Namespace < 0 {
		http.NotFound(w, r)
		return
	}

	page, err := s.store.GetPage(ctx, t.Namespace, t.DBKey)
	if err != nil {
		s.internalError(w, r, fmt.Errorf("load page %s: %w", t, err))
		return
	}
	if page == nil {
		http.Error(w, t.Prefixed()+" does not exist", http.StatusNotFound)
		return
	}

	switch action := r.URL.Query().Get("action"); action {
	case "", "view":
	case propsdump.Action:
		propsdump.Handler(s.store, page.PageID).ServeHTTP(w, r)
		return
	case "raw":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		io.WriteString(w, page.Content)
		return
	default:
		http.Error(w, "unknown action "+strconv.Quote(action), http.StatusBadRequest)
		return
	}

	body, out, err := s.renderer.Render(ctx, page.PageID, page.Content)
	if err != nil {
		s.internalError(w, r, fmt.Errorf("render %s: %w", t, err))
		return
	}
	if err := s.store.ReplaceProperties(ctx, page.PageID, out.Properties); err != nil {
		s.internalError(w, r, fmt.Errorf("save properties of %s: %w", t, err))
		return
	}
	body, err = markup.RenderLinks(ctx, s.titles, s.linker, s.exists, body)
	if err != nil {
		s.internalError(w, r, fmt.Errorf("render links of %s: %w", t, err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheControl(out))
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>%s</title></head>\n<body>\n<h1 id=\"firstHeading\">%s</h1>\n<div id=\"mw-content-text\">\n%s\n</div>\n</body></html>\n",
		html.EscapeString(t.Prefixed()), html.EscapeString(t.Prefixed()), body)
}

// handleSave stores page source and replaces its outgoing links
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	t, err := s.titles.Parse(r.PathValue("title"))
	if err != nil || t.Namespace < 0 {
		http.Error(w, "invalid title", http.StatusBadRequest)
		return
	}

	source, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "page too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	pageID, err := s.store.UpsertPage(ctx, t.Namespace, t.DBKey, string(source))
	if err != nil {
		s.internalError(w, r, fmt.Errorf("save page %s: %w", t, err))
		return
	}
	links := markup.ExtractLinks(s.titles, string(source))
	if err := s.store.ReplaceLinks(ctx, pageID, links); err != nil {
		s.internalError(w, r, fmt.Errorf("save links of %s: %w", t, err))
		return
	}

	logrus.WithFields(logrus.Fields{
		"page_id": pageID,
		"title":   t.Prefixed(),
		"links":   len(links),
	}).Info("Page saved")

	writeJSON(w, http.StatusOK, SaveResponse{PageID: pageID, Title: t.Prefixed(), Links: len(links)})
}

func (s *Server) exists(ctx context.Context, t title.Title) (bool, error) {
	page, err := s.store.GetPage(ctx, t.Namespace, t.DBKey)
	return page != nil, err
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	logrus.WithField("requestID", GetRequestID(r.Context())).Errorf("Request failed: %v", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// cacheControl maps a render's cache hint to a Cache-Control header
func cacheControl(out *wanted.Output) string {
	switch {
	case out.CacheHint == nil:
		return "max-age=" + strconv.Itoa(DefaultMaxAge)
	case out.CacheHint.TTLSeconds <= 0:
		return "no-store"
	default:
		return "max-age=" + strconv.Itoa(out.CacheHint.TTLSeconds)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("Failed to encode response: %v", err)
	}
}
