// Package memory is an in-memory link graph with the storage read/write
// surface. It buffers a harvest until Flush writes it out.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alvmarrod/wiki-wanted/internal/storage"
	"github.com/sirupsen/logrus"
)

// Graph holds pages, links and page properties in memory for fast access.
// It mirrors the storage read/write surface so either can back the
// wanted-pages counter.
type Graph struct {
	pages       map[storage.LinkTarget]*storage.Page // (ns, title) -> page
	pagesByID   map[int64]*storage.Page
	links       map[int64]map[storage.LinkTarget]bool // from page -> targets
	props       map[int64]map[string]string
	pageCounter int64 // auto-increment for page IDs
	mu          sync.RWMutex
}

// NewGraph creates a new in-memory graph
func NewGraph() *Graph {
	return &Graph{
		pages:     make(map[storage.LinkTarget]*storage.Page),
		pagesByID: make(map[int64]*storage.Page),
		links:     make(map[int64]map[storage.LinkTarget]bool),
		props:     make(map[int64]map[string]string),
	}
}

// UpsertPage inserts a page or replaces the content of an existing one.
// Returns the page_id of the inserted/existing page.
func (g *Graph) UpsertPage(_ context.Context, ns int, title, content string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.upsertPageLocked(ns, title, content), nil
}

func (g *Graph) upsertPageLocked(ns int, title, content string) int64 {
	key := storage.LinkTarget{Namespace: ns, Title: title}
	if page, exists := g.pages[key]; exists {
		page.Content = content
		page.TouchedAt = time.Now().UTC()
		return page.PageID
	}

	g.pageCounter++
	page := &storage.Page{
		PageID:    g.pageCounter,
		Namespace: ns,
		Title:     title,
		Content:   content,
		TouchedAt: time.Now().UTC(),
	}
	g.pages[key] = page
	g.pagesByID[page.PageID] = page

	return page.PageID
}

// EnsurePage records that a page exists without touching its content
func (g *Graph) EnsurePage(ns int, title string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if page, exists := g.pages[storage.LinkTarget{Namespace: ns, Title: title}]; exists {
		return page.PageID
	}
	return g.upsertPageLocked(ns, title, "")
}

// GetPage retrieves a page by namespace and title
func (g *Graph) GetPage(_ context.Context, ns int, title string) (*storage.Page, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if page, exists := g.pages[storage.LinkTarget{Namespace: ns, Title: title}]; exists {
		// Return a copy to prevent external modifications
		pageCopy := *page
		return &pageCopy, nil
	}

	return nil, nil // Not found (matches storage behavior)
}

// GetPageByID retrieves a page by id
func (g *Graph) GetPageByID(_ context.Context, pageID int64) (*storage.Page, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if page, exists := g.pagesByID[pageID]; exists {
		pageCopy := *page
		return &pageCopy, nil
	}

	return nil, nil
}

// AddLink records a link, ignoring duplicates
func (g *Graph) AddLink(_ context.Context, fromID int64, ns int, title string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.pagesByID[fromID]; !exists {
		return fmt.Errorf("source page %d not found", fromID)
	}

	targets := g.links[fromID]
	if targets == nil {
		targets = make(map[storage.LinkTarget]bool)
		g.links[fromID] = targets
	}
	targets[storage.LinkTarget{Namespace: ns, Title: title}] = true

	return nil
}

// ReplaceLinks swaps the outgoing links of a page for the given targets
func (g *Graph) ReplaceLinks(_ context.Context, fromID int64, targets []storage.LinkTarget) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.pagesByID[fromID]; !exists {
		return fmt.Errorf("source page %d not found", fromID)
	}

	set := make(map[storage.LinkTarget]bool, len(targets))
	for _, target := range targets {
		set[target] = true
	}
	g.links[fromID] = set

	return nil
}

// WantedTargets returns link targets in a namespace that have no page,
// ordered by title
func (g *Graph) WantedTargets(_ context.Context, ns int) ([]storage.MissingLinkTarget, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	counts := make(map[string]int)
	for fromID, targets := range g.links {
		if _, exists := g.pagesByID[fromID]; !exists {
			continue
		}
		for target := range targets {
			if target.Namespace != ns {
				continue
			}
			if _, exists := g.pages[target]; exists {
				continue
			}
			counts[target.Title]++
		}
	}

	rows := make([]storage.MissingLinkTarget, 0, len(counts))
	for title, count := range counts {
		rows = append(rows, storage.MissingLinkTarget{
			Namespace:     ns,
			Title:         title,
			IncomingLinks: count,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Title < rows[j].Title
	})

	return rows, nil
}

// GetProperty reads one page property
func (g *Graph) GetProperty(_ context.Context, pageID int64, name string) (string, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	value, ok := g.props[pageID][name]
	return value, ok, nil
}

// SetProperty inserts or overwrites one page property
func (g *Graph) SetProperty(_ context.Context, pageID int64, name, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.props[pageID] == nil {
		g.props[pageID] = make(map[string]string)
	}
	g.props[pageID][name] = value
	return nil
}

// ReplaceProperties swaps every property of a page for the given set
func (g *Graph) ReplaceProperties(_ context.Context, pageID int64, props map[string]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	copied := make(map[string]string, len(props))
	for name, value := range props {
		copied[name] = value
	}
	g.props[pageID] = copied
	return nil
}

// ListProperties returns a copy of every property of a page
func (g *Graph) ListProperties(_ context.Context, pageID int64) (map[string]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make(map[string]string, len(g.props[pageID]))
	for name, value := range g.props[pageID] {
		result[name] = value
	}
	return result, nil
}

// GetStats returns current graph statistics
func (g *Graph) GetStats() (pageCount, linkCount int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, targets := range g.links {
		linkCount += len(targets)
	}
	return len(g.pages), linkCount
}

// Flush writes all in-memory pages and links to storage. Page content is
// only written for pages that have some, so a harvest never blanks pages
// edited locally.
func (g *Graph) Flush(ctx context.Context, store *storage.Storage) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	startTime := time.Now()
	logrus.Info("Starting flush to database...")

	pagesWritten := 0
	linksWritten := 0
	var firstErr error

	// Build ID mapping: memory ID -> DB ID
	idMap := make(map[int64]int64, len(g.pages))
	for key, page := range g.pages {
		existing, err := store.GetPage(ctx, key.Namespace, key.Title)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			logrus.Warnf("Failed to look up page %d:%s: %v", key.Namespace, key.Title, err)
			continue
		}

		if existing != nil && page.Content == "" {
			idMap[page.PageID] = existing.PageID
			continue
		}

		dbID, err := store.UpsertPage(ctx, key.Namespace, key.Title, page.Content)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			logrus.Warnf("Failed to flush page %d:%s: %v", key.Namespace, key.Title, err)
			continue
		}
		idMap[page.PageID] = dbID
		pagesWritten++
	}

	// Each source page with recorded links replaces its stored links, so
	// links dropped since the last harvest disappear. Pages never fetched
	// have no entry and keep theirs.
	for memFromID, targets := range g.links {
		dbFromID, ok := idMap[memFromID]
		if !ok {
			logrus.Warnf("Skipping links of page %d: ID mapping not found", memFromID)
			continue
		}

		list := make([]storage.LinkTarget, 0, len(targets))
		for target := range targets {
			list = append(list, target)
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Namespace != list[j].Namespace {
				return list[i].Namespace < list[j].Namespace
			}
			return list[i].Title < list[j].Title
		})

		if err := store.ReplaceLinks(ctx, dbFromID, list); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			logrus.Warnf("Failed to flush links of page %d: %v", dbFromID, err)
			continue
		}
		linksWritten += len(list)
	}

	duration := time.Since(startTime)
	logrus.Infof("Flush complete: %d pages, %d links written in %v", pagesWritten, linksWritten, duration)

	return firstErr
}
