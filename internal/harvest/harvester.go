// Package harvest crawls a rendered wiki and records which pages exist and
// which pages they link to, including red links to pages that do not.
package harvest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/wiki-wanted/internal/memory"
	"github.com/alvmarrod/wiki-wanted/internal/metrics"
	"github.com/alvmarrod/wiki-wanted/internal/storage"
	"github.com/alvmarrod/wiki-wanted/internal/title"
)

// Options configure a harvest run
type Options struct {
	SeedURL         string
	ArticlePath     string
	MaxDepth        int // hops followed from the seed
	MaxPages        int
	Workers         int
	RequestTimeout  time.Duration
	ContentSelector string
}

// Harvester walks article links breadth first from a seed page
type Harvester struct {
	opts      Options
	seed      *url.URL
	titles    *title.Parser
	graph     *memory.Graph
	tracker   *metrics.Tracker
	frontier  *Frontier
	collector *colly.Collector
	started   sync.Map // request id -> time.Time
}

// New creates a harvester that records into graph
func New(opts Options, titles *title.Parser, graph *memory.Graph, tracker *metrics.Tracker) (*Harvester, error) {
	seed, err := url.Parse(opts.SeedURL)
	if err != nil || seed.Host == "" {
		return nil, fmt.Errorf("invalid seed URL %q", opts.SeedURL)
	}
	if opts.ArticlePath == "" {
		opts.ArticlePath = "/wiki/"
	}
	if !strings.HasSuffix(opts.ArticlePath, "/") {
		opts.ArticlePath += "/"
	}
	if opts.ContentSelector == "" {
		opts.ContentSelector = "body"
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	return &Harvester{
		opts:     opts,
		seed:     seed,
		titles:   titles,
		graph:    graph,
		tracker:  tracker,
		frontier: NewFrontier(opts.MaxPages),
	}, nil
}

// setupColly configures the Colly collector with callbacks
func (h *Harvester) setupColly(ctx context.Context) {
	h.collector = colly.NewCollector(
		colly.Async(true),
		colly.MaxDepth(h.opts.MaxDepth+1), // the seed is depth 1
		colly.AllowedDomains(h.seed.Hostname()),
		colly.StdlibContext(ctx),
	)

	if h.opts.RequestTimeout > 0 {
		h.collector.SetRequestTimeout(h.opts.RequestTimeout)
	}

	// Limit parallelism
	h.collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: h.opts.Workers,
	})

	h.collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		h.started.Store(r.ID, time.Now())
	})

	h.collector.OnResponse(func(r *colly.Response) {
		var elapsed time.Duration
		if start, ok := h.started.LoadAndDelete(r.Request.ID); ok {
			elapsed = time.Since(start.(time.Time))
		}
		h.tracker.PageFetched(elapsed)
		logrus.Infof("Fetched %s (depth=%d, status=%d)", r.Request.URL, r.Request.Depth, r.StatusCode)
	})

	h.collector.OnError(func(r *colly.Response, err error) {
		h.tracker.PageFailed()
		if r != nil && r.Request != nil {
			h.started.Delete(r.Request.ID)
			logrus.Errorf("Fetch failed for %s: %v (status: %d)", r.Request.URL, err, r.StatusCode)
			return
		}
		logrus.Errorf("Fetch failed: %v", err)
	})

	h.collector.OnHTML(h.opts.ContentSelector, h.handleContent)
}

// handleContent records the page and every wiki link in its content area
func (h *Harvester) handleContent(e *colly.HTMLElement) {
	page, ok := h.pageOf(e.Request.URL)
	if !ok {
		logrus.Warnf("Skipping content of %s: not an article URL", e.Request.URL)
		return
	}
	fromID := h.graph.EnsurePage(page.Namespace, page.DBKey)
	// a fetched page owns its links, even when it has none left
	if err := h.graph.ReplaceLinks(context.Background(), fromID, nil); err != nil {
		logrus.Warnf("Failed to reset links of %s: %v", page, err)
		return
	}

	e.DOM.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := ResolveLink(e.Request.URL, href, h.opts.ArticlePath)
		if !ok {
			return
		}
		target, err := h.titles.Parse(link.Title)
		if err != nil || target.Namespace < 0 {
			return
		}
		red := link.Red || s.HasClass("new")

		if err := h.graph.AddLink(context.Background(), fromID, target.Namespace, target.DBKey); err != nil {
			logrus.Warnf("Failed to record link %s -> %s: %v", page, target, err)
			return
		}
		h.tracker.LinkRecorded(red)
		logrus.Debugf("Link: %s -> %s (red=%v)", page, target, red)

		if red {
			return
		}
		h.graph.EnsurePage(target.Namespace, target.DBKey)
		h.follow(e.Request, target)
	})
}

// follow schedules a visit to an existing page within depth and budget
func (h *Harvester) follow(from *colly.Request, target title.Title) {
	if from.Depth > h.opts.MaxDepth {
		return
	}

	switch h.frontier.Admit(storage.LinkTarget{Namespace: target.Namespace, Title: target.DBKey}) {
	case AlreadySeen:
		return
	case OverBudget:
		h.tracker.PageSkipped()
		return
	}

	next := ArticleURL(h.seed, h.opts.ArticlePath, target.PrefixedDBKey())
	if err := from.Visit(next); err != nil {
		logrus.Debugf("Visit of %s not scheduled: %v", next, err)
	}
}

func (h *Harvester) pageOf(u *url.URL) (title.Title, bool) {
	link, ok := ResolveLink(u, u.String(), h.opts.ArticlePath)
	if !ok || link.Red {
		return title.Title{}, false
	}
	t, err := h.titles.Parse(link.Title)
	if err != nil || t.Namespace < 0 {
		return title.Title{}, false
	}
	return t, true
}

// Run crawls from the seed until every scheduled page is fetched or ctx
// is cancelled. Pages already requested when ctx ends still complete.
func (h *Harvester) Run(ctx context.Context) error {
	seedPage, ok := h.pageOf(h.seed)
	if !ok {
		return fmt.Errorf("seed %s is not an article URL under %s", h.seed, h.opts.ArticlePath)
	}

	h.setupColly(ctx)
	h.frontier.Admit(storage.LinkTarget{Namespace: seedPage.Namespace, Title: seedPage.DBKey})

	logrus.WithFields(logrus.Fields{
		"seed":    h.seed.String(),
		"run_id":  h.tracker.RunID(),
		"depth":   h.opts.MaxDepth,
		"workers": h.opts.Workers,
	}).Info("Starting harvest")

	if err := h.collector.Visit(h.seed.String()); err != nil {
		return fmt.Errorf("failed to visit seed: %w", err)
	}
	h.collector.Wait()

	pages, links := h.graph.GetStats()
	logrus.Infof("Harvest finished: %d pages admitted, %d pages known, %d links", h.frontier.Size(), pages, links)

	return ctx.Err()
}
