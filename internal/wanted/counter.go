// Package wanted computes wanted pages (link targets without a page) per
// namespace, renders them for the wanted-list tag, and caches the count
// as a page property other pages can echo without rerunning the query.
package wanted

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/alvmarrod/wiki-wanted/internal/storage"
	"github.com/alvmarrod/wiki-wanted/internal/title"
	"github.com/sirupsen/logrus"
)

// PropertyPrefix prefixes the per-namespace count property
const PropertyPrefix = "count_wanted_"

// Message keys
const (
	MsgNoNamespace = "wpfromns-nons"
	MsgNoResults   = "wpfromns-nores"
	MsgLinks       = "wpfromns-links"
)

// WhatLinksHere is the special page listing the links to a target
const WhatLinksHere = "WhatLinksHere"

// PropertyKey returns the property name caching the count of a namespace
func PropertyKey(ns int) string {
	return PropertyPrefix + strconv.Itoa(ns)
}

// LinkSource runs the wanted-pages anti-join
type LinkSource interface {
	WantedTargets(ctx context.Context, ns int) ([]storage.MissingLinkTarget, error)
}

// PageLookup finds existing pages
type PageLookup interface {
	GetPage(ctx context.Context, ns int, title string) (*storage.Page, error)
}

// PropertyReader reads durable page properties
type PropertyReader interface {
	GetProperty(ctx context.Context, pageID int64, name string) (string, bool, error)
}

// Store is everything the counter reads
type Store interface {
	LinkSource
	PageLookup
	PropertyReader
}

// Linker produces hyperlinks for rendered output
type Linker interface {
	// BrokenLink links to a page that does not exist
	BrokenLink(t title.Title, text string) string
	// SpecialLink links to a special page with query parameters
	SpecialLink(name, text string, query url.Values) string
}

// Messages looks up user-facing strings
type Messages interface {
	Text(key string, args ...any) string
	Escaped(key string, args ...any) string
}

// Params are the typed arguments of the wanted tags
type Params struct {
	Namespace      string
	Page           string
	Cache          bool
	SuppressErrors bool
}

// Counter renders the wanted-pages tags
type Counter struct {
	store    Store
	titles   *title.Parser
	linker   Linker
	messages Messages
}

// NewCounter creates a counter reading from store
func NewCounter(store Store, titles *title.Parser, linker Linker, messages Messages) *Counter {
	return &Counter{
		store:    store,
		titles:   titles,
		linker:   linker,
		messages: messages,
	}
}

// ComputeWanted returns the wanted pages of a namespace and how many
// distinct titles there are. Negative namespaces yield nothing and run no
// query.
func (c *Counter) ComputeWanted(ctx context.Context, ns int) ([]storage.MissingLinkTarget, int, error) {
	if ns < 0 {
		return nil, 0, nil
	}

	rows, err := c.store.WantedTargets(ctx, ns)
	if err != nil {
		return nil, 0, err
	}

	return rows, len(rows), nil
}

// RenderWantedList renders the wanted pages of Params.Namespace as an
// ordered list and records count_wanted_<ns> on the output. Unless
// Params.Cache is set the output is marked uncacheable.
func (c *Counter) RenderWantedList(ctx context.Context, out *Output, params Params) (string, error) {
	ns := c.titles.Namespaces().Index(params.Namespace)
	if ns < 0 {
		return c.errorMessage(params, MsgNoNamespace), nil
	}

	if !params.Cache {
		out.UpdateCacheExpiry(0)
	}

	rows, total, err := c.ComputeWanted(ctx, ns)
	if err != nil {
		return "", fmt.Errorf("wanted list for namespace %d: %w", ns, err)
	}

	logrus.WithFields(logrus.Fields{
		"namespace": ns,
		"page_id":   out.PageID,
		"wanted":    total,
	}).Debug("Rendered wanted list")

	if total == 0 {
		return c.messages.Escaped(MsgNoResults), nil
	}

	var b strings.Builder
	counts := make(map[int]int)
	for _, row := range rows {
		t := c.titles.MakeTitle(row.Namespace, row.Title)
		label := c.messages.Text(MsgLinks, row.IncomingLinks)
		query := url.Values{"target": {t.Prefixed()}}

		b.WriteString("<li>")
		b.WriteString(c.linker.BrokenLink(t, t.Text()))
		b.WriteString(" (")
		b.WriteString(c.linker.SpecialLink(WhatLinksHere, label, query))
		b.WriteString(")</li>\n")

		counts[row.Namespace]++
	}

	for namespace, count := range counts {
		out.SetProperty(PropertyKey(namespace), strconv.Itoa(count))
	}

	return "<ol>" + b.String() + "</ol>\n", nil
}

// RenderWantedCount echoes a cached count. With Params.Page it reads the
// durable property of that page, otherwise the value recorded earlier in
// this render pass. It never runs the wanted-pages query.
func (c *Counter) RenderWantedCount(ctx context.Context, out *Output, params Params) (int, error) {
	out.UpdateCacheExpiry(0)

	ns := c.titles.Namespaces().Index(params.Namespace)
	if ns < 0 {
		return 0, nil
	}
	key := PropertyKey(ns)

	var (
		value string
		found bool
	)
	if page := strings.TrimSpace(params.Page); page != "" {
		t, err := c.titles.Parse(page)
		if err != nil {
			return 0, nil
		}
		target, err := c.store.GetPage(ctx, t.Namespace, t.DBKey)
		if err != nil {
			return 0, fmt.Errorf("wanted count lookup of %s: %w", t.Prefixed(), err)
		}
		if target == nil {
			return 0, nil
		}
		value, found, err = c.store.GetProperty(ctx, target.PageID, key)
		if err != nil {
			return 0, fmt.Errorf("wanted count property of %s: %w", t.Prefixed(), err)
		}
	} else {
		value, found = out.Property(key)
	}

	if !found {
		return 0, nil
	}

	count, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		logrus.Warnf("Ignoring malformed %s value %q: %v", key, value, err)
		return 0, nil
	}
	return count, nil
}

func (c *Counter) errorMessage(params Params, key string) string {
	if params.SuppressErrors {
		return ""
	}
	return c.messages.Escaped(key)
}
