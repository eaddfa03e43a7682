package markup

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/alvmarrod/wiki-wanted/internal/storage"
	"github.com/alvmarrod/wiki-wanted/internal/title"
	"github.com/sirupsen/logrus"
)

// [[Target]] or [[Target|label]]
var linkPattern = regexp.MustCompile(`\[\[([^|\[\]]+)(?:\|[^\]]*)?\]\]`)

// ExtractLinks returns the distinct link targets of a page source in the
// order they first appear. Special and media links are skipped, as are
// targets that do not form a valid title.
func ExtractLinks(titles *title.Parser, source string) []storage.LinkTarget {
	seen := make(map[storage.LinkTarget]bool)
	var targets []storage.LinkTarget

	for _, m := range linkPattern.FindAllStringSubmatch(source, -1) {
		t, err := titles.Parse(m[1])
		if err != nil {
			logrus.Debugf("Skipping link %q: %v", m[1], err)
			continue
		}
		if t.Namespace < 0 {
			continue
		}

		target := storage.LinkTarget{Namespace: t.Namespace, Title: t.DBKey}
		if seen[target] {
			continue
		}
		seen[target] = true
		targets = append(targets, target)
	}

	return targets
}

// PageLinker renders links to existing and missing pages
type PageLinker interface {
	Link(t title.Title, text string) string
	BrokenLink(t title.Title, text string) string
}

// Exists reports whether a page is present
type Exists func(ctx context.Context, t title.Title) (bool, error)

// RenderLinks replaces [[Target|label]] links in source expanded by
// Render with anchors, red for targets that do not exist. Targets and
// labels arrive HTML-escaped and are unescaped before linking. Links that
// do not form a page title are left as written.
func RenderLinks(ctx context.Context, titles *title.Parser, linker PageLinker, exists Exists, source string) (string, error) {
	var firstErr error
	out := linkPattern.ReplaceAllStringFunc(source, func(m string) string {
		if firstErr != nil {
			return m
		}
		sub := linkPattern.FindStringSubmatch(m)
		target := html.UnescapeString(sub[1])
		t, err := titles.Parse(target)
		if err != nil || t.Namespace < 0 {
			return m
		}

		text := strings.TrimSpace(target)
		if i := strings.Index(m, "|"); i >= 0 {
			if label := strings.TrimSpace(m[i+1 : len(m)-2]); label != "" {
				text = html.UnescapeString(label)
			}
		}

		ok, err := exists(ctx, t)
		if err != nil {
			firstErr = err
			return m
		}
		if ok {
			return linker.Link(t, text)
		}
		return linker.BrokenLink(t, text)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
