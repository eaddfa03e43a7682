// Package render builds the HTML links and user-facing messages of
// rendered pages.
package render

import (
	"html"
	"net/url"
	"strings"

	"github.com/alvmarrod/wiki-wanted/internal/title"
)

// DefaultArticlePath is where page views are served
const DefaultArticlePath = "/wiki/"

// HTMLLinker renders wiki links as HTML anchors
type HTMLLinker struct {
	articlePath string
}

// NewHTMLLinker creates a linker for pages served under articlePath
func NewHTMLLinker(articlePath string) *HTMLLinker {
	if articlePath == "" {
		articlePath = DefaultArticlePath
	}
	if !strings.HasSuffix(articlePath, "/") {
		articlePath += "/"
	}
	return &HTMLLinker{articlePath: articlePath}
}

// PageURL returns the view URL of a title, with optional query
func (l *HTMLLinker) PageURL(prefixedDBKey string, query url.Values) string {
	u := l.articlePath + url.PathEscape(prefixedDBKey)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Link renders a link to an existing page
func (l *HTMLLinker) Link(t title.Title, text string) string {
	return anchor(l.PageURL(t.PrefixedDBKey(), nil), text, t.Prefixed(), "")
}

// BrokenLink renders a red link that opens the editor of a missing page
func (l *HTMLLinker) BrokenLink(t title.Title, text string) string {
	query := url.Values{
		"action":  {"edit"},
		"redlink": {"1"},
	}
	return anchor(
		l.PageURL(t.PrefixedDBKey(), query),
		text,
		t.Prefixed()+" (page does not exist)",
		"new",
	)
}

// SpecialLink renders a link to Special:<name>
func (l *HTMLLinker) SpecialLink(name, text string, query url.Values) string {
	target := "Special:" + name
	return anchor(l.PageURL(target, query), text, target, "")
}

func anchor(href, text, tooltip, class string) string {
	var b strings.Builder
	b.WriteString(`<a href="`)
	b.WriteString(html.EscapeString(href))
	b.WriteString(`"`)
	if class != "" {
		b.WriteString(` class="`)
		b.WriteString(html.EscapeString(class))
		b.WriteString(`"`)
	}
	b.WriteString(` title="`)
	b.WriteString(html.EscapeString(tooltip))
	b.WriteString(`">`)
	b.WriteString(html.EscapeString(text))
	b.WriteString(`</a>`)
	return b.String()
}
