package harvest

import (
	"net/url"
	"path"
	"strings"
)

// Link is an anchor resolved to a wiki page
type Link struct {
	URL   *url.URL
	Title string // as written in the URL, not normalized
	Red   bool   // editor link for a page that does not exist
}

// ResolveLink resolves href against the page it appeared on and reports
// whether it points at a page of the same wiki. Both article paths
// (/wiki/Title) and script paths (index.php?title=Title) are understood.
// Links carrying any action other than a red-link edit are rejected.
func ResolveLink(base *url.URL, href, articlePath string) (Link, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return Link{}, false
	}

	u, err := base.Parse(href)
	if err != nil {
		return Link{}, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Link{}, false
	}
	if !strings.EqualFold(u.Host, base.Host) {
		return Link{}, false
	}
	u.Fragment = ""

	query := u.Query()
	red := query.Get("redlink") == "1"
	if action := query.Get("action"); action != "" && !(action == "edit" && red) {
		return Link{}, false
	}

	var name string
	switch {
	case strings.HasPrefix(u.Path, articlePath):
		name = strings.TrimPrefix(u.Path, articlePath)
		if t := query.Get("title"); t != "" {
			name = t
		}
	case path.Base(u.Path) == "index.php":
		name = query.Get("title")
	}
	if name == "" {
		return Link{}, false
	}

	return Link{URL: u, Title: name, Red: red}, true
}

// ArticleURL returns the view URL of a page under articlePath of base
func ArticleURL(base *url.URL, articlePath, prefixedDBKey string) string {
	u := url.URL{
		Scheme: base.Scheme,
		Host:   base.Host,
		Path:   articlePath + prefixedDBKey,
	}
	return u.String()
}
