package render

import (
	"net/url"
	"testing"

	"github.com/alvmarrod/wiki-wanted/internal/namespace"
	"github.com/alvmarrod/wiki-wanted/internal/title"
)

func TestCatalogText(t *testing.T) {
	c := NewCatalog(map[string]string{"greeting": "Hello $1 and $2"})

	tests := []struct {
		name string
		key  string
		args []any
		want string
	}{
		{name: "singular", key: "wpfromns-links", args: []any{1}, want: "1 link"},
		{name: "plural", key: "wpfromns-links", args: []any{3}, want: "3 links"},
		{name: "zero is plural", key: "wpfromns-links", args: []any{0}, want: "0 links"},
		{name: "override", key: "greeting", args: []any{"a", "b"}, want: "Hello a and b"},
		{name: "missing arg kept", key: "greeting", args: []any{"a"}, want: "Hello a and $2"},
		{name: "unknown key", key: "nope", want: "⧼nope⧽"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Text(tt.key, tt.args...); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCatalogEscaped(t *testing.T) {
	c := NewCatalog(map[string]string{"x": "<b>$1</b>"})
	if got := c.Escaped("x", "&"); got != "&lt;b&gt;&amp;&lt;/b&gt;" {
		t.Errorf("Escaped() = %q", got)
	}
}

func TestHTMLLinker(t *testing.T) {
	titles := title.NewParser(namespace.NewResolver(nil))
	l := NewHTMLLinker("/wiki")

	foo, err := titles.Parse("Talk:Foo bar")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	got := l.BrokenLink(foo, foo.Text())
	want := `<a href="/wiki/Talk:Foo_bar?action=edit&amp;redlink=1" class="new" title="Talk:Foo bar (page does not exist)">Foo bar</a>`
	if got != want {
		t.Errorf("BrokenLink() =\n%s\nwant\n%s", got, want)
	}

	got = l.SpecialLink("WhatLinksHere", "2 links", url.Values{"target": {"Talk:Foo bar"}})
	want = `<a href="/wiki/Special:WhatLinksHere?target=Talk%3AFoo+bar" title="Special:WhatLinksHere">2 links</a>`
	if got != want {
		t.Errorf("SpecialLink() =\n%s\nwant\n%s", got, want)
	}

	got = l.Link(foo, "<x>")
	want = `<a href="/wiki/Talk:Foo_bar" title="Talk:Foo bar">&lt;x&gt;</a>`
	if got != want {
		t.Errorf("Link() =\n%s\nwant\n%s", got, want)
	}
}
