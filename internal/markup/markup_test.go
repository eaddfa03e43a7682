package markup

import (
	"context"
	"strings"
	"testing"

	"github.com/alvmarrod/wiki-wanted/internal/memory"
	"github.com/alvmarrod/wiki-wanted/internal/namespace"
	"github.com/alvmarrod/wiki-wanted/internal/render"
	"github.com/alvmarrod/wiki-wanted/internal/storage"
	"github.com/alvmarrod/wiki-wanted/internal/title"
	"github.com/alvmarrod/wiki-wanted/internal/wanted"
)

func newTestRenderer(t *testing.T) (*Renderer, *memory.Graph, *title.Parser) {
	t.Helper()
	ctx := context.Background()

	graph := memory.NewGraph()
	home := graph.EnsurePage(namespace.Main, "Home")
	for _, target := range []string{"Foo", "Bar"} {
		if err := graph.AddLink(ctx, home, namespace.Main, target); err != nil {
			t.Fatalf("AddLink() error: %v", err)
		}
	}

	titles := title.NewParser(namespace.NewResolver(nil))
	counter := wanted.NewCounter(graph, titles, render.NewHTMLLinker("/wiki/"), render.NewCatalog(nil))
	return NewRenderer(counter), graph, titles
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name  string
		attrs string
		inner string
		want  wanted.Params
	}{
		{
			name:  "inner lines",
			inner: "\nnamespace = Talk\n  page=Report \ncache = true\n",
			want:  wanted.Params{Namespace: "Talk", Page: "Report", Cache: true},
		},
		{
			name:  "keys are case insensitive",
			inner: "Namespace = 0\nSuppressErrors = TRUE",
			want:  wanted.Params{Namespace: "0", SuppressErrors: true},
		},
		{
			name:  "first line wins",
			inner: "namespace = 1\nnamespace = 2",
			want:  wanted.Params{Namespace: "1"},
		},
		{
			name:  "attributes override lines",
			attrs: ` namespace="Help" cache='true'`,
			inner: "namespace = 0",
			want:  wanted.Params{Namespace: "Help", Cache: true},
		},
		{
			name:  "unquoted attribute",
			attrs: " namespace=4 ",
			want:  wanted.Params{Namespace: "4"},
		},
		{
			name:  "non true booleans",
			inner: "cache = yes\nsuppresserrors = 1",
			want:  wanted.Params{},
		},
		{
			name:  "prefix keys do not match",
			inner: "pages = X\nnamespaces = 3",
			want:  wanted.Params{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseParams(tt.attrs, tt.inner); got != tt.want {
				t.Errorf("ParseParams() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRenderListThenCount(t *testing.T) {
	r, _, _ := newTestRenderer(t)

	source := "Before <npceo-wanted-list>\nnamespace = 0\n</npceo-wanted-list> total: <npceo-wanted-count>namespace=0</npceo-wanted-count> after"
	html, out, err := r.Render(context.Background(), 9, source)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if !strings.HasPrefix(html, "Before <ol><li>") {
		t.Errorf("unexpected start: %q", html)
	}
	if !strings.HasSuffix(html, "</ol>\n total: 2 after") {
		t.Errorf("unexpected end: %q", html)
	}
	if out.PageID != 9 {
		t.Errorf("PageID = %d", out.PageID)
	}
	if got, _ := out.Property("count_wanted_0"); got != "2" {
		t.Errorf("count_wanted_0 = %q", got)
	}
	if out.Cacheable() {
		t.Error("output should not be cacheable")
	}
}

func TestRenderCountBeforeList(t *testing.T) {
	r, _, _ := newTestRenderer(t)

	source := `<npceo-wanted-count namespace="0"/>|<npceo-wanted-list namespace="0" cache="true"/>`
	html, _, err := r.Render(context.Background(), 1, source)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.HasPrefix(html, "0|<ol>") {
		t.Errorf("Render() = %q", html)
	}
}

func TestRenderErrorsAndModel(t *testing.T) {
	r, _, _ := newTestRenderer(t)

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{name: "no tags", source: "plain [[text]]", want: "plain [[text]]"},
		{name: "missing namespace", source: "<npceo-wanted-list></npceo-wanted-list>", want: "No namespace specified."},
		{name: "suppressed", source: "<NPCEO-WANTED-LIST>suppresserrors = true</NPCEO-WANTED-LIST>", want: ""},
		{name: "empty namespace", source: "<npceo-wanted-list>namespace = File</npceo-wanted-list>", want: "No wanted pages in this namespace."},
		{name: "model", source: "x{{#npceomodel: a \n\n b \n}}y", want: `x<span class="npceo-model" style="display: none">ab</span>y`},
		{name: "model first argument", source: "{{#npceomodel:a|b}}", want: `<span class="npceo-model" style="display: none">a</span>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := r.Render(context.Background(), 1, tt.source)
			if err != nil {
				t.Fatalf("Render() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestModelKeepsOutputCacheable(t *testing.T) {
	r, _, _ := newTestRenderer(t)

	_, out, err := r.Render(context.Background(), 1, "{{#npceomodel:x}}")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !out.Cacheable() || len(out.Properties) != 0 {
		t.Errorf("model marker must not touch the output: %+v", out)
	}
}

func TestExtractLinks(t *testing.T) {
	titles := title.NewParser(namespace.NewResolver(nil))

	source := `See [[foo bar]], [[Foo_bar|again]], [[Talk:Notes#top|notes]],
[[Special:RecentChanges]], [[Media:X.png]], [[#local]], [[:Category:Cats]] and [[ help : Index ]].`

	got := ExtractLinks(titles, source)
	want := []storage.LinkTarget{
		{Namespace: namespace.Main, Title: "Foo_bar"},
		{Namespace: namespace.Talk, Title: "Notes"},
		{Namespace: namespace.Category, Title: "Cats"},
		{Namespace: namespace.Help, Title: "Index"},
	}

	if len(got) != len(want) {
		t.Fatalf("ExtractLinks() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("link %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRenderLinks(t *testing.T) {
	titles := title.NewParser(namespace.NewResolver(nil))
	linker := render.NewHTMLLinker("/wiki/")
	exists := func(_ context.Context, t title.Title) (bool, error) {
		return t.DBKey == "Home", nil
	}

	got, err := RenderLinks(context.Background(), titles, linker, exists, "[[home|Start]] and [[Talk:Gone]] and [[Bad{x}]]")
	if err != nil {
		t.Fatalf("RenderLinks() error: %v", err)
	}
	want := `<a href="/wiki/Home" title="Home">Start</a> and ` +
		`<a href="/wiki/Talk:Gone?action=edit&amp;redlink=1" class="new" title="Talk:Gone (page does not exist)">Talk:Gone</a> and [[Bad{x}]]`
	if got != want {
		t.Errorf("RenderLinks() =\n%s\nwant\n%s", got, want)
	}

	failing := func(context.Context, title.Title) (bool, error) { return false, context.Canceled }
	if _, err := RenderLinks(context.Background(), titles, linker, failing, "[[Home]]"); err == nil {
		t.Error("expected lookup error")
	}
}

func TestRenderEscapesText(t *testing.T) {
	r, _, _ := newTestRenderer(t)

	source := `<script>alert(1)</script> & <npceo-wanted-count namespace="0"/> <img src=x onerror="y">`
	got, _, err := r.Render(context.Background(), 1, source)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	want := `&lt;script&gt;alert(1)&lt;/script&gt; &amp; 0 &lt;img src=x onerror=&#34;y&#34;&gt;`
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}

	got, _, _ = r.Render(context.Background(), 1, "<b>no tags</b>")
	if got != "&lt;b&gt;no tags&lt;/b&gt;" {
		t.Errorf("Render() without tags = %q", got)
	}
}

func TestRenderLinksAfterEscaping(t *testing.T) {
	r, _, titles := newTestRenderer(t)
	linker := render.NewHTMLLinker("/wiki/")
	missing := func(context.Context, title.Title) (bool, error) { return false, nil }

	expanded, _, err := r.Render(context.Background(), 1, `[[Fish & Chips|fish "n" chips]] [[<script>]]`)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	got, err := RenderLinks(context.Background(), titles, linker, missing, expanded)
	if err != nil {
		t.Fatalf("RenderLinks() error: %v", err)
	}
	want := `<a href="/wiki/Fish_&amp;_Chips?action=edit&amp;redlink=1" class="new" title="Fish &amp; Chips (page does not exist)">fish &#34;n&#34; chips</a> [[&lt;script&gt;]]`
	if got != want {
		t.Errorf("RenderLinks() =\n%s\nwant\n%s", got, want)
	}
}
