package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type cliHarness struct {
	t      *testing.T
	config string
	dir    string
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")
	content := "log_level: error\ndatabase:\n  driver: sqlite3\n  dsn: " + filepath.Join(dir, "wiki.db") + "\n"
	if err := os.WriteFile(config, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliHarness{t: t, config: config, dir: dir}
}

// run executes the app with stdin and returns what it printed
func (h *cliHarness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = &out

	err := app.Run(append([]string{"wanted", "--config", h.config}, args...))
	return out.String(), err
}

func (h *cliHarness) mustRun(stdin string, args ...string) string {
	h.t.Helper()
	out, err := h.run(stdin, args...)
	if err != nil {
		h.t.Fatalf("wanted %v: %v", args, err)
	}
	return out
}

func TestPageWorkflow(t *testing.T) {
	h := newHarness(t)

	if out := h.mustRun("[[Foo]] [[Bar]]", "page", "put", "A"); out != "Saved A (page 1, 2 links)\n" {
		t.Errorf("page put A = %q", out)
	}
	h.mustRun("[[Foo]]", "page", "put", "b")

	report := filepath.Join(h.dir, "report.md")
	file := "---\ntitle: Report\n---\n<npceo-wanted-list>namespace = 0</npceo-wanted-list>\n"
	if err := os.WriteFile(report, []byte(file), 0o644); err != nil {
		t.Fatalf("write page file: %v", err)
	}
	if out := h.mustRun("", "page", "put", "--file", report); !strings.HasPrefix(out, "Saved Report ") {
		t.Errorf("page put --file = %q", out)
	}

	list := h.mustRun("", "list", "--namespace", "0")
	if !strings.HasPrefix(list, "<ol><li>") || !strings.Contains(list, ">2 links</a>") || !strings.Contains(list, ">1 link</a>") {
		t.Errorf("list = %q", list)
	}
	if out := h.mustRun("", "count", "--namespace", "main"); out != "2\n" {
		t.Errorf("count = %q", out)
	}

	// Nothing is cached on Report until it is rendered
	if out := h.mustRun("", "count", "--namespace", "0", "--page", "Report"); out != "0\n" {
		t.Errorf("count before render = %q", out)
	}
	rendered := h.mustRun("", "page", "render", "Report")
	if !strings.Contains(rendered, `class="new"`) {
		t.Errorf("render = %q", rendered)
	}
	if out := h.mustRun("", "count", "--namespace", "0", "--page", "Report"); out != "2\n" {
		t.Errorf("count after render = %q", out)
	}

	if out := h.mustRun("", "props", "Report"); out != "{\"count_wanted_0\":\"2\"}\n" {
		t.Errorf("props json = %q", out)
	}
	if out := h.mustRun("", "props", "--format", "yaml", "Report"); out != "count_wanted_0: \"2\"\n" {
		t.Errorf("props yaml = %q", out)
	}
	if out := h.mustRun("", "props", "A"); out != "{}\n" {
		t.Errorf("props of a page without properties = %q", out)
	}
}

func TestModelCommand(t *testing.T) {
	h := newHarness(t)

	want := "<span class=\"npceo-model\" style=\"display: none\">ab</span>\n"
	if out := h.mustRun("", "model", "a", "b"); out != strings.Replace(want, "ab", "a b", 1) {
		t.Errorf("model args = %q", out)
	}
	if out := h.mustRun(" a \n\n b \n", "model"); out != want {
		t.Errorf("model stdin = %q", out)
	}
}

func TestCommandErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		args  []string
		usage bool
	}{
		{name: "missing page", args: []string{"props", "Nope"}},
		{name: "missing title", args: []string{"page", "render"}, usage: true},
		{name: "put without title", args: []string{"page", "put"}, usage: true},
		{name: "special title", args: []string{"page", "put", "Special:Thing"}, usage: true},
		{name: "unknown format", args: []string{"props", "--format", "xml", "A"}, usage: true},
		{name: "harvest without seed", args: []string{"harvest"}, usage: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run("x", tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			category := goerrors.CategoryCommand
			if tt.usage {
				category = goerrors.CategoryValidation
			}
			if !goerrors.IsCategory(err, category) {
				t.Errorf("error %v is not in category %v", err, category)
			}
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	if err := app.Run([]string{"wanted", "--config", filepath.Join(t.TempDir(), "none.json"), "list"}); err == nil {
		t.Error("expected error for a missing config file")
	}
}
