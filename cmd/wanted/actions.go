package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/alvmarrod/wiki-wanted/internal/config"
	"github.com/alvmarrod/wiki-wanted/internal/harvest"
	"github.com/alvmarrod/wiki-wanted/internal/markup"
	"github.com/alvmarrod/wiki-wanted/internal/memory"
	"github.com/alvmarrod/wiki-wanted/internal/metrics"
	"github.com/alvmarrod/wiki-wanted/internal/propsdump"
	"github.com/alvmarrod/wiki-wanted/internal/server"
	"github.com/alvmarrod/wiki-wanted/internal/storage"
	"github.com/alvmarrod/wiki-wanted/internal/wanted"
)

const progressInterval = 10 * time.Second

// pageMeta is the front matter of a page file
type pageMeta struct {
	Title string `yaml:"title"`
}

func ServeAction(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	addr := e.cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}
	srv := server.NewServer(addr, e.cfg.Server.ArticlePath, e.store, e.renderer, e.titles, e.linker)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return commandFailed(err, "")
	case <-ctx.Done():
		logrus.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return commandFailed(srv.Shutdown(shutdownCtx), "")
}

func HarvestAction(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	cfg := e.cfg.Harvest
	if c.IsSet("seed") {
		cfg.SeedURL = c.String("seed")
	}
	if c.IsSet("depth") {
		cfg.MaxDepth = c.Int("depth")
	}
	if c.IsSet("max-pages") {
		cfg.MaxPages = c.Int("max-pages")
	}
	e.cfg.Harvest = cfg
	if err := config.ValidateHarvest(e.cfg); err != nil {
		return err
	}

	logrus.Infof("Harvest configured: seed=%s, depth=%d, workers=%d",
		cfg.SeedURL, cfg.MaxDepth, cfg.ConcurrentWorkers)

	graph := memory.NewGraph()
	tracker := metrics.NewTracker(cfg.SeedURL)
	h, err := harvest.New(harvest.Options{
		SeedURL:         cfg.SeedURL,
		ArticlePath:     e.cfg.Server.ArticlePath,
		MaxDepth:        cfg.MaxDepth,
		MaxPages:        cfg.MaxPages,
		Workers:         cfg.ConcurrentWorkers,
		RequestTimeout:  time.Duration(cfg.RequestTimeoutMs) * time.Millisecond,
		ContentSelector: cfg.ContentSelector,
	}, e.titles, graph, tracker)
	if err != nil {
		return usageError(err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopProgress := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logrus.Info(tracker.LogProgress())
			case <-stopProgress:
				return
			}
		}
	}()

	runErr := h.Run(ctx)
	close(stopProgress)

	reason := "completed"
	switch {
	case errors.Is(runErr, context.Canceled):
		reason = "signal"
	case runErr != nil:
		reason = "failed"
	}

	// Flushed after a signal too
	logrus.Info("Flushing harvested graph to database...")
	if err := graph.Flush(context.Background(), e.store); err != nil {
		return commandFailed(fmt.Errorf("failed to flush graph: %w", err), "")
	}

	logrus.Info("Final stats: " + tracker.LogProgress())
	if err := tracker.WriteToFile(cfg.MetricsPath, reason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", cfg.MetricsPath)
	}

	if reason == "failed" {
		return commandFailed(runErr, "")
	}
	return nil
}

func PagePutAction(c *cli.Context) error {
	name, source, err := readPageSource(c)
	if err != nil {
		return err
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	t, err := e.titles.Parse(name)
	if err != nil || t.Namespace < 0 {
		return usageError(fmt.Errorf("invalid title %q", name))
	}

	pageID, err := e.store.UpsertPage(c.Context, t.Namespace, t.DBKey, source)
	if err != nil {
		return commandFailed(fmt.Errorf("failed to save page: %w", err), "")
	}
	links := markup.ExtractLinks(e.titles, source)
	if err := e.store.ReplaceLinks(c.Context, pageID, links); err != nil {
		return commandFailed(fmt.Errorf("failed to save links: %w", err), "")
	}

	fmt.Fprintf(c.App.Writer, "Saved %s (page %d, %d links)\n", t.Prefixed(), pageID, len(links))
	return nil
}

// readPageSource returns the title and source of a page put. With --file
// the title comes from the file's front matter unless given as argument.
func readPageSource(c *cli.Context) (string, string, error) {
	name := c.Args().First()

	path := c.String("file")
	if path == "" {
		if name == "" {
			return "", "", usageError(errors.New("page put needs a title or --file"))
		}
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return "", "", commandFailed(fmt.Errorf("failed to read stdin: %w", err), "")
		}
		return name, string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", usageError(fmt.Errorf("failed to read page file: %w", err))
	}
	var meta pageMeta
	body, err := frontmatter.Parse(bytes.NewReader(data), &meta)
	if err != nil {
		return "", "", usageError(fmt.Errorf("parse frontmatter: %w", err))
	}
	if name == "" {
		name = meta.Title
	}
	if name == "" {
		return "", "", usageError(fmt.Errorf("%s has no title", path))
	}
	return name, strings.TrimLeft(string(body), "\n"), nil
}

func PageRenderAction(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	page, err := e.findPage(c, c.Args().First())
	if err != nil {
		return err
	}

	html, out, err := e.renderer.Render(c.Context, page.PageID, page.Content)
	if err != nil {
		return commandFailed(fmt.Errorf("failed to render page: %w", err), "")
	}
	if err := e.store.ReplaceProperties(c.Context, page.PageID, out.Properties); err != nil {
		return commandFailed(fmt.Errorf("failed to save properties: %w", err), "")
	}
	html, err = markup.RenderLinks(c.Context, e.titles, e.linker, e.exists, html)
	if err != nil {
		return commandFailed(fmt.Errorf("failed to render links: %w", err), "")
	}

	fmt.Fprintln(c.App.Writer, html)
	return nil
}

func ListAction(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	html, err := e.counter.RenderWantedList(c.Context, wanted.NewOutput(0), wanted.Params{
		Namespace:      c.String("namespace"),
		SuppressErrors: c.Bool("suppress-errors"),
	})
	if err != nil {
		return commandFailed(err, "")
	}

	fmt.Fprint(c.App.Writer, html)
	if !strings.HasSuffix(html, "\n") {
		fmt.Fprintln(c.App.Writer)
	}
	return nil
}

func CountAction(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	params := wanted.Params{Namespace: c.String("namespace"), Page: c.String("page")}
	if params.Page == "" {
		// freshly computed, the same value a list on the page would record
		ns := e.titles.Namespaces().Index(params.Namespace)
		_, total, err := e.counter.ComputeWanted(c.Context, ns)
		if err != nil {
			return commandFailed(err, "")
		}
		fmt.Fprintln(c.App.Writer, total)
		return nil
	}

	count, err := e.counter.RenderWantedCount(c.Context, wanted.NewOutput(0), params)
	if err != nil {
		return commandFailed(err, "")
	}
	fmt.Fprintln(c.App.Writer, count)
	return nil
}

func ModelAction(c *cli.Context) error {
	raw := strings.Join(c.Args().Slice(), " ")
	if raw == "" {
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return commandFailed(fmt.Errorf("failed to read stdin: %w", err), "")
		}
		raw = string(data)
	}
	fmt.Fprintln(c.App.Writer, wanted.RenderModelMarker(raw))
	return nil
}

func PropsAction(c *cli.Context) error {
	format := c.String("format")
	if format != propsdump.FormatJSON && format != propsdump.FormatYAML {
		return usageError(fmt.Errorf("unknown format %q", format))
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	page, err := e.findPage(c, c.Args().First())
	if err != nil {
		return err
	}
	props, err := propsdump.Dump(c.Context, e.store, page.PageID)
	if err != nil {
		return commandFailed(err, "")
	}
	return commandFailed(propsdump.Write(c.App.Writer, props, format), "")
}

func (e *env) findPage(c *cli.Context, name string) (*storage.Page, error) {
	if name == "" {
		return nil, usageError(errors.New("a page title is required"))
	}
	t, err := e.titles.Parse(name)
	if err != nil {
		return nil, usageError(fmt.Errorf("invalid title %q: %w", name, err))
	}
	page, err := e.store.GetPage(c.Context, t.Namespace, t.DBKey)
	if err != nil {
		return nil, commandFailed(fmt.Errorf("failed to load page: %w", err), "")
	}
	if page == nil {
		return nil, notFound(fmt.Errorf("%s does not exist", t.Prefixed()))
	}
	return page, nil
}
