package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/alvmarrod/wiki-wanted/internal/config"
	"github.com/alvmarrod/wiki-wanted/internal/markup"
	"github.com/alvmarrod/wiki-wanted/internal/namespace"
	"github.com/alvmarrod/wiki-wanted/internal/render"
	"github.com/alvmarrod/wiki-wanted/internal/storage"
	"github.com/alvmarrod/wiki-wanted/internal/title"
	"github.com/alvmarrod/wiki-wanted/internal/wanted"
)

// env holds the components shared by every command
type env struct {
	cfg      *config.Config
	store    *storage.Storage
	titles   *title.Parser
	linker   *render.HTMLLinker
	counter  *wanted.Counter
	renderer *markup.Renderer
}

// loadConfig reads --config, or falls back to the defaults when the flag
// is not set, then applies --log-level.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, usageError(fmt.Errorf("invalid log level: %w", err))
	}
	logrus.SetLevel(level)

	return cfg, nil
}

func openEnv(c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStorage(c.Context, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, commandFailed(fmt.Errorf("failed to open database: %w", err), storageOpenFailure)
	}
	logrus.Debugf("Database opened: %s", cfg.Database.Driver)

	titles := title.NewParser(namespace.NewResolver(cfg.Namespaces))
	linker := render.NewHTMLLinker(cfg.Server.ArticlePath)
	counter := wanted.NewCounter(store, titles, linker, render.NewCatalog(cfg.Messages))

	return &env{
		cfg:      cfg,
		store:    store,
		titles:   titles,
		linker:   linker,
		counter:  counter,
		renderer: markup.NewRenderer(counter),
	}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		logrus.Warnf("Failed to close database: %v", err)
	}
}

func (e *env) exists(ctx context.Context, t title.Title) (bool, error) {
	page, err := e.store.GetPage(ctx, t.Namespace, t.DBKey)
	return page != nil, err
}
