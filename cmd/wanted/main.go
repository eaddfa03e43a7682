// Command wanted counts, lists and caches the wanted pages of a wiki.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/alvmarrod/wiki-wanted/internal/propsdump"
	"github.com/alvmarrod/wiki-wanted/internal/version"
)

func main() {
	// Configure logging
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := newApp().Run(os.Args); err != nil {
		logrus.Fatalf("%v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "wanted",
		Usage:   "count and list the wanted pages of a wiki",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (.json, .yaml or .toml)",
				EnvVars: []string{"WANTED_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve the wiki over HTTP",
				Action: ServeAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address"},
				},
			},
			{
				Name:   "harvest",
				Usage:  "crawl a live wiki and record its link graph",
				Action: HarvestAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "seed", Usage: "article URL to start from"},
					&cli.IntFlag{Name: "depth", Usage: "link hops to follow from the seed"},
					&cli.IntFlag{Name: "max-pages", Usage: "maximum pages to fetch"},
				},
			},
			{
				Name:  "page",
				Usage: "store and render pages",
				Subcommands: []*cli.Command{
					{
						Name:      "put",
						Usage:     "store page source and its links",
						ArgsUsage: "[title]",
						Action:    PagePutAction,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "page file, title taken from its front matter"},
						},
					},
					{
						Name:      "render",
						Usage:     "render a stored page and save its properties",
						ArgsUsage: "<title>",
						Action:    PageRenderAction,
					},
				},
			},
			{
				Name:   "list",
				Usage:  "print the wanted pages of a namespace",
				Action: ListAction,
				Flags: []cli.Flag{
					namespaceFlag(),
					&cli.BoolFlag{Name: "suppress-errors", Usage: "print nothing for an invalid namespace"},
				},
			},
			{
				Name:   "count",
				Usage:  "print the wanted count of a namespace",
				Action: CountAction,
				Flags: []cli.Flag{
					namespaceFlag(),
					&cli.StringFlag{Name: "page", Aliases: []string{"p"}, Usage: "read the count cached on this page"},
				},
			},
			{
				Name:      "model",
				Usage:     "print the hidden model marker for the given text",
				ArgsUsage: "[text]",
				Action:    ModelAction,
			},
			{
				Name:      "props",
				Usage:     "dump the stored properties of a page",
				ArgsUsage: "<title>",
				Action:    PropsAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: propsdump.FormatJSON, Usage: "json or yaml"},
				},
			},
		},
	}
}

func namespaceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "namespace",
		Aliases: []string{"n"},
		Usage:   "namespace name or number",
	}
}
