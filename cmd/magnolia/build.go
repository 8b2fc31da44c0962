package main

import (
	"fmt"
	"time"

	"github.com/magnolia-blog/magnolia/internal/site"
	"github.com/magnolia-blog/magnolia/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type buildOptions struct {
	db     string
	apiURL string
	out    string
	dryRun bool
}

func newBuildCmd(c *cli) *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate the static site",
		Long: `Generate the static site from the article store or, with --api-url,
from the public article API of a running server.

Output goes to --out when given, otherwise to the configured site output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.db, "db", "", "path of the article store (default kv.path)")
	f.StringVar(&opts.apiURL, "api-url", "", "base URL of a running server to read articles from")
	f.StringVarP(&opts.out, "out", "o", "", "output directory")
	f.BoolVar(&opts.dryRun, "dry-run", false, "render without writing any files")
	cmd.MarkFlagsMutuallyExclusive("db", "api-url")
	cmd.MarkFlagsMutuallyExclusive("out", "dry-run")
	return cmd
}

func (c *cli) runBuild(cmd *cobra.Command, opts buildOptions) error {
	ctx := cmd.Context()

	var source site.Source
	if opts.apiURL != "" {
		source = site.NewAPISource(opts.apiURL, nil)
		c.log.Debug("reading articles from API", zap.String("url", opts.apiURL))
	} else {
		store, err := c.openStore(opts.db)
		if err != nil {
			return err
		}
		defer store.Close()
		source = site.NewStoreSource(c.articleService(store))
	}

	var publisher storage.Publisher
	switch {
	case opts.dryRun:
		publisher = storage.NewMemoryStorage()
	case opts.out != "":
		local, err := storage.NewLocalStorage(opts.out)
		if err != nil {
			return err
		}
		publisher = local
	default:
		p, err := storage.NewPublisher(&c.cfg.Site, c.log)
		if err != nil {
			return err
		}
		publisher = p
	}

	generator, err := site.NewGenerator(site.ConfigFrom(&c.cfg.Site), publisher, c.log)
	if err != nil {
		return err
	}

	articles, err := source.Articles(ctx)
	if err != nil {
		return err
	}
	result, err := generator.Build(ctx, articles)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	verb := "Built"
	if opts.dryRun {
		verb = "Rendered"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d pages from %d articles (%d stale files removed) in %s\n",
		verb, result.Pages, len(articles), result.Removed, result.Duration.Round(time.Millisecond))
	return nil
}
