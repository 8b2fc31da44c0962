package main

import (
	"fmt"

	"github.com/magnolia-blog/magnolia/internal/config"
	"github.com/magnolia-blog/magnolia/internal/kv"
	"github.com/magnolia-blog/magnolia/internal/logger"
	"github.com/magnolia-blog/magnolia/internal/repository"
	"github.com/magnolia-blog/magnolia/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli carries state shared by every subcommand
type cli struct {
	configPath string
	verbose    bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{log: zap.NewNop()}

	root := &cobra.Command{
		Use:           "magnolia",
		Short:         "Manage a Magnolia blog from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.NewCLILogger(c.verbose)
			if err != nil {
				return err
			}
			c.log = log

			cfg, err := config.LoadFile(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.log.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default ./config.json or ./config/config.json)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newBuildCmd(c),
		newExportCmd(c),
		newImportCmd(c),
	)
	return root
}

// openStore opens the badger store at path, falling back to kv.path. The
// API server holds an exclusive lock on its store, so this fails while the
// server is running against the same directory.
func (c *cli) openStore(path string) (*kv.Store, error) {
	kvCfg := kv.ConfigFrom(&c.cfg.KV)
	if path != "" {
		kvCfg.Path = path
	}
	kvCfg.InMemory = false
	kvCfg.GCInterval = 0

	store, err := kv.Open(kvCfg, c.log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s (is the server running?): %w", kvCfg.Path, err)
	}
	return store, nil
}

func (c *cli) articleService(store *kv.Store) *service.ArticleService {
	return service.NewArticleService(repository.NewArticleRepository(store), c.cfg.Site.DefaultCategory, c.log)
}
