package main

import (
	"fmt"

	"github.com/magnolia-blog/magnolia/internal/transfer"
	"github.com/spf13/cobra"
)

func newExportCmd(c *cli) *cobra.Command {
	var db, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every article to a Markdown file with YAML front matter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore(db)
			if err != nil {
				return err
			}
			defer store.Close()

			articles, err := c.articleService(store).ListAll(cmd.Context())
			if err != nil {
				return err
			}
			n, err := transfer.Export(cmd.Context(), articles, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d articles to %s\n", n, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "path of the article store (default kv.path)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "directory to write the Markdown files to")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newImportCmd(c *cli) *cobra.Command {
	var db, dir string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create or update articles from Markdown files",
		Long: `Read every .md file in --dir. An article whose slug already exists is
updated, otherwise a new article is created. The first invalid file stops
the import; files before it stay imported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore(db)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := transfer.Import(cmd.Context(), dir, c.articleService(store))
			if result != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d, updated %d articles\n", result.Created, result.Updated)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "path of the article store (default kv.path)")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory containing Markdown files")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}
