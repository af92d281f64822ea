package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/aisx/internal/config"
	"github.com/Zuo-Peng/aisx/internal/index"
)

func indexCmd(a *app) *cobra.Command {
	var rulesPath string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Scan and index session logs for full-text search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			set := a.loadRules(cfg, rulesPath)

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			fmt.Fprintf(os.Stderr, "Scanning %s...\n", cfg.ClaudeRoot)
			st, err := index.IndexAll(db, index.Options{Root: cfg.ClaudeRoot, Rules: set})
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			printWarnings(st.Warnings)
			fmt.Fprintf(os.Stderr, "Done. %s\n", st)
			return nil
		},
	}
	cmd.Flags().StringVarP(&rulesPath, "exclude-rules", "e", "", "Exclusion rules file")
	return cmd
}

// refreshIndex brings the index up to date before a query, honoring the
// default exclusion rules file.
func refreshIndex(a *app, cfg *config.Config, db *index.DB) error {
	st, err := index.IndexAll(db, index.Options{Root: cfg.ClaudeRoot, Rules: a.loadRules(cfg, "")})
	if err != nil {
		return err
	}
	printWarnings(st.Warnings)
	return nil
}

func printWarnings(warnings []error) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "  WARN: %v\n", w)
	}
}
