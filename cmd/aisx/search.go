package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/aisx/internal/index"
	"github.com/Zuo-Peng/aisx/internal/search"
	"github.com/Zuo-Peng/aisx/internal/tui"
)

const (
	sColorReset   = "\033[0m"
	sColorBoldRed = "\033[1;31m"
	sColorGreen   = "\033[1;32m"
	sColorDim     = "\033[2m"
)

func colorizeSnippet(snippet string) string {
	return strings.NewReplacer(">>>", sColorBoldRed, "<<<", sColorReset).Replace(snippet)
}

// tsvField flattens a value into a single tab-free column.
func tsvField(s string) string {
	s = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
	if s == "" {
		return "-"
	}
	return s
}

func searchCmd(a *app) *cobra.Command {
	var project, role, since string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across indexed conversations",
		Long: `Search indexed conversations using FTS5 (substring match for CJK queries).
On a terminal this opens the interactive browser. When piped, output is TSV for fzf:
  session id, chunk id, updated at, project, title, snippet

Example shell function:
  aisf() {
    aisx search "$*" | fzf \
      --ansi \
      --delimiter='\t' --with-nth=3.. \
      --preview 'aisx preview {1} --hit {2} --context 5 --query {q}' \
      --preview-window=right:60%:wrap \
      --bind 'enter:execute(aisx open {1} --hit {2})'
  }`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := refreshIndex(a, cfg, db); err != nil {
				return err
			}

			opts := search.Options{
				Project: project,
				Role:    role,
				Since:   since,
				Limit:   limit,
			}

			if term.IsTerminal(int(os.Stdout.Fd())) {
				sel, err := tui.Run(db, args[0], opts)
				if err != nil {
					return err
				}
				reportSelection(sel)
				return nil
			}

			opts.Query = args[0]
			results, err := search.Search(db, opts)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}

			for _, r := range results {
				s := r.Session
				// first two fields stay plain for fzf {1} {2}
				fmt.Printf("%s\t%d\t%s%s%s\t%s%s%s\t%s\t%s\n",
					s.Key,
					r.ChunkID,
					sColorDim, tsvField(s.UpdatedAt), sColorReset,
					sColorGreen, tsvField(s.Project), sColorReset,
					tsvField(s.Title),
					colorizeSnippet(tsvField(r.Snippet)),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project directory name substring")
	cmd.Flags().StringVar(&role, "role", "", "Filter by role (user/assistant)")
	cmd.Flags().StringVar(&since, "since", "", "Filter sessions updated since date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")
	return cmd
}
