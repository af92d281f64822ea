package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/aisx/internal/index"
	"github.com/Zuo-Peng/aisx/internal/render"
)

func previewCmd(a *app) *cobra.Command {
	var hitChunkID, context, width int
	var query string

	cmd := &cobra.Command{
		Use:   "preview <session-id>",
		Short: "Preview an indexed conversation around a hit",
		Args:  cobra.ExactArgs(1),
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

			out, _, err := render.RenderConversation(db, args[0], render.Options{
				HitChunkID: hitChunkID,
				Context:    context,
				Width:      width,
				Query:      query,
			})
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().IntVar(&hitChunkID, "hit", -1, "Chunk ID to highlight")
	cmd.Flags().IntVar(&context, "context", 10, "Chunks before/after the hit to show (-1 = all)")
	cmd.Flags().IntVar(&width, "width", 0, "Wrap width in columns (0 = no wrap)")
	cmd.Flags().StringVar(&query, "query", "", "Search query for keyword highlighting")
	return cmd
}
