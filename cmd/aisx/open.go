package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/aisx/internal/index"
	"github.com/Zuo-Peng/aisx/internal/open"
	"github.com/Zuo-Peng/aisx/internal/scan"
)

func openCmd(a *app) *cobra.Command {
	var hitChunkID int

	cmd := &cobra.Command{
		Use:   "open <session-id>",
		Short: "Open the session JSONL file in $EDITOR at the hit line",
		Long: `Open an indexed session at the source line of --hit. Sessions that are not
indexed are looked up by id or unique prefix and opened at the top.`,
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

			if row, err := db.GetSession(args[0]); err == nil && row != nil {
				return open.OpenSession(db, args[0], hitChunkID)
			}
			_, info, err := scan.FindSession(cfg.ClaudeRoot, args[0])
			if err != nil {
				return err
			}
			return open.File(info.Path, 1)
		},
	}

	cmd.Flags().IntVar(&hitChunkID, "hit", -1, "Chunk ID to jump to")
	return cmd
}
