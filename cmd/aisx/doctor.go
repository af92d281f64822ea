package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/aisx/internal/config"
	"github.com/Zuo-Peng/aisx/internal/index"
	"github.com/Zuo-Peng/aisx/internal/marker"
	"github.com/Zuo-Peng/aisx/internal/rules"
	"github.com/Zuo-Peng/aisx/internal/scan"
)

func doctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify config, logs, export state, rules, DB and FTS5",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("=== Config ===")
			path := a.configPath
			if path == "" {
				var err error
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}
			checkFile("File", path)
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("  Workers: %d\n", cfg.Workers)
			fmt.Printf("  Terminal: %v\n", term.IsTerminal(int(os.Stdout.Fd())))

			fmt.Println("\n=== Sessions ===")
			checkDir("Root", cfg.ClaudeRoot)
			files, err := scan.WalkSessions(cfg.ClaudeRoot)
			if err != nil {
				fmt.Printf("  scan error: %v\n", err)
			} else {
				var size int64
				for _, f := range files {
					size += f.Size
				}
				projects, _ := scan.ListProjects(cfg.ClaudeRoot)
				fmt.Printf("  Projects: %d\n", len(projects))
				fmt.Printf("  JSONL files: %d (%s)\n", len(files), humanize.Bytes(uint64(size)))
			}

			fmt.Println("\n=== Export ===")
			checkFile("State", cfg.StateFile)
			if st := marker.Load(cfg.StateFile); st.LastExportTime != "" {
				fmt.Printf("  Last export: %s (%d sessions to %s)\n", st.LastExportTime, st.ExportedCount, st.ExportDir)
				fmt.Printf("  Tracked sessions: %d\n", len(st.Sessions))
			}
			checkFile("Rules", cfg.RulesFile)
			if set, err := rules.LoadFile(rules.ResolvePath("", cfg.RulesFile)); err != nil {
				fmt.Printf("  Rules error: %v\n", err)
			} else {
				fmt.Printf("  Rules loaded: %d\n", len(set))
			}

			fmt.Println("\n=== Database ===")
			fmt.Printf("  Path: %s\n", cfg.DBPath)
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (run 'aisx index' first)")
				return nil
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			sessionCount, err := db.SessionCount()
			if err != nil {
				return fmt.Errorf("count sessions: %w", err)
			}
			chunkCount, err := db.ChunkCount()
			if err != nil {
				return fmt.Errorf("count chunks: %w", err)
			}
			fmt.Printf("  Sessions: %d\n", sessionCount)
			fmt.Printf("  Chunks:   %d\n", chunkCount)

			fmt.Println("\n=== FTS5 ===")
			var ftsCount int
			if err := db.Raw().QueryRow("SELECT COUNT(*) FROM chunks_fts").Scan(&ftsCount); err != nil {
				fmt.Printf("  FTS5 error: %v\n", err)
			} else {
				fmt.Printf("  FTS5 entries: %d\n", ftsCount)
				if ftsCount == chunkCount {
					fmt.Println("  Status: OK (synced)")
				} else {
					fmt.Printf("  Status: MISMATCH (chunks=%d, fts=%d)\n", chunkCount, ftsCount)
				}
			}

			if info, err := os.Stat(cfg.DBPath); err == nil {
				fmt.Printf("\n=== DB Size: %s ===\n", humanize.Bytes(uint64(info.Size())))
			}
			return nil
		},
	}
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}

func checkFile(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (not present)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (%s)\n", name, path, humanize.Bytes(uint64(info.Size())))
	}
}
