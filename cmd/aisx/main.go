package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/aisx/internal/config"
	"github.com/Zuo-Peng/aisx/internal/rules"
)

var version = "dev"

// app carries the global flags shared by every subcommand.
type app struct {
	configPath string
	baseDir    string
}

// loadConfig resolves the configuration once per command, applying --base-dir.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if a.baseDir != "" {
		dir, err := filepath.Abs(a.baseDir)
		if err != nil {
			return nil, err
		}
		cfg.ClaudeRoot = dir
	}
	return cfg, nil
}

// loadRules loads the exclusion rules from an explicit path or the configured
// default file. A file that cannot be read disables filtering with a warning.
func (a *app) loadRules(cfg *config.Config, cliPath string) rules.RuleSet {
	set, err := rules.LoadFile(rules.ResolvePath(cliPath, cfg.RulesFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "  WARN: %v (exclusion filtering disabled)\n", err)
		return nil
	}
	if len(set) > 0 {
		fmt.Fprintf(os.Stderr, "Loaded %d exclusion rule(s)\n", len(set))
	}
	return set
}

func main() {
	a := &app{}
	var exportFlags exportOptions

	rootCmd := &cobra.Command{
		Use:   "aisx",
		Short: "Browse, analyze and export Claude Code session logs",
		Long: `aisx reads the JSONL session logs Claude Code writes under ~/.claude/projects.
Run without a subcommand it exports every session (same as "aisx export").`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(a, exportFlags)
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default ~/.config/aisx/config.toml)")
	rootCmd.PersistentFlags().StringVar(&a.baseDir, "base-dir", "", "Claude projects directory (default ~/.claude/projects)")
	exportFlags.register(rootCmd)

	rootCmd.AddCommand(listCmd(a))
	rootCmd.AddCommand(statsCmd(a))
	rootCmd.AddCommand(exportCmd(a))
	rootCmd.AddCommand(indexCmd(a))
	rootCmd.AddCommand(searchCmd(a))
	rootCmd.AddCommand(previewCmd(a))
	rootCmd.AddCommand(openCmd(a))
	rootCmd.AddCommand(doctorCmd(a))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
