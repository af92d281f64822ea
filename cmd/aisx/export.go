package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/aisx/internal/export"
)

type exportOptions struct {
	since     string
	out       string
	format    string
	project   string
	session   string
	rulesPath string
	noZip     bool
}

func (o *exportOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.since, "since", export.SinceAll, "Export all sessions or only those changed since the last export (all|last)")
	f.StringVarP(&o.out, "out", "o", "", "Output directory (default export_dir from config)")
	f.StringVar(&o.format, "format", export.FormatMarkdown, "Output format (md|json|both)")
	f.StringVarP(&o.project, "project", "p", "", "Only export projects whose directory name contains this")
	f.StringVarP(&o.session, "session", "s", "", "Export a single session by id or unique prefix")
	f.StringVarP(&o.rulesPath, "exclude-rules", "e", "", "Exclusion rules file (default ~/.claude-code-chat-browser/exclusion-rules.txt)")
	f.BoolVar(&o.noZip, "no-zip", false, "Write a directory tree instead of a ZIP archive")
}

func (o exportOptions) validate() error {
	switch o.since {
	case export.SinceAll, export.SinceLast:
	default:
		return fmt.Errorf("invalid --since %q (want all or last)", o.since)
	}
	switch o.format {
	case export.FormatMarkdown, export.FormatJSON, export.FormatBoth:
	default:
		return fmt.Errorf("invalid --format %q (want md, json or both)", o.format)
	}
	return nil
}

func exportCmd(a *app) *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export sessions to Markdown/JSON with a manifest",
		Long: `Export sessions as Markdown and/or JSON files laid out as <date>/<project>/,
packaged into claude-code-export-YYYY-MM-DD.zip with a manifest.jsonl.
With --since last only sessions modified after the previous export are written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(a, opts)
		},
	}
	opts.register(cmd)
	return cmd
}

func runExport(a *app, o exportOptions) error {
	if err := o.validate(); err != nil {
		return err
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	out := o.out
	if out == "" {
		out = cfg.ExportDir
	}

	if o.session != "" {
		paths, err := export.Single(export.SingleOptions{
			Root:   cfg.ClaudeRoot,
			ID:     o.session,
			OutDir: out,
			Format: o.format,
		})
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	}

	set := a.loadRules(cfg, o.rulesPath)

	fmt.Fprintf(os.Stderr, "Exporting from %s (since %s)...\n", cfg.ClaudeRoot, o.since)
	start := time.Now()
	res, err := export.Run(export.Options{
		Root:      cfg.ClaudeRoot,
		OutDir:    out,
		StateFile: cfg.StateFile,
		Since:     o.since,
		Format:    o.format,
		Project:   o.project,
		NoZip:     o.noZip,
		Rules:     set,
		Workers:   cfg.Workers,
	})
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "  WARN: %v\n", w)
	}

	if len(res.Manifest) == 0 {
		fmt.Fprintf(os.Stderr, "Nothing to export (%d sessions in %d projects, %d skipped).\n",
			res.Total, res.Projects, res.Skipped)
		return nil
	}
	fmt.Fprintf(os.Stderr, "Exported %d sessions (%d skipped) in %s.\n",
		len(res.Manifest), res.Skipped, time.Since(start).Round(time.Millisecond))
	if res.ZipPath != "" {
		fmt.Println(res.ZipPath)
	} else {
		fmt.Println(out)
	}
	return nil
}
