package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/aisx/internal/index"
	"github.com/Zuo-Peng/aisx/internal/parse"
	"github.com/Zuo-Peng/aisx/internal/scan"
	"github.com/Zuo-Peng/aisx/internal/search"
	"github.com/Zuo-Peng/aisx/internal/tui"
)

const maxListTitle = 60

func listCmd(a *app) *cobra.Command {
	var project, since string
	var interactive bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects, or the sessions of one project",
		Long: `Without --project, print one row per project directory. With --project, print the
titled sessions of matching projects, newest first. --tui opens the interactive
browser over the search index instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			if interactive {
				db, err := index.OpenDB(cfg.DBPath)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := refreshIndex(a, cfg, db); err != nil {
					return err
				}
				sel, err := tui.RunList(db, search.Options{Project: project, Since: since, Limit: limit})
				if err != nil {
					return err
				}
				reportSelection(sel)
				return nil
			}

			projects, err := scan.ListProjects(cfg.ClaudeRoot)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintf(os.Stderr, "No sessions found under %s\n", cfg.ClaudeRoot)
				return nil
			}
			if project == "" {
				printProjects(projects)
				return nil
			}
			return printSessions(projects, project)
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project directory name substring")
	cmd.Flags().BoolVar(&interactive, "tui", false, "Browse indexed sessions interactively")
	cmd.Flags().StringVar(&since, "since", "", "With --tui: sessions updated since date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 0, "With --tui: max sessions (0 = default)")
	return cmd
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238"))).
		Headers(headers...)
}

func printProjects(projects []scan.Project) {
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].LastModified.After(projects[j].LastModified)
	})
	t := newTable("PROJECT", "SESSIONS", "LAST ACTIVE", "DIRECTORY")
	for _, p := range projects {
		t.Row(p.DisplayName, strconv.Itoa(p.SessionCount), humanize.Time(p.LastModified), p.Name)
	}
	fmt.Println(t)
}

func printSessions(projects []scan.Project, filter string) error {
	t := newTable("SESSION", "STARTED", "SIZE", "TITLE")
	rows := 0
	for _, p := range projects {
		if !strings.Contains(p.Name, filter) {
			continue
		}
		sessions, err := scan.ListSessions(p.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  WARN: %v\n", err)
			continue
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].ModTime.After(sessions[j].ModTime)
		})
		for _, s := range sessions {
			h, err := parse.Peek(s.Path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  WARN: peek %s: %v\n", s.Path, err)
				continue
			}
			if h.Title == parse.UntitledTitle {
				continue
			}
			started := h.FirstTimestamp
			if ts, ok := parse.ParseTimestamp(started); ok {
				started = ts.Local().Format("2006-01-02 15:04")
			}
			t.Row(shortID(s.ID), started, s.SizeText(), runewidth.Truncate(h.Title, maxListTitle, "..."))
			rows++
		}
	}
	if rows == 0 {
		return fmt.Errorf("no titled sessions in projects matching %q", filter)
	}
	fmt.Println(t)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func reportSelection(sel *tui.Selection) {
	if sel == nil {
		return
	}
	if sel.Copied {
		fmt.Printf("Copied to clipboard: %s\n", sel.Command)
		return
	}
	fmt.Println(sel.Command)
}
