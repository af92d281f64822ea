package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/aisx/internal/parse"
	"github.com/Zuo-Peng/aisx/internal/scan"
	"github.com/Zuo-Peng/aisx/internal/stats"
)

type sessionReport struct {
	SessionID string         `json:"session_id"`
	Title     string         `json:"title"`
	Project   string         `json:"project"`
	Metadata  parse.Metadata `json:"metadata"`
	Stats     stats.Stats    `json:"stats"`
}

func statsCmd(a *app) *cobra.Command {
	var sessionID, project, format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show token, cost, tool and file statistics",
		Long: `Show statistics for one session (--session), or a per-project summary of the
titled sessions of all (or --project matching) projects.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("invalid --format %q (want text or json)", format)
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			var reports []sessionReport
			if sessionID != "" {
				p, info, err := scan.FindSession(cfg.ClaudeRoot, sessionID)
				if err != nil {
					return err
				}
				r, err := buildReport(p, info.Path)
				if err != nil {
					return err
				}
				reports = append(reports, r)
			} else {
				reports, err = collectReports(cfg.ClaudeRoot, project)
				if err != nil {
					return err
				}
			}

			if format == "json" {
				var v any = reports
				if sessionID != "" {
					v = reports[0]
				}
				data, err := json.MarshalIndent(v, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			if sessionID != "" {
				printSessionStats(reports[0])
				return nil
			}
			printSummary(reports)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id or unique prefix")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project directory name substring")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text|json)")
	return cmd
}

func buildReport(p scan.Project, path string) (sessionReport, error) {
	s, err := parse.ParseFile(path)
	if err != nil {
		return sessionReport{}, err
	}
	return sessionReport{
		SessionID: s.ID,
		Title:     s.Title,
		Project:   p.DisplayName,
		Metadata:  s.Metadata,
		Stats:     stats.Compute(s),
	}, nil
}

func collectReports(root, filter string) ([]sessionReport, error) {
	projects, err := scan.ListProjects(root)
	if err != nil {
		return nil, err
	}
	reports := []sessionReport{}
	for _, p := range projects {
		if filter != "" && !strings.Contains(p.Name, filter) {
			continue
		}
		sessions, err := scan.ListSessions(p.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  WARN: %v\n", err)
			continue
		}
		for _, s := range sessions {
			r, err := buildReport(p, s.Path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  WARN: parse %s: %v\n", s.Path, err)
				continue
			}
			if r.Title == parse.UntitledTitle {
				continue
			}
			reports = append(reports, r)
		}
	}
	return reports, nil
}

func printSessionStats(r sessionReport) {
	m, st := r.Metadata, r.Stats
	row := func(label, value string) {
		if value != "" {
			fmt.Printf("%-13s %s\n", label, value)
		}
	}
	row("Session", r.SessionID)
	row("Title", r.Title)
	row("Project", r.Project)
	row("Branch", m.GitBranch)
	row("Started", m.FirstTimestamp)
	row("Duration", st.WallClockDisplay)
	row("Turns", strconv.Itoa(st.ConversationTurns))
	row("Models", strings.Join(m.ModelsUsed, ", "))
	row("Tokens", fmt.Sprintf("in %s / out %s / cache read %s / cache write %s",
		humanize.Comma(m.TotalInputTokens), humanize.Comma(m.TotalOutputTokens),
		humanize.Comma(m.TotalCacheReadTokens), humanize.Comma(m.TotalCacheCreationTokens)))
	row("Cost", formatCost(st.CostEstimateUSD))
	row("Tool calls", strings.TrimSpace(fmt.Sprintf("%d  %s", m.TotalToolCalls, formatCounts(m.ToolCallCounts))))
	ft := st.FilesTouched
	row("Files", fmt.Sprintf("%d read, %d written, %d created (%d unique)",
		len(ft.Read), len(ft.Written), len(ft.Created), ft.TotalUnique))
	row("Commands", strconv.Itoa(len(st.CommandsRun)))
	row("URLs", strconv.Itoa(len(st.URLsAccessed)))
	row("Results", formatCounts(st.ToolResultSummary))
	row("Stop reasons", formatCounts(st.StopReasonSummary))
	row("Compactions", strconv.Itoa(len(st.CompactionEvents)))
	row("Sidechain", strconv.Itoa(st.SidechainMessageCount))
	row("API errors", strconv.Itoa(st.APIErrorCount))
}

func printSummary(reports []sessionReport) {
	type total struct {
		sessions  int
		tokens    int64
		toolCalls int
		cost      float64
	}
	byProject := map[string]*total{}
	var names []string
	var all total
	for _, r := range reports {
		t := byProject[r.Project]
		if t == nil {
			t = &total{}
			byProject[r.Project] = t
			names = append(names, r.Project)
		}
		for _, x := range []*total{t, &all} {
			x.sessions++
			x.tokens += r.Metadata.TotalInputTokens + r.Metadata.TotalOutputTokens
			x.toolCalls += r.Metadata.TotalToolCalls
			if c := r.Stats.CostEstimateUSD; c != nil {
				x.cost += *c
			}
		}
	}
	sort.Strings(names)

	tbl := newTable("PROJECT", "SESSIONS", "TOKENS", "TOOL CALLS", "COST")
	addRow := func(name string, t total) {
		tbl.Row(name, strconv.Itoa(t.sessions), humanize.Comma(t.tokens), strconv.Itoa(t.toolCalls), fmt.Sprintf("$%.2f", t.cost))
	}
	for _, n := range names {
		addRow(n, *byProject[n])
	}
	addRow("TOTAL", all)
	fmt.Println(tbl)
}

func formatCost(c *float64) string {
	if c == nil {
		return "n/a"
	}
	return fmt.Sprintf("$%.4f (estimate)", *c)
}

// formatCounts renders a histogram as "name n" pairs, largest first.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}
