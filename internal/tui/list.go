package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/aisx/internal/search"
)

// linesPerItem is the number of terminal lines each result occupies.
const linesPerItem = 2

// renderList renders the left panel: search results list with scrolling.
func (m model) renderList(width, height int) string {
	if len(m.results) == 0 {
		return styleSnippet.
			Width(width).
			Height(height).
			Align(lipgloss.Center, lipgloss.Center).
			Render("No results")
	}

	var lines []string
	for i, r := range m.results {
		if i < m.listOffset {
			continue
		}
		if len(lines)+linesPerItem > height {
			break
		}
		rows := formatResultLine(r, width, i == m.cursor)
		lines = append(lines, rows...)
	}

	// Pad remaining lines
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}

	return strings.Join(lines, "\n")
}

// projectWidth is the column reserved for the project label.
const projectWidth = 12

// formatResultLine formats a result as two lines:
//
//	line 1: [>] project  MM-DD  title
//	line 2:    snippet, or usage totals for listings (dimmed)
func formatResultLine(r search.Result, width int, selected bool) []string {
	s := r.Session
	label := runewidth.FillRight(runewidth.Truncate(projectLabel(s.Cwd, s.Project), projectWidth, ""), projectWidth)

	date := s.UpdatedAt
	if len(date) >= 10 {
		date = date[5:10]
	}

	title := strings.ReplaceAll(s.Title, "\n", " ")
	titleMax := max(width-2-projectWidth-1-5-2, 0)
	title = runewidth.Truncate(title, titleMax, "")

	line1 := fmt.Sprintf("%s %s %s", styleProject.Render(label), date, title)
	if selected {
		line1 = styleListSelected.Render("> ") + line1
	} else {
		line1 = "  " + line1
	}

	detail := r.Snippet
	if r.ChunkID < 0 {
		detail = usageLine(r)
	}
	detail = strings.NewReplacer("\n", " ", "\t", " ", ">>>", "", "<<<", "").Replace(detail)
	detail = runewidth.Truncate(detail, max(width-4, 0), "")
	line2 := "    " + styleSnippet.Render(detail)

	return []string{line1, line2}
}

// projectLabel is the last folder of cwd, or the project directory name.
func projectLabel(cwd, project string) string {
	cwd = strings.TrimRight(cwd, "/")
	if i := strings.LastIndex(cwd, "/"); i >= 0 && i < len(cwd)-1 {
		return cwd[i+1:]
	}
	return strings.TrimLeft(project, "-")
}

func usageLine(r search.Result) string {
	s := r.Session
	parts := []string{
		humanize.Comma(s.InputTokens+s.OutputTokens) + " tokens",
		fmt.Sprintf("%d tool calls", s.ToolCalls),
	}
	if s.CostUSD != nil {
		parts = append(parts, fmt.Sprintf("$%.2f", *s.CostUSD))
	}
	if len(s.Models) > 0 {
		parts = append(parts, strings.Join(s.Models, ","))
	}
	return strings.Join(parts, " · ")
}

// adjustListScroll keeps the cursor visible within the list viewport.
func (m *model) adjustListScroll(listHeight int) {
	visibleItems := listHeight / linesPerItem
	if visibleItems < 1 {
		visibleItems = 1
	}
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+visibleItems {
		m.listOffset = m.cursor - visibleItems + 1
	}
}
