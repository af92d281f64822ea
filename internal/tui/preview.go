package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/Zuo-Peng/aisx/internal/index"
	"github.com/Zuo-Peng/aisx/internal/render"
	"github.com/Zuo-Peng/aisx/internal/search"
)

// previewRenderedMsg is sent when an async preview render completes.
type previewRenderedMsg struct {
	sessionKey string
	chunkID    int
	content    string
	hitLine    int
	err        error
}

// loadPreviewCmd renders the conversation around r off the update loop.
func loadPreviewCmd(db *index.DB, r search.Result, query string, width int) tea.Cmd {
	return func() tea.Msg {
		content, hitLine, err := render.RenderConversation(db, r.Key(), render.Options{
			HitChunkID: r.ChunkID,
			Context:    -1,
			Width:      width,
			Query:      query,
		})
		return previewRenderedMsg{
			sessionKey: r.Key(),
			chunkID:    r.ChunkID,
			content:    content,
			hitLine:    hitLine,
			err:        err,
		}
	}
}

// newViewport creates the preview viewport. The surrounding panel draws
// the border.
func newViewport(width, height int) viewport.Model {
	return viewport.New(width, height)
}

// detailText is the one-line session summary above the preview: branch,
// models, token totals, tool calls and estimated cost.
func detailText(s index.SessionRow) string {
	var parts []string
	if s.GitBranch != "" {
		parts = append(parts, "⎇ "+s.GitBranch)
	}
	if len(s.Models) > 0 {
		models := make([]string, len(s.Models))
		for i, m := range s.Models {
			models[i] = strings.TrimPrefix(m, "claude-")
		}
		parts = append(parts, strings.Join(models, ","))
	}
	parts = append(parts, fmt.Sprintf("in %s / out %s",
		humanize.Comma(s.InputTokens), humanize.Comma(s.OutputTokens)))
	if s.ToolCalls > 0 {
		parts = append(parts, fmt.Sprintf("%d tool calls", s.ToolCalls))
	}
	if s.CostUSD != nil {
		parts = append(parts, fmt.Sprintf("$%.2f", *s.CostUSD))
	}
	return strings.Join(parts, " · ")
}
