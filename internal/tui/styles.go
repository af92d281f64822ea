package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("12")  // bright blue
	colorProject = lipgloss.Color("10")  // bright green
	colorMuted   = lipgloss.Color("240") // gray
	colorCursor  = lipgloss.Color("11")  // bright yellow
	colorFrame   = lipgloss.Color("238") // dark gray
	colorUsage   = lipgloss.Color("179") // amber

	styleInput       = lipgloss.NewStyle().Foreground(colorAccent)
	styleInputPrompt = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)

	styleListSelected = lipgloss.NewStyle().Foreground(colorCursor).Bold(true)
	styleProject      = lipgloss.NewStyle().Foreground(colorProject)
	styleSnippet      = lipgloss.NewStyle().Foreground(colorMuted)

	// styleDetail renders the session usage line above the preview.
	styleDetail = lipgloss.NewStyle().Foreground(colorUsage).Bold(true)

	stylePanelBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorFrame)

	styleActiveBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorAccent)

	styleStatusBar = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
)
