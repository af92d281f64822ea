package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/aisx/internal/index"
	"github.com/Zuo-Peng/aisx/internal/search"
)

const debounceDelay = 200 * time.Millisecond

type tuiMode int

const (
	modeSearch tuiMode = iota
	modeList
)

// action is what Enter-like keys do with the selected session.
type action int

const (
	actionResume action = iota
	actionExport
)

// roles is the cycle order of the role filter.
var roles = []string{"", "user", "assistant"}

func nextRole(cur string) string {
	for i, r := range roles {
		if r == cur {
			return roles[(i+1)%len(roles)]
		}
	}
	return roles[0]
}

type searchResultMsg struct {
	query   string
	role    string
	results []search.Result
	err     error
}

type debounceTickMsg struct {
	query string
}

type model struct {
	db          *index.DB
	searchOpts  search.Options
	mode        tuiMode
	query       string
	results     []search.Result
	cursor      int
	listOffset  int
	filterInput textinput.Model
	preview     viewport.Model
	previewKey  string // "sessionKey:chunkID" of the rendered preview
	width       int
	height      int
	ready       bool
	quitting    bool
	chosen      *search.Result
	action      action
}

func newModel(db *index.DB, mode tuiMode, query string, opts search.Options) model {
	ti := textinput.New()
	ti.Placeholder = "Search conversations..."
	if mode == modeList {
		ti.Placeholder = "Filter sessions..."
	}
	ti.Focus()
	ti.SetValue(query)
	ti.Prompt = "> "
	ti.PromptStyle = styleInputPrompt
	ti.TextStyle = styleInput
	ti.CharLimit = 256

	return model{
		db:          db,
		searchOpts:  opts,
		mode:        mode,
		query:       query,
		filterInput: ti,
		preview:     viewport.New(0, 0),
	}
}

// Selection is the session picked in the browser.
type Selection struct {
	Command string // shell command for the chosen action
	Copied  bool   // false when the clipboard was unavailable
}

// Run starts the search TUI and blocks until it exits. It returns nil
// when the user quit without choosing a session.
func Run(db *index.DB, query string, opts search.Options) (*Selection, error) {
	return run(newModel(db, modeSearch, query, opts))
}

// RunList starts the TUI in list mode, most recently updated first.
func RunList(db *index.DB, opts search.Options) (*Selection, error) {
	return run(newModel(db, modeList, "", opts))
}

func run(m model) (*Selection, error) {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	return final.(model).selection(clipboard.WriteAll), nil
}

// selection builds the command for the chosen session and hands it to
// copyFn.
func (m model) selection(copyFn func(string) error) *Selection {
	if m.chosen == nil {
		return nil
	}
	sel := &Selection{Command: ResumeCommand(m.chosen.Session)}
	if m.action == actionExport {
		sel.Command = ExportCommand(m.chosen.Session)
	}
	sel.Copied = copyFn(sel.Command) == nil
	return sel
}

// ResumeCommand is the shell command that reopens a session in Claude Code,
// changing into its working directory first when one is known.
func ResumeCommand(s index.SessionRow) string {
	cmd := "claude --resume " + s.Key
	if s.Cwd == "" {
		return cmd
	}
	return fmt.Sprintf("cd %s && %s", shellQuote(s.Cwd), cmd)
}

// ExportCommand exports the single session to the current directory.
func ExportCommand(s index.SessionRow) string {
	return "aisx export --session " + s.Key
}

func shellQuote(s string) string {
	if !strings.ContainsAny(s, " '\"$`\\&;|<>()*?") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.mode == modeList || m.query != "" {
		cmds = append(cmds, m.requery(m.query))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.onResize(msg)
	case tea.KeyMsg:
		return m.onKey(msg)
	case tea.MouseMsg:
		return m.onMouse(msg)
	case debounceTickMsg:
		if msg.query != m.query {
			return m, nil
		}
		return m, m.requery(msg.query)
	case searchResultMsg:
		return m.onResults(msg)
	case previewRenderedMsg:
		return m.onPreview(msg), nil
	}
	return m, nil
}

func (m model) onResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true
	m.preview = newViewport(m.previewWidth(), m.viewportHeight())
	m.previewKey = ""
	return m, m.loadCurrentPreview()
}

func (m model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Export):
		r, ok := m.current()
		if !ok {
			return m, nil
		}
		m.chosen = &r
		m.action = actionResume
		if key.Matches(msg, keys.Export) {
			m.action = actionExport
		}
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Role):
		m.searchOpts.Role = nextRole(m.searchOpts.Role)
		return m, m.requery(m.query)

	case key.Matches(msg, keys.Up):
		return m.moveCursor(m.cursor - 1)

	case key.Matches(msg, keys.Down):
		return m.moveCursor(m.cursor + 1)

	case key.Matches(msg, keys.PreviewUp):
		m.preview.LineUp(m.viewportHeight() / 2)
		return m, nil

	case key.Matches(msg, keys.PreviewDn):
		m.preview.LineDown(m.viewportHeight() / 2)
		return m, nil

	case key.Matches(msg, keys.PageUp):
		m.preview.LineUp(m.viewportHeight())
		return m, nil

	case key.Matches(msg, keys.PageDown):
		m.preview.LineDown(m.viewportHeight())
		return m, nil
	}

	var cmds []tea.Cmd
	var tiCmd tea.Cmd
	m.filterInput, tiCmd = m.filterInput.Update(msg)
	cmds = append(cmds, tiCmd)
	if q := m.filterInput.Value(); q != m.query {
		m.query = q
		cmds = append(cmds, m.scheduleDebouncedSearch(q))
	}
	return m, tea.Batch(cmds...)
}

// moveCursor selects result i when it exists and loads its preview.
func (m model) moveCursor(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(m.results) || i == m.cursor {
		return m, nil
	}
	m.cursor = i
	m.adjustListScroll(m.panelHeight())
	return m, m.loadCurrentPreview()
}

func (m model) onMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !m.ready || len(m.results) == 0 {
		return m, nil
	}

	region, itemIdx := m.hitTest(msg.X, msg.Y)
	switch {
	case region == regionList && msg.Button == tea.MouseButtonWheelUp:
		if m.listOffset > 0 {
			m.listOffset--
		}
	case region == regionList && msg.Button == tea.MouseButtonWheelDown:
		maxOffset := max(len(m.results)-m.panelHeight()/linesPerItem, 0)
		if m.listOffset < maxOffset {
			m.listOffset++
		}
	case region == regionList && msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
		return m.moveCursor(itemIdx)
	case region == regionPreview && (msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown):
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) onResults(msg searchResultMsg) (tea.Model, tea.Cmd) {
	if msg.query != m.query || msg.role != m.searchOpts.Role {
		return m, nil
	}
	m.cursor = 0
	m.listOffset = 0
	m.previewKey = ""
	if msg.err != nil {
		m.results = nil
		m.preview.SetContent("Error: " + msg.err.Error())
		return m, nil
	}
	m.results = msg.results
	if len(m.results) == 0 {
		m.preview.SetContent("")
		return m, nil
	}
	return m, m.loadCurrentPreview()
}

func (m model) onPreview(msg previewRenderedMsg) model {
	key := previewCacheKey(msg.sessionKey, msg.chunkID)
	if key == m.previewKey {
		return m
	}
	if r, ok := m.current(); ok && key != previewCacheKey(r.Key(), r.ChunkID) {
		return m
	}
	if msg.err != nil {
		m.preview.SetContent("Preview error: " + msg.err.Error())
	} else {
		m.preview.SetContent(msg.content)
		if msg.hitLine > 0 {
			m.preview.SetYOffset(msg.hitLine)
		} else {
			m.preview.GotoTop()
		}
	}
	m.previewKey = key
	return m
}

func (m model) View() string {
	if m.quitting || !m.ready {
		return ""
	}

	listW := m.listWidth()
	previewW := m.previewWidth()
	panelH := m.panelHeight()

	listPanel := stylePanelBorder.
		Width(listW).
		Height(panelH).
		Render(m.renderList(listW, panelH))

	detail := ""
	if r, ok := m.current(); ok {
		detail = runewidth.Truncate(detailText(r.Session), previewW, "…")
	}
	m.preview.Width = previewW
	m.preview.Height = m.viewportHeight()
	previewPanel := styleActiveBorder.
		Width(previewW).
		Height(panelH).
		Render(lipgloss.JoinVertical(lipgloss.Left, styleDetail.Render(detail), m.preview.View()))

	panels := lipgloss.JoinHorizontal(lipgloss.Top, listPanel, previewPanel)
	return lipgloss.JoinVertical(lipgloss.Left, m.filterInput.View(), panels, m.statusBar())
}

// current is the result under the cursor.
func (m model) current() (search.Result, bool) {
	if m.cursor < 0 || m.cursor >= len(m.results) {
		return search.Result{}, false
	}
	return m.results[m.cursor], true
}

func (m model) listWidth() int {
	if m.width <= 0 {
		return 40
	}
	return max(m.width*40/100-4, 20)
}

func (m model) previewWidth() int {
	if m.width <= 0 {
		return 60
	}
	return max(m.width*60/100-4, 20)
}

// panelHeight leaves room for the input row, the status bar and borders.
func (m model) panelHeight() int {
	if m.height <= 0 {
		return 20
	}
	return max(m.height-6, 5)
}

// viewportHeight is the preview area below the session detail line.
func (m model) viewportHeight() int {
	return m.panelHeight() - 1
}

type mouseRegion int

const (
	regionNone mouseRegion = iota
	regionList
	regionPreview
)

// hitTest maps terminal coordinates to a panel region and list item index.
func (m model) hitTest(x, y int) (mouseRegion, int) {
	top := 2 // input row and top border
	if y < top || y > top+m.panelHeight()-1 {
		return regionNone, -1
	}

	lw := m.listWidth()
	switch {
	case x >= 1 && x <= lw:
		return regionList, m.listOffset + (y-top)/linesPerItem
	case x > lw+2:
		return regionPreview, -1
	}
	return regionNone, -1
}

func (m model) statusBar() string {
	noun := "results"
	if m.mode == modeList && m.query == "" {
		noun = "sessions"
	}
	parts := []string{fmt.Sprintf("%d %s", len(m.results), noun)}
	if cost, ok := totalCost(m.results); ok {
		parts = append(parts, fmt.Sprintf("$%.2f est.", cost))
	}
	role := m.searchOpts.Role
	if role == "" {
		role = "all"
	}
	parts = append(parts,
		"role "+role+" (C-r)",
		"Enter resume",
		"C-x export",
		"Esc quit",
	)
	return styleStatusBar.Render(strings.Join(parts, " | "))
}

// totalCost sums the estimated cost of the distinct sessions in results.
// ok is false when none of them is priced.
func totalCost(results []search.Result) (total float64, ok bool) {
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if _, dup := seen[r.Key()]; dup || r.Session.CostUSD == nil {
			continue
		}
		seen[r.Key()] = struct{}{}
		total += *r.Session.CostUSD
		ok = true
	}
	return total, ok
}

// requery reloads results for query under the current filters. In list
// mode an empty query lists sessions instead of searching.
func (m model) requery(query string) tea.Cmd {
	db := m.db
	opts := m.searchOpts
	opts.Query = query
	listing := m.mode == modeList && query == ""
	return func() tea.Msg {
		msg := searchResultMsg{query: query, role: opts.Role}
		switch {
		case listing:
			msg.results, msg.err = search.ListAll(db, opts)
		case query != "":
			msg.results, msg.err = search.Search(db, opts)
		}
		return msg
	}
}

func (m model) scheduleDebouncedSearch(query string) tea.Cmd {
	return tea.Tick(debounceDelay, func(time.Time) tea.Msg {
		return debounceTickMsg{query: query}
	})
}

func (m model) loadCurrentPreview() tea.Cmd {
	r, ok := m.current()
	if !ok || previewCacheKey(r.Key(), r.ChunkID) == m.previewKey {
		return nil
	}
	return loadPreviewCmd(m.db, r, m.query, m.previewWidth())
}

func previewCacheKey(sessionKey string, chunkID int) string {
	return fmt.Sprintf("%s:%d", sessionKey, chunkID)
}
