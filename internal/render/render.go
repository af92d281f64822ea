package render

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/aisx/internal/index"
)

const (
	colorReset   = "\033[0m"
	colorUser    = "\033[1;34m" // bold blue
	colorAssist  = "\033[1;32m" // bold green
	colorThink   = "\033[2;35m" // dim magenta
	colorDim     = "\033[2m"
	colorHit     = "\033[43m"   // yellow background
	colorBoldRed = "\033[1;31m" // keyword highlights
)

type Options struct {
	HitChunkID int    // -1 renders from the start
	Context    int    // chunks before/after hit to show, <0 = all
	Width      int    // wrap width (0 = no wrap)
	Query      string // search query for keyword highlighting
}

// fts5Operators are query words that are never highlighted.
var fts5Operators = map[string]bool{"AND": true, "OR": true, "NOT": true, "NEAR": true}

// highlightKeywords wraps case-insensitive matches of the query terms in
// bold red.
func highlightKeywords(text, query string) string {
	var alts []string
	for _, t := range strings.Fields(query) {
		t = strings.Trim(t, `"*()`)
		if t == "" || fts5Operators[strings.ToUpper(t)] {
			continue
		}
		alts = append(alts, regexp.QuoteMeta(t))
	}
	if len(alts) == 0 {
		return text
	}
	re := regexp.MustCompile("(?i)" + strings.Join(alts, "|"))
	return re.ReplaceAllStringFunc(text, func(m string) string {
		return colorBoldRed + m + colorReset
	})
}

// indentLines prepends each line of text with the given prefix.
func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// wrapLine breaks a single line into multiple lines that fit within maxWidth
// visible columns, correctly skipping ANSI escape sequences when measuring width.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		// check for ANSI escape sequence: ESC[ ... m
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++ // include 'm'
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}

		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}

	if len(result) == 0 {
		return []string{""}
	}
	return result
}

// RenderConversation renders a window of an indexed session and returns
// the text and the 0-based line of the hit chunk header (-1 if no hit).
func RenderConversation(db *index.DB, sessionKey string, opts Options) (string, int, error) {
	if opts.Context == 0 {
		opts.Context = 10
	}
	if opts.Context < 0 {
		opts.Context = 1000000
	}

	session, err := db.GetSession(sessionKey)
	if err != nil {
		return "", -1, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return "", -1, fmt.Errorf("session not found: %s", sessionKey)
	}

	w, err := db.ChunkWindow(sessionKey, opts.HitChunkID, opts.Context)
	if err != nil {
		return "", -1, fmt.Errorf("get chunks: %w", err)
	}
	if w.Total == 0 {
		return "(empty session)", -1, nil
	}

	p := &printer{width: opts.Width, hitLine: -1}
	p.writeLine(fmt.Sprintf("%s--- %s [%s] %s ---%s", colorDim, sessionKey, session.Project, session.Cwd, colorReset))
	if session.Title != "" {
		p.writeLine(colorDim + session.Title + colorReset)
	}
	if w.Before > 0 {
		p.writeLine(fmt.Sprintf("%s... (%d messages before) ...%s", colorDim, w.Before, colorReset))
	}
	for i, c := range w.Chunks {
		if i > 0 {
			p.writeLine(separator)
		}
		p.chunk(c, i == w.HitIdx, opts.Query)
	}
	if after := w.Total - w.Before - len(w.Chunks); after > 0 {
		p.writeLine(fmt.Sprintf("%s... (%d messages after) ...%s", colorDim, after, colorReset))
	}
	return p.b.String(), p.hitLine, nil
}

var separator = colorDim + strings.Repeat("-", 50) + colorReset

// printer accumulates wrapped output and counts the lines written.
type printer struct {
	b       strings.Builder
	width   int
	lines   int
	hitLine int
}

func (p *printer) writeLine(s string) {
	for _, wl := range wrapLine(s, p.width) {
		p.b.WriteString(wl)
		p.b.WriteString("\n")
		p.lines++
	}
}

func (p *printer) chunk(c index.ChunkRow, isHit bool, query string) {
	if isHit {
		p.hitLine = p.lines
	}
	label, color := roleLabel(c)
	if isHit {
		p.writeLine(fmt.Sprintf("%s>> %s > %s <<%s", colorHit, label, c.Ts, colorReset))
	} else {
		p.writeLine(fmt.Sprintf("%s%s >%s %s%s%s", color, label, colorReset, colorDim, c.Ts, colorReset))
	}

	text := c.Text
	if c.Kind == index.KindThinking {
		text = colorDim + text + colorReset
	}
	text = indentLines(highlightKeywords(text, query), "  ")
	for _, tl := range strings.Split(text, "\n") {
		p.writeLine(tl)
	}
	p.writeLine("")
}

func roleLabel(c index.ChunkRow) (string, string) {
	switch c.Role {
	case "user":
		return "USER", colorUser
	case "assistant":
		if c.Kind == index.KindThinking {
			return "THINK", colorThink
		}
		return "ASST", colorAssist
	}
	return strings.ToUpper(c.Role), colorDim
}
