package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/aisx/internal/index"
)

func TestWrapLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		width int
		want  []string
	}{
		{"no wrap", "hello", 0, []string{"hello"}},
		{"fits", "hello", 5, []string{"hello"}},
		{"split", "abcdef", 4, []string{"abcd", "ef"}},
		{"wide runes", "日本語", 4, []string{"日本", "語"}},
		{"ansi not counted", "\033[1mabcd\033[0m", 4, []string{"\033[1mabcd\033[0m"}},
		{"empty", "", 4, []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapLine(tt.line, tt.width)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("wrapLine(%q, %d) = %q, want %q", tt.line, tt.width, got, tt.want)
			}
			for _, l := range got {
				if w := runewidth.StringWidth(stripANSI(l)); tt.width > 0 && w > tt.width {
					t.Errorf("line %q is %d columns wide", l, w)
				}
			}
		})
	}
}

func stripANSI(s string) string {
	for {
		i := strings.Index(s, "\033[")
		if i < 0 {
			return s
		}
		j := strings.IndexByte(s[i:], 'm')
		if j < 0 {
			return s
		}
		s = s[:i] + s[i+j+1:]
	}
}

func TestHighlightKeywords(t *testing.T) {
	tests := []struct {
		text, query, want string
	}{
		{"Retry the Loop", "loop", "Retry the " + colorBoldRed + "Loop" + colorReset},
		{"x and y", "x AND y", colorBoldRed + "x" + colorReset + " and " + colorBoldRed + "y" + colorReset},
		{"x.y", `"x.y"`, colorBoldRed + "x.y" + colorReset},
		{"unchanged", "", "unchanged"},
		{"only ops", "OR NOT", "only ops"},
	}
	for _, tt := range tests {
		if got := highlightKeywords(tt.text, tt.query); got != tt.want {
			t.Errorf("highlightKeywords(%q, %q) = %q, want %q", tt.text, tt.query, got, tt.want)
		}
	}
}

func TestRenderConversation(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "-proj")
	os.MkdirAll(dir, 0o755)
	os.WriteFile(filepath.Join(dir, "s1.jsonl"), []byte(strings.Join([]string{
		`{"type":"user","timestamp":"2026-01-01T10:00:00Z","cwd":"/proj","message":{"content":"first question"}}`,
		`{"type":"assistant","timestamp":"2026-01-01T10:00:01Z","message":{"content":[{"type":"text","text":"first answer"}]}}`,
		`{"type":"user","timestamp":"2026-01-01T10:00:02Z","message":{"content":"second question"}}`,
	}, "\n")), 0o644)

	db, err := index.OpenDB(filepath.Join(t.TempDir(), "x.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := index.IndexAll(db, index.Options{Root: root}); err != nil {
		t.Fatal(err)
	}

	out, hit, err := RenderConversation(db, "s1", Options{HitChunkID: 1, Context: 1, Query: "answer"})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(out, "\n")
	if hit < 0 || !strings.Contains(lines[hit], ">> ASST") {
		t.Fatalf("hit line %d of:\n%s", hit, out)
	}
	if !strings.Contains(out, colorBoldRed+"answer"+colorReset) {
		t.Error("query not highlighted")
	}

	out, hit, err = RenderConversation(db, "s1", Options{HitChunkID: 0, Context: 0})
	if err != nil || hit != 2 {
		t.Errorf("hit = %d, err = %v", hit, err)
	}
	if !strings.Contains(out, "second question") {
		t.Errorf("unexpected render:\n%s", out)
	}

	if _, _, err := RenderConversation(db, "missing", Options{}); err == nil {
		t.Error("expected error for unknown session")
	}
}
