package export

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/Zuo-Peng/aisx/internal/marker"
	"github.com/Zuo-Peng/aisx/internal/parse"
	"github.com/Zuo-Peng/aisx/internal/rules"
	"github.com/Zuo-Peng/aisx/internal/stats"
)

var now = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func writeFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func fixture(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "-home-me-webapp", "sess0001-aaaa.jsonl"),
		`{"type":"user","timestamp":"2026-03-01T10:00:00Z","cwd":"/home/me/webapp","message":{"content":"Fix login bug"}}`,
		`{"type":"assistant","timestamp":"2026-03-01T10:01:00Z","message":{"model":"claude-sonnet-4","usage":{"input_tokens":1000,"output_tokens":200},"content":[{"type":"text","text":"Looking."},{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"go test ./..."}}]}}`,
		`{"type":"user","timestamp":"2026-03-01T10:01:30Z","toolUseResult":{"stdout":"ok","stderr":"","interrupted":false},"message":{"content":[{"type":"tool_result","tool_use_id":"t1","content":"ok"}]}}`,
	)
	writeFile(t, filepath.Join(root, "-home-me-webapp", "sess0002-bbbb.jsonl"),
		`{"type":"user","timestamp":"2026-03-01T12:00:00Z","message":{"content":"rotate the secret token"}}`,
	)
	writeFile(t, filepath.Join(root, "-srv-api", "sess0003-cccc.jsonl"),
		`{"type":"summary","summary":"nothing"}`,
	)
	return root
}

func TestRunZip(t *testing.T) {
	root := fixture(t)
	out := t.TempDir()
	state := filepath.Join(t.TempDir(), "state.json")

	res, err := Run(Options{Root: root, OutDir: out, StateFile: state, Format: FormatBoth, Now: now, Workers: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 3 || res.Skipped != 1 || len(res.Manifest) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.ZipPath != filepath.Join(out, "claude-code-export-2026-03-02.zip") {
		t.Errorf("ZipPath = %q", res.ZipPath)
	}

	zr, err := zip.OpenReader(res.ZipPath)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Method != zip.Deflate {
			t.Errorf("%s stored with method %d", f.Name, f.Method)
		}
	}
	sort.Strings(names)
	want := []string{
		"2026-03-01/home-me-webapp/2026-03-01T10-00-00__fix-login-bug__sess0001.json",
		"2026-03-01/home-me-webapp/2026-03-01T10-00-00__fix-login-bug__sess0001.md",
		"2026-03-01/home-me-webapp/2026-03-01T12-00-00__rotate-the-secret-token__sess0002.json",
		"2026-03-01/home-me-webapp/2026-03-01T12-00-00__rotate-the-secret-token__sess0002.md",
		"manifest.jsonl",
	}
	if strings.Join(names, "\n") != strings.Join(want, "\n") {
		t.Errorf("zip entries:\n%s", strings.Join(names, "\n"))
	}

	st := marker.Load(state)
	if st.ExportedCount != 2 || len(st.Sessions) != 2 || st.ExportDir != out {
		t.Errorf("state = %+v", st)
	}
	if st.LastExportTime != "2026-03-02T09:30:00" {
		t.Errorf("LastExportTime = %q", st.LastExportTime)
	}
}

func TestRunNoZipManifest(t *testing.T) {
	root := fixture(t)
	out := t.TempDir()

	res, err := Run(Options{Root: root, OutDir: out, StateFile: filepath.Join(out, "state.json"), NoZip: true, Now: now})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ZipPath != "" {
		t.Errorf("unexpected zip %q", res.ZipPath)
	}

	md, err := os.ReadFile(filepath.Join(out, "2026-03-01", "home-me-webapp", "2026-03-01T10-00-00__fix-login-bug__sess0001.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(md), "---\ntitle: Fix login bug\n") {
		t.Errorf("markdown head:\n%s", md[:80])
	}

	data, err := os.ReadFile(filepath.Join(out, "manifest.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("manifest lines = %d", len(lines))
	}
	var first ManifestEntry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first.SessionID != "sess0001-aaaa" || first.Tokens != 1200 || first.ToolCalls != 1 || first.CommandsRun != 1 {
		t.Errorf("manifest entry = %+v", first)
	}
	if first.CostEstimateUSD == nil || *first.CostEstimateUSD != 0.006 {
		t.Errorf("cost = %v", first.CostEstimateUSD)
	}
	if first.WallClockSeconds == nil || *first.WallClockSeconds != 90 {
		t.Errorf("wall clock = %v", first.WallClockSeconds)
	}
}

func TestRunSinceLast(t *testing.T) {
	root := fixture(t)
	out := t.TempDir()
	state := filepath.Join(t.TempDir(), "state.json")
	opts := Options{Root: root, OutDir: out, StateFile: state, Since: SinceLast, NoZip: true, Now: now}

	if _, err := Run(opts); err != nil {
		t.Fatal(err)
	}
	res, err := Run(opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Manifest) != 0 || res.Skipped != 3 {
		t.Errorf("second run = %+v", res)
	}

	// a touched session becomes eligible again
	path := filepath.Join(root, "-home-me-webapp", "sess0002-bbbb.jsonl")
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	res, err = Run(opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Manifest) != 1 || res.Manifest[0].SessionID != "sess0002-bbbb" {
		t.Errorf("third run = %+v", res.Manifest)
	}
	if st := marker.Load(state); len(st.Sessions) != 2 || st.ExportedCount != 1 {
		t.Errorf("state = %+v", st)
	}
}

func TestRunExclusionAndProjectFilter(t *testing.T) {
	root := fixture(t)
	out := t.TempDir()
	set, err := rules.Load(strings.NewReader("secret\n"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := Run(Options{Root: root, OutDir: out, StateFile: filepath.Join(out, "s.json"), Rules: set, Project: "webapp", NoZip: true, Now: now})
	if err != nil {
		t.Fatal(err)
	}
	if res.Projects != 1 || res.Total != 2 || len(res.Manifest) != 1 || res.Manifest[0].SessionID != "sess0001-aaaa" {
		t.Errorf("result = %+v", res)
	}
}

func TestRunNothingToExport(t *testing.T) {
	root := t.TempDir()
	state := filepath.Join(t.TempDir(), "state.json")
	res, err := Run(Options{Root: root, OutDir: t.TempDir(), StateFile: state, Now: now})
	if err != nil || len(res.Manifest) != 0 {
		t.Fatalf("got %+v, %v", res, err)
	}
	if _, err := os.Stat(state); !os.IsNotExist(err) {
		t.Error("state written with nothing exported")
	}
}

func TestRunParseFailureIsWarning(t *testing.T) {
	root := fixture(t)
	broken := filepath.Join(root, "-home-me-webapp", "sess0008-gone.jsonl")
	if err := os.Symlink(filepath.Join(root, "missing-target.jsonl"), broken); err != nil {
		t.Fatal(err)
	}

	res, err := Run(Options{Root: root, OutDir: t.TempDir(), StateFile: filepath.Join(t.TempDir(), "s.json"), NoZip: true, Now: now})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 1 || len(res.Manifest) != 2 {
		t.Errorf("warnings = %v manifest = %d", res.Warnings, len(res.Manifest))
	}
}

func TestRunOversizedLineStillExports(t *testing.T) {
	root := fixture(t)
	big := filepath.Join(root, "-home-me-webapp", "sess0009-huge.jsonl")
	writeFile(t, big,
		`{"type":"user","timestamp":"2026-03-01T12:00:00Z","message":{"content":"paste a big log"}}`,
		`{"type":"user","message":{"content":"`+strings.Repeat("x", 11*1024*1024)+`"}}`,
	)

	res, err := Run(Options{Root: root, OutDir: t.TempDir(), StateFile: filepath.Join(t.TempDir(), "s.json"), NoZip: true, Now: now})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 0 || len(res.Manifest) != 3 {
		t.Fatalf("warnings = %v manifest = %d", res.Warnings, len(res.Manifest))
	}
}

func TestSingle(t *testing.T) {
	root := fixture(t)
	out := t.TempDir()

	paths, err := Single(SingleOptions{Root: root, ID: "sess0001", OutDir: out, Format: FormatJSON, Now: now})
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || filepath.Base(paths[0]) != "2026-03-01T10-00-00__fix-login-bug__sess0001.json" {
		t.Fatalf("paths = %v", paths)
	}
	data, _ := os.ReadFile(paths[0])
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["schema_version"] != "2.0" || doc["exported_at"] != "2026-03-02T09:30:00Z" {
		t.Errorf("doc header = %v %v", doc["schema_version"], doc["exported_at"])
	}

	if _, err := Single(SingleOptions{Root: root, ID: "sess000", OutDir: out}); err == nil {
		t.Error("expected ambiguous prefix error")
	}
}

func TestFileBaseFallback(t *testing.T) {
	s := &parse.Session{ID: "abc", Title: "Hello World"}
	if got := FileBase(s, ""); got != "0000-00-00T00-00-00__hello-world__abc" {
		t.Errorf("FileBase = %q", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Fix login bug", "fix-login-bug"},
		{"-home-me-webapp", "home-me-webapp"},
		{"a/b.c_d", "a-b-c-d"},
		{"What's up?!", "whats-up"},
		{"  spaced   out  ", "spaced-out"},
		{"日本語 テスト", "日本語-テスト"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMarkdownSections(t *testing.T) {
	s, err := parse.ParseFile(filepath.Join(fixture(t), "-home-me-webapp", "sess0001-aaaa.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	md, err := Markdown(s, stats.Compute(s))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"session_id: sess0001-aaaa",
		"total_input_tokens: 1000",
		"# Fix login bug",
		"Tokens: 1,200",
		"### Assistant",
		"_Model: claude-sonnet-4 | In: 1,000 | Out: 200 | 2026-03-01 10:01:00_",
		"> **Tool: Bash**",
		"> go test ./...",
		"**Tool Result:** bash ok",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}
