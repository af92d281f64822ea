package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Zuo-Peng/aisx/internal/marker"
	"github.com/Zuo-Peng/aisx/internal/parse"
	"github.com/Zuo-Peng/aisx/internal/rules"
	"github.com/Zuo-Peng/aisx/internal/scan"
	"github.com/Zuo-Peng/aisx/internal/stats"
)

// Output formats.
const (
	FormatMarkdown = "md"
	FormatJSON     = "json"
	FormatBoth     = "both"
)

// Since modes.
const (
	SinceAll  = "all"
	SinceLast = "last"
)

type Options struct {
	Root      string
	OutDir    string
	StateFile string
	Since     string
	Format    string
	Project   string // substring of the project directory name
	NoZip     bool
	Rules     rules.RuleSet
	Workers   int
	Now       time.Time
}

// ManifestEntry is one line of manifest.jsonl.
type ManifestEntry struct {
	SessionID        string   `json:"session_id"`
	Title            string   `json:"title"`
	Project          string   `json:"project"`
	UpdatedAt        string   `json:"updated_at"`
	Models           []string `json:"models"`
	Tokens           int64    `json:"tokens"`
	ToolCalls        int      `json:"tool_calls"`
	FilesTouched     int      `json:"files_touched"`
	CommandsRun      int      `json:"commands_run"`
	CostEstimateUSD  *float64 `json:"cost_estimate_usd"`
	WallClockSeconds *float64 `json:"wall_clock_seconds"`
}

// Result summarizes an export run. Warnings hold per-session failures that
// did not stop the run.
type Result struct {
	Projects int
	Total    int
	Skipped  int
	Files    []string
	ZipPath  string
	Manifest []ManifestEntry
	Warnings []error
}

type file struct {
	rel     string
	content string
}

type job struct {
	project scan.Project
	info    scan.SessionInfo
}

type outcome struct {
	files   []file
	entry   *ManifestEntry
	mtime   float64
	skipped bool
	err     error
	session string
}

// Run exports every eligible session under opts.Root. The export state is
// read once before any session is considered and merged once at the end.
func Run(opts Options) (*Result, error) {
	opts = withDefaults(opts)

	projects, err := scan.ListProjects(opts.Root)
	if err != nil {
		return nil, err
	}
	if opts.Project != "" {
		var kept []scan.Project
		for _, p := range projects {
			if strings.Contains(p.Name, opts.Project) {
				kept = append(kept, p)
			}
		}
		projects = kept
	}

	res := &Result{Projects: len(projects)}
	state := marker.State{Sessions: map[string]float64{}}
	if opts.Since == SinceLast {
		state = marker.Load(opts.StateFile)
	}

	var jobs []job
	for _, p := range projects {
		sessions, err := scan.ListSessions(p.Path)
		if err != nil {
			res.Warnings = append(res.Warnings, err)
			continue
		}
		for _, s := range sessions {
			res.Total++
			if opts.Since == SinceLast && !state.Eligible(s.ID, marker.Mtime(s.ModTime)) {
				res.Skipped++
				continue
			}
			jobs = append(jobs, job{project: p, info: s})
		}
	}

	outcomes := make([]outcome, len(jobs))
	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				outcomes[i] = exportOne(jobs[i], opts)
			}
		}()
	}
	for i := range jobs {
		work <- i
	}
	close(work)
	wg.Wait()

	var files []file
	exported := map[string]float64{}
	for _, o := range outcomes {
		switch {
		case o.err != nil:
			res.Warnings = append(res.Warnings, o.err)
		case o.skipped:
			res.Skipped++
		default:
			files = append(files, o.files...)
			res.Manifest = append(res.Manifest, *o.entry)
			exported[o.session] = o.mtime
		}
	}
	if len(files) == 0 {
		return res, nil
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	manifest := manifestJSONL(res.Manifest)
	if opts.NoZip {
		for _, f := range append(files, file{rel: "manifest.jsonl", content: manifest}) {
			full := filepath.Join(opts.OutDir, filepath.FromSlash(f.rel))
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return nil, fmt.Errorf("create %s: %w", filepath.Dir(full), err)
			}
			if err := os.WriteFile(full, []byte(f.content), 0o644); err != nil {
				return nil, fmt.Errorf("write %s: %w", full, err)
			}
			res.Files = append(res.Files, full)
		}
	} else {
		res.ZipPath = filepath.Join(opts.OutDir, ZipName(opts.Now))
		if err := writeZip(res.ZipPath, append(files, file{rel: "manifest.jsonl", content: manifest})); err != nil {
			return nil, err
		}
		for _, f := range files {
			res.Files = append(res.Files, f.rel)
		}
	}

	if err := marker.Update(opts.StateFile, exported, len(res.Manifest), opts.OutDir, opts.Now); err != nil {
		return res, fmt.Errorf("save export state: %w", err)
	}
	return res, nil
}

func withDefaults(opts Options) Options {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Format == "" {
		opts.Format = FormatMarkdown
	}
	if opts.Since == "" {
		opts.Since = SinceAll
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	return opts
}

func exportOne(j job, opts Options) outcome {
	o := outcome{session: j.info.ID, mtime: marker.Mtime(j.info.ModTime)}
	s, err := parse.ParseFile(j.info.Path)
	if err != nil {
		o.err = fmt.Errorf("parse session %s: %w", j.info.ID, err)
		return o
	}
	if s.Untitled() {
		o.skipped = true
		return o
	}
	if opts.Rules.ExcludesSession(j.project.DisplayName, s) {
		o.skipped = true
		return o
	}

	st := stats.Compute(s)
	ts := s.Metadata.FirstTimestamp
	if ts == "" {
		ts = j.info.ModTime.Format("2006-01-02T15:04:05")
		s.Metadata.FirstTimestamp = ts
	}
	dir := path.Join(datePart(ts), Slugify(j.project.Name))
	base := FileBase(s, ts)

	o.files, err = render(s, st, opts.Format, opts.Now)
	if err != nil {
		o.err = fmt.Errorf("render session %s: %w", j.info.ID, err)
		return o
	}
	for i := range o.files {
		o.files[i].rel = path.Join(dir, base+o.files[i].rel)
	}

	m := s.Metadata
	o.entry = &ManifestEntry{
		SessionID:        s.ID,
		Title:            s.Title,
		Project:          j.project.Name,
		UpdatedAt:        m.LastTimestamp,
		Models:           m.ModelsUsed,
		Tokens:           m.TotalInputTokens + m.TotalOutputTokens,
		ToolCalls:        m.TotalToolCalls,
		FilesTouched:     st.FilesTouched.TotalUnique,
		CommandsRun:      len(st.CommandsRun),
		CostEstimateUSD:  st.CostEstimateUSD,
		WallClockSeconds: m.WallTimeSeconds,
	}
	return o
}

// render returns the documents of one session keyed by file extension.
func render(s *parse.Session, st stats.Stats, format string, now time.Time) ([]file, error) {
	var files []file
	if format == FormatMarkdown || format == FormatBoth {
		md, err := Markdown(s, st)
		if err != nil {
			return nil, err
		}
		files = append(files, file{rel: ".md", content: md})
	}
	if format == FormatJSON || format == FormatBoth {
		js, err := JSON(s, st, now)
		if err != nil {
			return nil, err
		}
		files = append(files, file{rel: ".json", content: js})
	}
	if files == nil {
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return files, nil
}

// SingleOptions select one session by id or unique id prefix.
type SingleOptions struct {
	Root   string
	ID     string
	OutDir string
	Format string
	Now    time.Time
}

// Single exports one session into OutDir and returns the written paths.
// The export state is not touched.
func Single(opts SingleOptions) ([]string, error) {
	if opts.Format == "" {
		opts.Format = FormatMarkdown
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	_, info, err := scan.FindSession(opts.Root, opts.ID)
	if err != nil {
		return nil, err
	}
	s, err := parse.ParseFile(info.Path)
	if err != nil {
		return nil, err
	}
	files, err := render(s, stats.Compute(s), opts.Format, opts.Now)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	base := FileBase(s, s.Metadata.FirstTimestamp)
	var written []string
	for _, f := range files {
		full := filepath.Join(opts.OutDir, base+f.rel)
		if err := os.WriteFile(full, []byte(f.content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", full, err)
		}
		written = append(written, full)
	}
	return written, nil
}

// FileBase is "<timestamp>__<title-slug>__<id8>" without extension.
func FileBase(s *parse.Session, ts string) string {
	stamp := "0000-00-00T00-00-00"
	if ts != "" {
		if len(ts) > 19 {
			ts = ts[:19]
		}
		stamp = strings.ReplaceAll(ts, ":", "-")
	}
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return stamp + "__" + Slugify(s.Title) + "__" + id
}

func datePart(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}

// Slugify lower-cases text, keeps letters and digits, turns separators
// into single dashes and drops everything else.
func Slugify(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case strings.ContainsRune(" -_/.", r):
			b.WriteByte('-')
		}
	}
	slug := b.String()
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}

// ZipName is the archive name of an export run on the given day.
func ZipName(now time.Time) string {
	return "claude-code-export-" + now.Format("2006-01-02") + ".zip"
}

func manifestJSONL(entries []ManifestEntry) string {
	var b strings.Builder
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			continue
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func writeZip(dest string, files []file) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	zw := zip.NewWriter(f)
	for _, file := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: file.rel, Method: zip.Deflate})
		if err != nil {
			f.Close()
			return fmt.Errorf("zip %s: %w", file.rel, err)
		}
		if _, err := w.Write([]byte(file.content)); err != nil {
			f.Close()
			return fmt.Errorf("zip %s: %w", file.rel, err)
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finish zip: %w", err)
	}
	return f.Close()
}
