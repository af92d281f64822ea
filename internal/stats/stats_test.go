package stats

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/Zuo-Peng/aisx/internal/parse"
)

func session(t *testing.T, lines ...string) *parse.Session {
	t.Helper()
	s, err := parse.ParseReader("s", strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestEstimateCostSonnet(t *testing.T) {
	s := session(t, `{"type":"assistant","message":{"model":"claude-sonnet-4-5","usage":{"input_tokens":1000000,"output_tokens":1000000}}}`)
	got := Compute(s).CostEstimateUSD
	if got == nil {
		t.Fatal("cost is nil")
	}
	if math.Abs(*got-18.0) > 1e-9 {
		t.Errorf("cost = %v, want 18.0", *got)
	}
}

func TestEstimateCostAbsent(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"no usage", []string{`{"type":"assistant","message":{"model":"claude-opus-4"}}`}},
		{"null tokens", []string{`{"type":"assistant","message":{"model":"claude-opus-4","usage":{"input_tokens":null,"output_tokens":null}}}`}},
		{"unpriced model", []string{`{"type":"assistant","message":{"model":"gpt-5","usage":{"input_tokens":10}}}`}},
		{"synthetic", []string{`{"type":"assistant","message":{"model":"<synthetic>","usage":{"input_tokens":10}}}`}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compute(session(t, tt.lines...)).CostEstimateUSD; got != nil {
				t.Errorf("cost = %v, want nil", *got)
			}
		})
	}
}

func TestEstimateCostMixedModels(t *testing.T) {
	s := session(t,
		`{"type":"assistant","message":{"model":"claude-3-5-haiku","usage":{"input_tokens":1000000}}}`,
		`{"type":"assistant","message":{"model":"CLAUDE-OPUS-4","usage":{"output_tokens":100}}}`,
		`{"type":"assistant","message":{"model":"mystery","usage":{"input_tokens":5000000}}}`,
	)
	got := Compute(s).CostEstimateUSD
	if got == nil || math.Abs(*got-0.2575) > 1e-9 {
		t.Errorf("cost = %v, want 0.2575", got)
	}
}

func TestPriceFor(t *testing.T) {
	if p, ok := PriceFor("claude-opus-4-1-20250805"); !ok || p.Family != "opus" {
		t.Errorf("opus not matched: %+v %v", p, ok)
	}
	if _, ok := PriceFor(""); ok {
		t.Error("empty model priced")
	}
}

func TestFilesTouched(t *testing.T) {
	s := &parse.Session{Metadata: parse.Metadata{
		FilesRead:    []string{"/a", "/b", "/c"},
		FilesWritten: []string{"/b"},
		FilesCreated: []string{"/c", "/d"},
	}}
	ft := Compute(s).FilesTouched
	if !reflect.DeepEqual(ft.Read, []string{"/a"}) {
		t.Errorf("read = %v", ft.Read)
	}
	if !reflect.DeepEqual(ft.Written, []string{"/b"}) || !reflect.DeepEqual(ft.Created, []string{"/c", "/d"}) {
		t.Errorf("written/created = %v/%v", ft.Written, ft.Created)
	}
	if ft.TotalUnique != 4 {
		t.Errorf("total = %d, want 4", ft.TotalUnique)
	}
}

func TestPropertyFilesTouchedDisjoint(t *testing.T) {
	paths := []string{"/a", "/b", "/c", "/d", "/e"}
	rapid.Check(t, func(rt *rapid.T) {
		draw := func(label string) []string {
			return rapid.SliceOfDistinct(rapid.SampledFrom(paths), func(s string) string { return s }).Draw(rt, label)
		}
		ft := computeFilesTouched(parse.Metadata{
			FilesRead:    draw("read"),
			FilesWritten: draw("written"),
			FilesCreated: draw("created"),
		})
		for _, r := range ft.Read {
			for _, w := range append(append([]string{}, ft.Written...), ft.Created...) {
				if r == w {
					rt.Fatalf("%s is both read-only and modified", r)
				}
			}
		}
	})
}

func TestCommandsRunFIFO(t *testing.T) {
	s := session(t,
		`{"type":"assistant","timestamp":"t1","message":{"content":[`+
			`{"type":"tool_use","id":"a","name":"Bash","input":{"command":"make build"}},`+
			`{"type":"tool_use","id":"b","name":"Bash","input":{"command":"make test"}}]}}`,
		`{"type":"user","toolUseResult":{"stdout":"built","stderr":"","exitCode":0}}`,
		`{"type":"user","toolUseResult":{"stdout":"","stderr":"FAIL","exitCode":1}}`,
	)
	runs := Compute(s).CommandsRun
	if len(runs) != 2 {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[0].Command != "make build" || *runs[0].ExitCode != 0 || *runs[0].IsError {
		t.Errorf("first = %+v", runs[0])
	}
	if runs[1].Command != "make test" || *runs[1].ExitCode != 1 || !*runs[1].IsError {
		t.Errorf("second = %+v", runs[1])
	}
}

func TestCommandsRunUnmatched(t *testing.T) {
	s := session(t,
		`{"type":"user","toolUseResult":{"stdout":"orphan"}}`,
		`{"type":"assistant","message":{"content":[`+
			`{"type":"tool_use","name":"Bash","input":{"command":"ls"}},`+
			`{"type":"tool_use","name":"Bash","input":{}},`+
			`{"type":"tool_use","name":"Bash","input":{"command":"pwd"}}]}}`,
		`{"type":"user","toolUseResult":{"filePath":"x","content":"y"}}`,
		`{"type":"user","toolUseResult":{"stdout":"","interrupted":true}}`,
	)
	runs := Compute(s).CommandsRun
	if len(runs) != 2 {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[0].Command != "ls" || runs[0].Interrupted == nil || !*runs[0].Interrupted {
		t.Errorf("first = %+v", runs[0])
	}
	if runs[1].Command != "pwd" || runs[1].ExitCode != nil || runs[1].IsError != nil {
		t.Errorf("unmatched = %+v, want nil outcome", runs[1])
	}
}

func TestConversationTurns(t *testing.T) {
	s := session(t,
		`{"type":"user","message":{"content":"a"}}`,
		`{"type":"system","content":"x"}`,
		`{"type":"assistant","message":{"content":"b"}}`,
		`{"type":"assistant","message":{"content":"c"}}`,
		`{"type":"user","message":{"content":"d"}}`,
		`{"type":"progress","data":{}}`,
		`{"type":"assistant","message":{"content":"e"}}`,
	)
	if got := Compute(s).ConversationTurns; got != 2 {
		t.Errorf("turns = %d, want 2", got)
	}
}

func TestFormatDuration(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		in   *float64
		want string
	}{
		{nil, ""},
		{f(0), "0s"},
		{f(45.9), "45s"},
		{f(125), "2m 5s"},
		{f(3780), "1h 3m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToolResultSummary(t *testing.T) {
	s := session(t,
		`{"type":"user","toolUseResult":{"stdout":"ok"}}`,
		`{"type":"user","toolUseResult":{"stderr":"x","is_error":true}}`,
		`{"type":"user","toolUseResult":{"url":"u","code":404}}`,
		`{"type":"user","toolUseResult":{"url":"u","code":200}}`,
		`{"type":"user","toolUseResult":{"agentId":"a","totalDurationMs":1,"status":"completed"}}`,
		`{"type":"user","toolUseResult":{"file":{"filePath":"f"}}}`,
		`{"type":"user","toolUseResult":"plain string"}`,
	)
	want := map[string]int{
		"bash:success":    1,
		"bash:error":      1,
		"web_fetch:error": 1,
		"web_fetch:ok":    1,
		"task:completed":  1,
		"file_read:ok":    1,
	}
	if got := Compute(s).ToolResultSummary; !reflect.DeepEqual(got, want) {
		t.Errorf("summary = %v, want %v", got, want)
	}
}
