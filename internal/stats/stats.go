package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/Zuo-Peng/aisx/internal/parse"
)

// FilesTouched splits file activity into buckets. A file that was read and
// later edited or created only shows up under the later bucket.
type FilesTouched struct {
	Read        []string `json:"read"`
	Written     []string `json:"written"`
	Created     []string `json:"created"`
	TotalUnique int      `json:"total_unique"`
}

// CommandRun is one Bash invocation with the outcome of the result paired
// to it. Outcome fields are nil when no result was paired.
type CommandRun struct {
	Command        string `json:"command"`
	Description    string `json:"description,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
	ExitCode       *int64 `json:"exit_code"`
	IsError        *bool  `json:"is_error"`
	Interrupted    *bool  `json:"interrupted"`
	Interpretation string `json:"return_code_interpretation,omitempty"`
}

// Stats is a derived view of one session. It is recomputed on demand and
// never stored on the session.
type Stats struct {
	FilesTouched          FilesTouched            `json:"files_touched"`
	CommandsRun           []CommandRun            `json:"commands_run"`
	URLsAccessed          []parse.WebAccess       `json:"urls_accessed"`
	ConversationTurns     int                     `json:"conversation_turns"`
	WallClockSeconds      *float64                `json:"wall_clock_seconds"`
	WallClockDisplay      string                  `json:"wall_clock_display,omitempty"`
	CostEstimateUSD       *float64                `json:"cost_estimate_usd"`
	ToolResultSummary     map[string]int          `json:"tool_result_summary"`
	StopReasonSummary     map[string]int          `json:"stop_reason_summary"`
	EntryTypeCounts       map[string]int          `json:"entry_type_counts"`
	SidechainMessageCount int                     `json:"sidechain_message_count"`
	APIErrorCount         int                     `json:"api_error_count"`
	CompactionEvents      []parse.CompactBoundary `json:"compaction_events"`
}

// Compute derives the statistics of s.
func Compute(s *parse.Session) Stats {
	m := s.Metadata
	return Stats{
		FilesTouched:          computeFilesTouched(m),
		CommandsRun:           pairCommands(s.Messages),
		URLsAccessed:          append([]parse.WebAccess{}, m.WebFetches...),
		ConversationTurns:     countTurns(s.Messages),
		WallClockSeconds:      m.WallTimeSeconds,
		WallClockDisplay:      FormatDuration(m.WallTimeSeconds),
		CostEstimateUSD:       EstimateCost(s.Messages),
		ToolResultSummary:     summarizeResults(s.Messages),
		StopReasonSummary:     copyCounts(m.StopReasons),
		EntryTypeCounts:       copyCounts(m.EntryCounts),
		SidechainMessageCount: m.SidechainMessages,
		APIErrorCount:         m.APIErrors,
		CompactionEvents:      append([]parse.CompactBoundary{}, m.CompactBoundaries...),
	}
}

func computeFilesTouched(m parse.Metadata) FilesTouched {
	readOnly := lo.Without(m.FilesRead, append(append([]string{}, m.FilesWritten...), m.FilesCreated...)...)
	all := lo.Union(m.FilesRead, m.FilesWritten, m.FilesCreated)
	return FilesTouched{
		Read:        sorted(readOnly),
		Written:     sorted(m.FilesWritten),
		Created:     sorted(m.FilesCreated),
		TotalUnique: len(all),
	}
}

func sorted(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

// pairCommands walks the transcript in order and pairs every Bash
// invocation with the next bash-classified result, first in first out.
// Invocations left over at the end are reported without an outcome.
func pairCommands(messages []parse.Message) []CommandRun {
	var pending, runs []CommandRun
	for _, msg := range messages {
		switch msg.Role {
		case parse.RoleAssistant:
			for _, tu := range msg.ToolUses {
				if tu.Name != "Bash" {
					continue
				}
				cmd, _ := tu.Input["command"].(string)
				if cmd == "" {
					continue
				}
				desc, _ := tu.Input["description"].(string)
				pending = append(pending, CommandRun{Command: cmd, Description: desc, Timestamp: msg.Timestamp})
			}
		case parse.RoleUser:
			r := msg.ToolResult
			if r == nil || r.Kind != parse.ResultBash || len(pending) == 0 {
				continue
			}
			run := pending[0]
			pending = pending[1:]
			run.ExitCode = r.Bash.ExitCode
			run.IsError = lo.ToPtr(r.Bash.IsError)
			run.Interrupted = lo.ToPtr(r.Bash.Interrupted)
			run.Interpretation = r.Bash.Interpretation
			runs = append(runs, run)
		}
	}
	runs = append(runs, pending...)
	if runs == nil {
		runs = []CommandRun{}
	}
	return runs
}

// countTurns counts assistant messages whose previous user or assistant
// message was a user message.
func countTurns(messages []parse.Message) int {
	turns := 0
	var prev parse.Role
	for _, msg := range messages {
		if msg.Role == parse.RoleAssistant && prev == parse.RoleUser {
			turns++
		}
		if msg.Role == parse.RoleUser || msg.Role == parse.RoleAssistant {
			prev = msg.Role
		}
	}
	return turns
}

// FormatDuration renders seconds as "45s", "2m 5s" or "1h 3m". Nil is "".
func FormatDuration(seconds *float64) string {
	if seconds == nil {
		return ""
	}
	s := int64(*seconds)
	if s < 60 {
		return fmt.Sprintf("%ds", s)
	}
	m := s / 60
	if m < 60 {
		return fmt.Sprintf("%dm %ds", m, s%60)
	}
	return fmt.Sprintf("%dh %dm", m/60, m%60)
}

func summarizeResults(messages []parse.Message) map[string]int {
	summary := map[string]int{}
	for _, msg := range messages {
		if msg.Role != parse.RoleUser || msg.ToolResult == nil {
			continue
		}
		r := msg.ToolResult
		summary[string(r.Kind)+":"+outcome(r)]++
	}
	return summary
}

// outcome classifies a result as a single word for the histogram.
func outcome(r *parse.ToolResult) string {
	switch r.Kind {
	case parse.ResultBash:
		switch {
		case r.Bash.Interrupted:
			return "interrupted"
		case r.Bash.IsError:
			return "error"
		}
		return "success"
	case parse.ResultWebFetch:
		if r.WebFetch.Code >= 400 {
			return "error"
		}
	case parse.ResultTask:
		if r.Task.Status != "" {
			return r.Task.Status
		}
	}
	return "ok"
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
