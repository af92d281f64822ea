package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/Zuo-Peng/aisx/internal/parse"
	"github.com/Zuo-Peng/aisx/internal/stats"
)

const (
	maxToolInput   = 500
	maxEditSnippet = 300
	maxRawResult   = 2000
)

type frontmatter struct {
	Title             string         `yaml:"title"`
	Created           string         `yaml:"created,omitempty"`
	Updated           string         `yaml:"updated,omitempty"`
	SessionID         string         `yaml:"session_id"`
	Models            []string       `yaml:"models_used,omitempty"`
	InputTokens       int64          `yaml:"total_input_tokens"`
	OutputTokens      int64          `yaml:"total_output_tokens"`
	CacheReadTokens   int64          `yaml:"total_cache_read_tokens"`
	ToolCalls         int            `yaml:"total_tool_calls"`
	ToolBreakdown     map[string]int `yaml:"tool_call_breakdown,omitempty"`
	WorkingDirectory  string         `yaml:"working_directory,omitempty"`
	GitBranch         string         `yaml:"git_branch,omitempty"`
	Version           string         `yaml:"claude_code_version,omitempty"`
	PermissionMode    string         `yaml:"permission_mode,omitempty"`
	MessageCount      int            `yaml:"message_count"`
	Compactions       int            `yaml:"compactions,omitempty"`
	CostEstimateUSD   *float64       `yaml:"cost_estimate_usd,omitempty"`
	WallClockDuration string         `yaml:"duration,omitempty"`
}

// Markdown renders a session as Markdown with YAML frontmatter.
func Markdown(s *parse.Session, st stats.Stats) (string, error) {
	m := s.Metadata
	fm := frontmatter{
		Title:             s.Title,
		Created:           m.FirstTimestamp,
		Updated:           m.LastTimestamp,
		SessionID:         s.ID,
		Models:            m.ModelsUsed,
		InputTokens:       m.TotalInputTokens,
		OutputTokens:      m.TotalOutputTokens,
		CacheReadTokens:   m.TotalCacheReadTokens,
		ToolCalls:         m.TotalToolCalls,
		ToolBreakdown:     m.ToolCallCounts,
		WorkingDirectory:  m.Cwd,
		GitBranch:         m.GitBranch,
		Version:           m.Version,
		PermissionMode:    m.PermissionMode,
		MessageCount:      len(s.Messages),
		Compactions:       m.Compactions,
		CostEstimateUSD:   st.CostEstimateUSD,
		WallClockDuration: st.WallClockDisplay,
	}
	fmBytes, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fmBytes)
	b.WriteString("---\n")
	writeHeader(&b, s)
	for _, msg := range s.Messages {
		switch msg.Role {
		case parse.RoleUser:
			writeUser(&b, msg)
		case parse.RoleAssistant:
			writeAssistant(&b, msg)
		case parse.RoleSystem:
			writeSystem(&b, msg)
		}
	}
	return b.String(), nil
}

func writeHeader(b *strings.Builder, s *parse.Session) {
	m := s.Metadata
	fmt.Fprintf(b, "\n# %s\n\n", s.Title)

	var parts []string
	if m.FirstTimestamp != "" {
		parts = append(parts, "Created: "+formatTS(m.FirstTimestamp))
	}
	if len(m.ModelsUsed) > 0 {
		parts = append(parts, "Models: "+strings.Join(m.ModelsUsed, ", "))
	}
	if total := m.TotalInputTokens + m.TotalOutputTokens; total > 0 {
		parts = append(parts, "Tokens: "+humanize.Comma(total))
	}
	if m.TotalToolCalls > 0 {
		parts = append(parts, fmt.Sprintf("Tool calls: %d", m.TotalToolCalls))
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, "_%s_\n\n", strings.Join(parts, " | "))
	}
	b.WriteString("---\n\n")
}

func writeUser(b *strings.Builder, msg parse.Message) {
	b.WriteString("### User\n\n")
	if msg.Timestamp != "" {
		fmt.Fprintf(b, "_%s_\n\n", formatTS(msg.Timestamp))
	}
	if msg.Slug != "" {
		fmt.Fprintf(b, "_Tool response: %s_\n\n", msg.Slug)
	}
	if text := parse.StripSystemTags(msg.Text); text != "" {
		b.WriteString(text)
		b.WriteString("\n")
	}
	if msg.ToolResult != nil {
		b.WriteString("\n**Tool Result:** ")
		b.WriteString(summarizeResult(msg.ToolResult))
		b.WriteString("\n")
	}
	b.WriteString("\n---\n\n")
}

func writeAssistant(b *strings.Builder, msg parse.Message) {
	b.WriteString("### Assistant\n\n")
	var meta []string
	if msg.Model != "" {
		meta = append(meta, "Model: "+msg.Model)
	}
	if u := msg.Usage; u != nil {
		if u.InputTokens > 0 {
			meta = append(meta, "In: "+humanize.Comma(u.InputTokens))
		}
		if u.OutputTokens > 0 {
			meta = append(meta, "Out: "+humanize.Comma(u.OutputTokens))
		}
	}
	if msg.Timestamp != "" {
		meta = append(meta, formatTS(msg.Timestamp))
	}
	if len(meta) > 0 {
		fmt.Fprintf(b, "_%s_\n\n", strings.Join(meta, " | "))
	}
	if msg.Thinking != "" {
		fmt.Fprintf(b, "<details><summary>Thinking</summary>\n\n%s\n\n</details>\n\n", msg.Thinking)
	}
	if text := parse.StripSystemTags(msg.Text); text != "" {
		b.WriteString(text)
		b.WriteString("\n")
	}
	for _, tu := range msg.ToolUses {
		writeToolUse(b, tu)
	}
	b.WriteString("\n---\n\n")
}

func writeToolUse(b *strings.Builder, tu parse.ToolUse) {
	in := tu.Input
	str := func(k string) string {
		s, _ := in[k].(string)
		return s
	}
	fmt.Fprintf(b, "\n> **Tool: %s**\n", tu.Name)
	switch tu.Name {
	case "Bash":
		fmt.Fprintf(b, ">\n> ```bash\n%s\n> ```\n", quoteLines(str("command")))
	case "Read":
		fmt.Fprintf(b, ">\n> File: `%s`\n", str("file_path"))
	case "Write":
		fmt.Fprintf(b, ">\n> File: `%s`\n", str("file_path"))
		fmt.Fprintf(b, ">\n> ```\n%s\n> ```\n", quoteLines(truncate(str("content"), maxToolInput)))
	case "Edit", "MultiEdit":
		fmt.Fprintf(b, ">\n> File: `%s`\n", str("file_path"))
		if old := str("old_string"); old != "" {
			fmt.Fprintf(b, ">\n> Old:\n> ```\n%s\n> ```\n", quoteLines(truncate(old, maxEditSnippet)))
		}
		if repl := str("new_string"); repl != "" {
			fmt.Fprintf(b, ">\n> New:\n> ```\n%s\n> ```\n", quoteLines(truncate(repl, maxEditSnippet)))
		}
	case "Glob", "Grep":
		fmt.Fprintf(b, ">\n> Pattern: `%s`\n", str("pattern"))
		if p := str("path"); p != "" {
			fmt.Fprintf(b, "> Path: `%s`\n", p)
		}
	case "WebFetch":
		fmt.Fprintf(b, ">\n> URL: `%s`\n", str("url"))
	case "WebSearch":
		fmt.Fprintf(b, ">\n> Query: `%s`\n", str("query"))
	case "Task":
		fmt.Fprintf(b, ">\n> Description: %s\n> Agent: %s\n", str("description"), str("subagent_type"))
	case "TodoWrite":
		todos, _ := in["todos"].([]any)
		for _, t := range todos {
			item, _ := t.(map[string]any)
			status, _ := item["status"].(string)
			content, _ := item["content"].(string)
			fmt.Fprintf(b, "> - %s %s\n", todoIcon(status), content)
		}
	case "AskUserQuestion":
		qs, _ := in["questions"].([]any)
		for _, q := range qs {
			item, _ := q.(map[string]any)
			text, _ := item["question"].(string)
			fmt.Fprintf(b, ">\n> Q: %s\n", text)
		}
	default:
		fmt.Fprintf(b, ">\n> Input: `%s`\n", truncate(compactJSON(in), maxToolInput))
	}
}

func todoIcon(status string) string {
	switch status {
	case "completed":
		return "[x]"
	case "in_progress":
		return "[~]"
	}
	return "[ ]"
}

// summarizeResult renders a classified tool result as one line, or as a
// fenced raw dump for unknown shapes.
func summarizeResult(r *parse.ToolResult) string {
	switch r.Kind {
	case parse.ResultBash:
		status := "ok"
		switch {
		case r.Bash.Interrupted:
			status = "interrupted"
		case r.Bash.IsError:
			status = "error"
		}
		if r.Bash.ExitCode != nil {
			status += fmt.Sprintf(" (exit %d)", *r.Bash.ExitCode)
		}
		out := r.Bash.Stdout
		if r.Bash.Stderr != "" {
			out = strings.TrimSpace(out + "\n" + r.Bash.Stderr)
		}
		if out == "" {
			return "bash " + status
		}
		return fmt.Sprintf("bash %s\n```\n%s\n```", status, truncate(out, maxRawResult))
	case parse.ResultFileEdit:
		return fmt.Sprintf("edited `%s` (+%d -%d)", r.FileEdit.FilePath, r.FileEdit.LinesAdded, r.FileEdit.LinesRemoved)
	case parse.ResultFileWrite:
		return fmt.Sprintf("wrote `%s` (%d lines)", r.FileWrite.FilePath, r.FileWrite.Lines)
	case parse.ResultGlob:
		return fmt.Sprintf("glob matched %d files", r.Glob.NumFiles)
	case parse.ResultGrep:
		return fmt.Sprintf("grep matched %d files, %d lines", r.Grep.NumFiles, r.Grep.NumLines)
	case parse.ResultFileRead:
		return fmt.Sprintf("read `%s` (%d lines)", r.FileRead.FilePath, r.FileRead.NumLines)
	case parse.ResultWebSearch:
		return fmt.Sprintf("web search %q: %d results", r.WebSearch.Query, r.WebSearch.ResultCount)
	case parse.ResultWebFetch:
		return fmt.Sprintf("fetched %s: HTTP %d", r.WebFetch.URL, r.WebFetch.Code)
	case parse.ResultTask:
		return fmt.Sprintf("task %s %s", r.Task.Variant, r.Task.Status)
	case parse.ResultTodoWrite:
		return fmt.Sprintf("todo list updated (%d items)", r.Todo.Count)
	case parse.ResultUserInput:
		keys := make([]string, 0, len(r.UserInput.Answers))
		for q := range r.UserInput.Answers {
			keys = append(keys, q)
		}
		sort.Strings(keys)
		var lines []string
		for _, q := range keys {
			lines = append(lines, fmt.Sprintf("- %s: %s", q, r.UserInput.Answers[q]))
		}
		return "user answered\n" + strings.Join(lines, "\n")
	case parse.ResultPlan:
		return fmt.Sprintf("plan saved to `%s`", r.Plan.FilePath)
	}
	return fmt.Sprintf("\n```\n%s\n```", truncate(compactJSON(r.Raw), maxRawResult))
}

func writeSystem(b *strings.Builder, msg parse.Message) {
	switch {
	case msg.Subtype == "compact_boundary":
		b.WriteString("\n*--- Context compacted ---*\n\n")
	case msg.Text != "":
		fmt.Fprintf(b, "\n*[System: %s]*\n\n", msg.Text)
	}
}

func quoteLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

func formatTS(ts string) string {
	t, ok := parse.ParseTimestamp(ts)
	if !ok {
		return ts
	}
	return t.Format(time.DateTime)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
