package parse

import "strings"

// ResultKind is the inferred kind of a tool result object.
type ResultKind string

const (
	ResultBash      ResultKind = "bash"
	ResultFileEdit  ResultKind = "file_edit"
	ResultFileWrite ResultKind = "file_write"
	ResultGlob      ResultKind = "glob"
	ResultGrep      ResultKind = "grep"
	ResultFileRead  ResultKind = "file_read"
	ResultWebSearch ResultKind = "web_search"
	ResultWebFetch  ResultKind = "web_fetch"
	ResultTask      ResultKind = "task"
	ResultTodoWrite ResultKind = "todo_write"
	ResultUserInput ResultKind = "user_input"
	ResultPlan      ResultKind = "plan"
	ResultUnknown   ResultKind = "unknown"
)

// ToolResult is a classified tool result. Exactly one detail pointer
// matching Kind is set; unknown results keep the raw object instead.
type ToolResult struct {
	Kind ResultKind `json:"kind"`
	Slug string     `json:"slug,omitempty"`

	Bash      *BashResult      `json:"bash,omitempty"`
	FileEdit  *FileEditResult  `json:"file_edit,omitempty"`
	FileWrite *FileWriteResult `json:"file_write,omitempty"`
	Glob      *GlobResult      `json:"glob,omitempty"`
	Grep      *GrepResult      `json:"grep,omitempty"`
	FileRead  *FileReadResult  `json:"file_read,omitempty"`
	WebSearch *WebSearchResult `json:"web_search,omitempty"`
	WebFetch  *WebFetchResult  `json:"web_fetch,omitempty"`
	Task      *TaskResult      `json:"task,omitempty"`
	Todo      *TodoResult      `json:"todo,omitempty"`
	UserInput *UserInputResult `json:"user_input,omitempty"`
	Plan      *PlanResult      `json:"plan,omitempty"`

	Raw map[string]any `json:"raw,omitempty"`
}

type BashResult struct {
	Stdout         string `json:"stdout"`
	Stderr         string `json:"stderr"`
	ExitCode       *int64 `json:"exit_code,omitempty"`
	Interrupted    bool   `json:"interrupted"`
	IsError        bool   `json:"is_error"`
	Interpretation string `json:"return_code_interpretation,omitempty"`
}

type FileEditResult struct {
	FilePath     string `json:"file_path"`
	OldString    string `json:"old_string,omitempty"`
	NewString    string `json:"new_string,omitempty"`
	ReplaceAll   bool   `json:"replace_all,omitempty"`
	UserModified bool   `json:"user_modified,omitempty"`
	Hunks        int    `json:"hunks"`
	LinesAdded   int    `json:"lines_added"`
	LinesRemoved int    `json:"lines_removed"`
}

type FileWriteResult struct {
	FilePath string `json:"file_path"`
	Type     string `json:"type,omitempty"`
	Lines    int    `json:"lines"`
}

type GlobResult struct {
	NumFiles   int64  `json:"num_files"`
	Truncated  bool   `json:"truncated"`
	DurationMs *int64 `json:"duration_ms,omitempty"`
}

type GrepResult struct {
	Mode       string `json:"mode"`
	NumFiles   int64  `json:"num_files"`
	NumLines   int64  `json:"num_lines"`
	DurationMs *int64 `json:"duration_ms,omitempty"`
}

type FileReadResult struct {
	FilePath   string `json:"file_path"`
	NumLines   int64  `json:"num_lines"`
	StartLine  int64  `json:"start_line,omitempty"`
	TotalLines int64  `json:"total_lines,omitempty"`
}

type WebSearchResult struct {
	Query           string   `json:"query"`
	ResultCount     int      `json:"result_count"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
}

type WebFetchResult struct {
	URL        string `json:"url"`
	Code       int64  `json:"code"`
	CodeText   string `json:"code_text,omitempty"`
	Bytes      int64  `json:"bytes,omitempty"`
	DurationMs *int64 `json:"duration_ms,omitempty"`
}

// Task result variants.
const (
	TaskShell       = "shell"
	TaskRetrieval   = "retrieval"
	TaskCompleted   = "completed"
	TaskAsyncLaunch = "async_launch"
)

type TaskResult struct {
	Variant      string `json:"variant"`
	TaskID       string `json:"task_id,omitempty"`
	AgentID      string `json:"agent_id,omitempty"`
	Status       string `json:"status,omitempty"`
	Message      string `json:"message,omitempty"`
	Description  string `json:"description,omitempty"`
	DurationMs   *int64 `json:"duration_ms,omitempty"`
	TotalTokens  *int64 `json:"total_tokens,omitempty"`
	ToolUseCount *int64 `json:"tool_use_count,omitempty"`
}

type TodoItem struct {
	Content    string `json:"content"`
	Status     string `json:"status,omitempty"`
	ActiveForm string `json:"active_form,omitempty"`
}

type TodoResult struct {
	Count int        `json:"count"`
	Items []TodoItem `json:"items"`
}

type UserInputResult struct {
	Questions []string          `json:"questions"`
	Answers   map[string]string `json:"answers"`
}

type PlanResult struct {
	Plan     string `json:"plan"`
	FilePath string `json:"file_path"`
}

// ClassifyToolResult infers the kind of an untagged tool result object from
// the fields it carries. It returns nil when raw is not an object. The
// tests run in a fixed order and the first match wins, since several
// shapes satisfy more than one test.
func ClassifyToolResult(raw any, slug string) *ToolResult {
	obj := asObject(raw)
	if obj == nil {
		return nil
	}
	r := &ToolResult{Slug: slug}
	switch {
	case obj.Has("stdout") || obj.Has("stderr"):
		r.Kind, r.Bash = ResultBash, bashResult(obj)
	case obj.Has("structuredPatch") || (obj.Has("filePath") && obj.Has("newString")):
		r.Kind, r.FileEdit = ResultFileEdit, fileEditResult(obj)
	case obj.Has("filePath") && obj.Has("content"):
		r.Kind = ResultFileWrite
		r.FileWrite = &FileWriteResult{
			FilePath: obj.Str("filePath"),
			Type:     obj.Str("type"),
			Lines:    countLines(obj.Str("content")),
		}
	case isList(obj.Get("filenames")):
		r.Kind, r.Glob = ResultGlob, globResult(obj)
	case obj.Has("mode") && obj.Has("numFiles"):
		r.Kind = ResultGrep
		r.Grep = &GrepResult{
			Mode:       obj.Str("mode"),
			NumFiles:   obj.Int("numFiles"),
			NumLines:   obj.Int("numLines"),
			DurationMs: optInt(obj.Get("durationMs")),
		}
	case obj.Obj("file") != nil:
		file := obj.Obj("file")
		r.Kind = ResultFileRead
		r.FileRead = &FileReadResult{
			FilePath:   file.Str("filePath"),
			NumLines:   file.Int("numLines"),
			StartLine:  file.Int("startLine"),
			TotalLines: file.Int("totalLines"),
		}
	case obj.Has("query") && obj.Has("results"):
		r.Kind, r.WebSearch = ResultWebSearch, webSearchResult(obj)
	case obj.Has("url") && obj.Has("code"):
		r.Kind = ResultWebFetch
		r.WebFetch = &WebFetchResult{
			URL:        obj.Str("url"),
			Code:       obj.Int("code"),
			CodeText:   obj.Str("codeText"),
			Bytes:      obj.Int("bytes"),
			DurationMs: optInt(obj.Get("durationMs")),
		}
	case isTaskResult(obj):
		r.Kind, r.Task = ResultTask, taskResult(obj)
	case obj.Has("newTodos") || obj.Has("oldTodos"):
		r.Kind, r.Todo = ResultTodoWrite, todoResult(obj)
	case obj.Has("questions") && obj.Has("answers"):
		r.Kind, r.UserInput = ResultUserInput, userInputResult(obj)
	case obj.Has("plan") && obj.Has("filePath"):
		r.Kind = ResultPlan
		r.Plan = &PlanResult{Plan: obj.Str("plan"), FilePath: obj.Str("filePath")}
	default:
		r.Kind, r.Raw = ResultUnknown, map[string]any(obj)
	}
	return r
}

func isTaskResult(obj Record) bool {
	return obj.Has("task_id") || obj.Has("message") ||
		(obj.Has("retrieval_status") && obj.Has("task")) ||
		(obj.Has("agentId") && obj.Has("totalDurationMs")) ||
		(obj.Has("agentId") && obj.Has("isAsync"))
}

func bashResult(obj Record) *BashResult {
	b := &BashResult{
		Stdout:         obj.Str("stdout"),
		Stderr:         obj.Str("stderr"),
		Interrupted:    obj.Bool("interrupted"),
		Interpretation: obj.Str("returnCodeInterpretation"),
	}
	for _, k := range []string{"exitCode", "returnCode", "exit_code"} {
		if code := optInt(obj.Get(k)); code != nil {
			b.ExitCode = code
			break
		}
	}
	switch {
	case obj.Has("isError"):
		b.IsError = obj.Bool("isError")
	case obj.Has("is_error"):
		b.IsError = obj.Bool("is_error")
	default:
		b.IsError = b.ExitCode != nil && *b.ExitCode != 0
	}
	return b
}

func fileEditResult(obj Record) *FileEditResult {
	e := &FileEditResult{
		FilePath:     obj.Str("filePath"),
		OldString:    obj.Str("oldString"),
		NewString:    obj.Str("newString"),
		ReplaceAll:   obj.Bool("replaceAll"),
		UserModified: obj.Bool("userModified"),
	}
	hunks, _ := obj.Get("structuredPatch").([]any)
	e.Hunks = len(hunks)
	for _, h := range hunks {
		lines, _ := asObject(h).Get("lines").([]any)
		for _, l := range lines {
			s := asString(l)
			switch {
			case strings.HasPrefix(s, "+"):
				e.LinesAdded++
			case strings.HasPrefix(s, "-"):
				e.LinesRemoved++
			}
		}
	}
	return e
}

func globResult(obj Record) *GlobResult {
	names, _ := obj.Get("filenames").([]any)
	g := &GlobResult{
		NumFiles:   int64(len(names)),
		Truncated:  obj.Bool("truncated"),
		DurationMs: optInt(obj.Get("durationMs")),
	}
	if n := optInt(obj.Get("numFiles")); n != nil {
		g.NumFiles = *n
	}
	return g
}

func webSearchResult(obj Record) *WebSearchResult {
	w := &WebSearchResult{Query: obj.Str("query")}
	if results, ok := obj.Get("results").([]any); ok {
		w.ResultCount = len(results)
	}
	if d, ok := obj.Get("durationSeconds").(float64); ok {
		w.DurationSeconds = &d
	}
	return w
}

func taskResult(obj Record) *TaskResult {
	t := &TaskResult{}
	switch {
	case obj.Has("task_id") || obj.Has("message"):
		t.Variant = TaskShell
		t.TaskID = obj.Str("task_id")
		t.Message = obj.Str("message")
		t.Status = obj.Str("status")
	case obj.Has("retrieval_status") && obj.Has("task"):
		task := obj.Obj("task")
		t.Variant = TaskRetrieval
		t.Status = obj.Str("retrieval_status")
		t.TaskID = task.Str("task_id")
		t.Description = task.Str("description")
	case obj.Has("totalDurationMs"):
		t.Variant = TaskCompleted
		t.AgentID = obj.Str("agentId")
		t.Status = obj.Str("status")
		t.DurationMs = optInt(obj.Get("totalDurationMs"))
		t.TotalTokens = optInt(obj.Get("totalTokens"))
		t.ToolUseCount = optInt(obj.Get("totalToolUseCount"))
	default:
		t.Variant = TaskAsyncLaunch
		t.AgentID = obj.Str("agentId")
		t.Status = obj.Str("status")
		t.Description = obj.Str("description")
	}
	return t
}

func todoResult(obj Record) *TodoResult {
	list, ok := obj.Get("newTodos").([]any)
	if !ok {
		list, _ = obj.Get("oldTodos").([]any)
	}
	t := &TodoResult{Items: []TodoItem{}}
	for _, it := range list {
		item := asObject(it)
		if item == nil {
			continue
		}
		t.Items = append(t.Items, TodoItem{
			Content:    item.Str("content"),
			Status:     item.Str("status"),
			ActiveForm: item.Str("activeForm"),
		})
	}
	t.Count = len(t.Items)
	return t
}

func userInputResult(obj Record) *UserInputResult {
	u := &UserInputResult{Questions: []string{}, Answers: map[string]string{}}
	qs, _ := obj.Get("questions").([]any)
	for _, q := range qs {
		switch v := q.(type) {
		case string:
			u.Questions = append(u.Questions, v)
		case map[string]any:
			u.Questions = append(u.Questions, asString(v["question"]))
		}
	}
	for k, v := range obj.Obj("answers") {
		u.Answers[k] = asString(v)
	}
	return u
}

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}
