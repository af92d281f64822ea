package parse

// Role is the role of a parsed message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleProgress  Role = "progress"
)

// UntitledTitle is the title of a session without any user text.
const UntitledTitle = "Untitled Session"

// SyntheticModel is the placeholder model name the producer writes for
// locally generated assistant messages. They carry no real usage.
const SyntheticModel = "<synthetic>"

// ToolUse is one tool invocation requested by the assistant.
type ToolUse struct {
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// Image is an image block attached to a message.
type Image struct {
	MediaType  string `json:"media_type,omitempty"`
	SourceType string `json:"source_type,omitempty"`
}

// Usage is the token usage snapshot of one assistant message. Absent or
// null fields are zero.
type Usage struct {
	InputTokens   int64  `json:"input_tokens"`
	OutputTokens  int64  `json:"output_tokens"`
	CacheRead     int64  `json:"cache_read"`
	CacheCreation int64  `json:"cache_creation"`
	Ephemeral5m   int64  `json:"ephemeral_5m,omitempty"`
	Ephemeral1h   int64  `json:"ephemeral_1h,omitempty"`
	ServiceTier   string `json:"service_tier,omitempty"`
}

// Progress is the passthrough payload of a progress record.
type Progress struct {
	Type      string         `json:"type,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Message is one row of the session transcript. Messages are created once
// per qualifying record, in file order, and never modified afterwards.
type Message struct {
	Role        Role        `json:"role"`
	UUID        string      `json:"uuid,omitempty"`
	ParentUUID  string      `json:"parent_uuid,omitempty"`
	Timestamp   string      `json:"timestamp,omitempty"`
	Line        int         `json:"line"`
	Text        string      `json:"text,omitempty"`
	Thinking    string      `json:"thinking,omitempty"`
	ToolUses    []ToolUse   `json:"tool_uses,omitempty"`
	ToolUseID   string      `json:"tool_use_id,omitempty"`
	ToolResult  *ToolResult `json:"tool_result,omitempty"`
	Images      []Image     `json:"images,omitempty"`
	Model       string      `json:"model,omitempty"`
	StopReason  string      `json:"stop_reason,omitempty"`
	Usage       *Usage      `json:"usage,omitempty"`
	Subtype     string      `json:"subtype,omitempty"`
	Slug        string      `json:"slug,omitempty"`
	Progress    *Progress   `json:"progress,omitempty"`
	IsSidechain bool        `json:"is_sidechain,omitempty"`
	IsAPIError  bool        `json:"is_api_error,omitempty"`
	IsMeta      bool        `json:"is_meta,omitempty"`
}

// BashCommand is one Bash invocation in invocation order.
type BashCommand struct {
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	ToolUseID   string `json:"tool_use_id,omitempty"`
}

// WebAccess is one WebFetch url or WebSearch query.
type WebAccess struct {
	Kind      string `json:"kind"` // "fetch" or "search"
	Target    string `json:"target"`
	Timestamp string `json:"timestamp,omitempty"`
}

// CompactBoundary describes one context compaction.
type CompactBoundary struct {
	Timestamp string `json:"timestamp,omitempty"`
	Trigger   string `json:"trigger,omitempty"`
	PreTokens int64  `json:"pre_tokens"`
}

// Metadata is the finalized aggregate of one parse pass.
type Metadata struct {
	SessionID  string   `json:"session_id"`
	ModelsUsed []string `json:"models_used"`

	TotalInputTokens         int64    `json:"total_input_tokens"`
	TotalOutputTokens        int64    `json:"total_output_tokens"`
	TotalCacheReadTokens     int64    `json:"total_cache_read_tokens"`
	TotalCacheCreationTokens int64    `json:"total_cache_creation_tokens"`
	TotalEphemeral5mTokens   int64    `json:"total_ephemeral_5m_tokens"`
	TotalEphemeral1hTokens   int64    `json:"total_ephemeral_1h_tokens"`
	ServiceTiers             []string `json:"service_tiers"`

	TotalToolCalls int            `json:"total_tool_calls"`
	ToolCallCounts map[string]int `json:"tool_call_counts"`
	StopReasons    map[string]int `json:"stop_reasons"`
	APIErrors      int            `json:"api_errors"`

	FilesRead    []string      `json:"files_read"`
	FilesWritten []string      `json:"files_written"`
	FilesCreated []string      `json:"files_created"`
	BashCommands []BashCommand `json:"bash_commands"`
	WebFetches   []WebAccess   `json:"web_fetches"`

	SidechainMessages int            `json:"sidechain_messages"`
	EntryCounts       map[string]int `json:"entry_counts"`

	Compactions       int               `json:"compactions"`
	CompactBoundaries []CompactBoundary `json:"compact_boundaries"`

	FirstTimestamp  string   `json:"first_timestamp,omitempty"`
	LastTimestamp   string   `json:"last_timestamp,omitempty"`
	WallTimeSeconds *float64 `json:"session_wall_time_seconds"`

	Version        string `json:"version,omitempty"`
	Cwd            string `json:"cwd,omitempty"`
	GitBranch      string `json:"git_branch,omitempty"`
	PermissionMode string `json:"permission_mode,omitempty"`
}

// Session is the immutable result of parsing one session file.
type Session struct {
	ID       string    `json:"session_id"`
	Path     string    `json:"-"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
	Metadata Metadata  `json:"metadata"`
}

// Untitled reports whether no user text was found in the session.
func (s *Session) Untitled() bool {
	return s.Title == UntitledTitle
}

// Header is the result of the lightweight Peek variant.
type Header struct {
	ID             string
	Path           string
	Title          string
	Cwd            string
	FirstTimestamp string
	LastTimestamp  string
}
