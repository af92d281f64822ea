package parse

import "strings"

// Tool names whose invocations feed the file and command logs.
const (
	toolRead         = "Read"
	toolEdit         = "Edit"
	toolMultiEdit    = "MultiEdit"
	toolNotebookEdit = "NotebookEdit"
	toolWrite        = "Write"
	toolBash         = "Bash"
	toolWebFetch     = "WebFetch"
	toolWebSearch    = "WebSearch"
)

// baseMessage fills the fields every message role shares.
func baseMessage(role Role, rec Record, line int) Message {
	return Message{
		Role:        role,
		UUID:        rec.Str("uuid"),
		ParentUUID:  rec.Str("parentUuid"),
		Timestamp:   rec.Str("timestamp"),
		Line:        line,
		IsSidechain: rec.Bool("isSidechain"),
		IsMeta:      rec.Bool("isMeta"),
	}
}

func processUser(acc *accumulator, rec Record, line int) Message {
	acc.captureSessionFields(rec)

	msg := baseMessage(RoleUser, rec, line)
	msg.Slug = rec.Str("slug")

	var texts []string
	for _, b := range NormalizeContent(rec.Obj("message").Get("content")) {
		switch b.Type {
		case BlockText:
			texts = append(texts, b.Text)
		case BlockImage:
			msg.Images = append(msg.Images, *b.Image)
		case BlockToolResult:
			if msg.ToolUseID == "" {
				msg.ToolUseID = b.ToolUseID
			}
		}
	}
	msg.Text = strings.Join(texts, "\n")
	msg.ToolResult = ClassifyToolResult(rec.Get("toolUseResult"), msg.Slug)
	return msg
}

func processAssistant(acc *accumulator, rec Record, line int) Message {
	body := rec.Obj("message")

	msg := baseMessage(RoleAssistant, rec, line)
	msg.Model = body.Str("model")
	msg.StopReason = body.Str("stop_reason")
	msg.IsAPIError = rec.Bool("isApiErrorMessage")

	if msg.Model != SyntheticModel {
		msg.Usage = decodeUsage(body.Obj("usage"))
		acc.addUsage(msg.Model, msg.Usage)
	}

	var texts, thoughts []string
	for _, b := range NormalizeContent(body.Get("content")) {
		switch b.Type {
		case BlockText:
			texts = append(texts, b.Text)
		case BlockThinking:
			thoughts = append(thoughts, b.Thinking)
		case BlockToolUse:
			acc.addToolCall(b.ToolUse.Name)
			trackToolUse(acc, *b.ToolUse, msg.Timestamp)
			msg.ToolUses = append(msg.ToolUses, *b.ToolUse)
		}
	}
	msg.Text = strings.Join(texts, "\n")
	msg.Thinking = strings.Join(thoughts, "\n\n")

	acc.addStopReason(msg.StopReason)
	if msg.IsAPIError {
		acc.meta.APIErrors++
	}
	return msg
}

// trackToolUse updates the file activity sets and the command and web
// logs for the tool kinds that have them.
func trackToolUse(acc *accumulator, tu ToolUse, ts string) {
	in := Record(tu.Input)
	switch tu.Name {
	case toolRead:
		acc.markRead(in.Str("file_path"))
	case toolEdit, toolMultiEdit:
		acc.markWritten(in.Str("file_path"))
	case toolNotebookEdit:
		path := in.Str("notebook_path")
		if path == "" {
			path = in.Str("file_path")
		}
		acc.markWritten(path)
	case toolWrite:
		acc.markWrite(in.Str("file_path"))
	case toolBash:
		acc.addBash(BashCommand{
			Command:     in.Str("command"),
			Description: in.Str("description"),
			Timestamp:   ts,
			ToolUseID:   tu.ID,
		})
	case toolWebFetch:
		acc.addWeb(WebAccess{Kind: "fetch", Target: in.Str("url"), Timestamp: ts})
	case toolWebSearch:
		acc.addWeb(WebAccess{Kind: "search", Target: in.Str("query"), Timestamp: ts})
	}
}

// decodeUsage reads a usage object. Missing, null and non-numeric counts
// are zero; a missing object is nil.
func decodeUsage(u Record) *Usage {
	if u == nil {
		return nil
	}
	usage := &Usage{
		InputTokens:   u.Int("input_tokens"),
		OutputTokens:  u.Int("output_tokens"),
		CacheRead:     u.Int("cache_read_input_tokens"),
		CacheCreation: u.Int("cache_creation_input_tokens"),
		ServiceTier:   u.Str("service_tier"),
	}
	if cc := u.Obj("cache_creation"); cc != nil {
		usage.Ephemeral5m = cc.Int("ephemeral_5m_input_tokens")
		usage.Ephemeral1h = cc.Int("ephemeral_1h_input_tokens")
	}
	return usage
}

func processSystem(acc *accumulator, rec Record, line int) Message {
	msg := baseMessage(RoleSystem, rec, line)
	msg.Subtype = rec.Str("subtype")
	msg.Text = ExtractText(rec.Get("content"))
	if msg.Subtype == subtypeCompaction {
		cm := rec.Obj("compactMetadata")
		acc.addCompaction(CompactBoundary{
			Timestamp: msg.Timestamp,
			Trigger:   cm.Str("trigger"),
			PreTokens: cm.Int("preTokens"),
		})
	}
	return msg
}

// processProgress captures the payload only. Progress records do not touch
// the aggregates beyond the entry histogram.
func processProgress(rec Record, line int) Message {
	msg := baseMessage(RoleProgress, rec, line)
	data := rec.Obj("data")
	msg.Progress = &Progress{
		Type:      data.Str("type"),
		ToolUseID: rec.Str("toolUseID"),
		Data:      map[string]any(data),
	}
	if msg.Progress.ToolUseID == "" {
		msg.Progress.ToolUseID = rec.Str("parentToolUseID")
	}
	return msg
}
