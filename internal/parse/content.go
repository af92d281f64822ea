package parse

import "strings"

// Block kinds produced by NormalizeContent. Typed objects with any other
// "type" keep it verbatim.
const (
	BlockText       = "text"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockImage      = "image"
)

// Block is one normalized unit of a message body.
type Block struct {
	Type     string
	Text     string
	Thinking string
	ToolUse  *ToolUse
	Image    *Image
	// ToolUseID is set on tool_result blocks.
	ToolUseID string
	Raw       Record
}

// NormalizeContent converts a content field of any shape into an ordered
// block sequence. A string is one text block, strings inside a list are
// text blocks, objects inside a list pass through as typed blocks, and
// every other shape contributes nothing.
func NormalizeContent(content any) []Block {
	switch c := content.(type) {
	case string:
		return []Block{{Type: BlockText, Text: c}}
	case []any:
		blocks := make([]Block, 0, len(c))
		for _, part := range c {
			switch p := part.(type) {
			case string:
				blocks = append(blocks, Block{Type: BlockText, Text: p})
			case map[string]any:
				blocks = append(blocks, typedBlock(Record(p)))
			}
		}
		return blocks
	}
	return nil
}

func typedBlock(obj Record) Block {
	b := Block{Type: obj.Str("type"), Raw: obj}
	switch b.Type {
	case BlockText:
		b.Text = obj.Str("text")
	case BlockThinking:
		b.Thinking = obj.Str("thinking")
	case BlockToolUse:
		name := obj.Str("name")
		if name == "" {
			name = "unknown"
		}
		input := map[string]any(obj.Obj("input"))
		if input == nil {
			input = map[string]any{}
		}
		b.ToolUse = &ToolUse{ID: obj.Str("id"), Name: name, Input: input}
	case BlockToolResult:
		b.ToolUseID = obj.Str("tool_use_id")
	case BlockImage:
		src := obj.Obj("source")
		b.Image = &Image{MediaType: src.Str("media_type"), SourceType: src.Str("type")}
	}
	return b
}

// ExtractText joins the text blocks of content with newlines.
func ExtractText(content any) string {
	var texts []string
	for _, b := range NormalizeContent(content) {
		if b.Type == BlockText {
			texts = append(texts, b.Text)
		}
	}
	return strings.Join(texts, "\n")
}
