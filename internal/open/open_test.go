package open

import (
	"strings"
	"testing"
)

func TestEditorArgs(t *testing.T) {
	tests := []struct {
		editor string
		line   int
		want   string
	}{
		{"vim", 12, "+12 f.jsonl"},
		{"/usr/bin/nvim", 3, "+3 f.jsonl"},
		{"less", 0, "+1 f.jsonl"},
		{"code", 7, "--goto f.jsonl:7"},
		{"hx", 9, "f.jsonl:9"},
		{"ed", 9, "f.jsonl"},
	}
	for _, tt := range tests {
		got := strings.Join(editorArgs(tt.editor, "f.jsonl", tt.line), " ")
		if got != tt.want {
			t.Errorf("editorArgs(%q, %d) = %q, want %q", tt.editor, tt.line, got, tt.want)
		}
	}
}

func TestFileMissing(t *testing.T) {
	if err := File("/nonexistent/session.jsonl", 1); err == nil {
		t.Error("expected error for missing file")
	}
}
