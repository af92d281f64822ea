package main

import (
	"testing"
)

func TestExportOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    exportOptions
		wantErr bool
	}{
		{"defaults", exportOptions{since: "all", format: "md"}, false},
		{"last both", exportOptions{since: "last", format: "both"}, false},
		{"bad since", exportOptions{since: "yesterday", format: "md"}, true},
		{"bad format", exportOptions{since: "all", format: "html"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFormatCounts(t *testing.T) {
	got := formatCounts(map[string]int{"Read": 2, "Bash": 5, "Edit": 2})
	want := "Bash 5, Edit 2, Read 2"
	if got != want {
		t.Errorf("formatCounts = %q, want %q", got, want)
	}
	if formatCounts(nil) != "" {
		t.Error("empty histogram should render empty")
	}
}

func TestFormatCost(t *testing.T) {
	if got := formatCost(nil); got != "n/a" {
		t.Errorf("formatCost(nil) = %q", got)
	}
	c := 0.0123
	if got := formatCost(&c); got != "$0.0123 (estimate)" {
		t.Errorf("formatCost = %q", got)
	}
}

func TestTSVField(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "-"},
		{"a\tb", "a b"},
		{"line1\nline2", "line1 line2"},
	}
	for _, tt := range tests {
		if got := tsvField(tt.in); got != tt.want {
			t.Errorf("tsvField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID = %q", got)
	}
}
