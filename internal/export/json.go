package export

import (
	"encoding/json"
	"time"

	"github.com/Zuo-Peng/aisx/internal/parse"
	"github.com/Zuo-Peng/aisx/internal/stats"
)

// SchemaVersion is written into every JSON export.
const SchemaVersion = "2.0"

type jsonExport struct {
	SchemaVersion string          `json:"schema_version"`
	ExportedAt    string          `json:"exported_at"`
	SessionID     string          `json:"session_id"`
	Title         string          `json:"title"`
	Metadata      parse.Metadata  `json:"metadata"`
	Stats         stats.Stats     `json:"stats"`
	Messages      []parse.Message `json:"messages"`
}

// JSON renders a session with its stats as indented JSON.
func JSON(s *parse.Session, st stats.Stats, now time.Time) (string, error) {
	out := jsonExport{
		SchemaVersion: SchemaVersion,
		ExportedAt:    now.UTC().Format(time.RFC3339),
		SessionID:     s.ID,
		Title:         s.Title,
		Metadata:      s.Metadata,
		Stats:         st,
		Messages:      s.Messages,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
