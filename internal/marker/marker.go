package marker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the content of the export state file.
type State struct {
	LastExportTime string             `json:"lastExportTime"`
	ExportedCount  int                `json:"exportedCount"`
	ExportDir      string             `json:"exportDir"`
	Sessions       map[string]float64 `json:"sessions"`
}

// Load reads the state file. A missing, unreadable or corrupt file is an
// empty state. Files written by older versions hold only the flat
// session-id to mtime map; they are migrated in memory and left as is.
func Load(path string) State {
	st := State{Sessions: map[string]float64{}}
	data, err := os.ReadFile(path)
	if err != nil {
		return st
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return st
	}
	_, hasSessions := raw["sessions"]
	_, hasTime := raw["lastExportTime"]
	if !hasSessions && !hasTime {
		for id, v := range raw {
			var mtime float64
			if json.Unmarshal(v, &mtime) == nil {
				st.Sessions[id] = mtime
			}
		}
		return st
	}

	if err := json.Unmarshal(data, &st); err != nil {
		return State{Sessions: map[string]float64{}}
	}
	if st.Sessions == nil {
		st.Sessions = map[string]float64{}
	}
	return st
}

// Save writes the full schema, creating the parent directory.
func Save(path string, st State) error {
	if st.Sessions == nil {
		st.Sessions = map[string]float64{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write export state: %w", err)
	}
	return nil
}

// Update merges the sessions of one export run into the state file and
// records the run. Entries for sessions not in this run are kept.
func Update(path string, exported map[string]float64, count int, exportDir string, now time.Time) error {
	st := Load(path)
	for id, mtime := range exported {
		st.Sessions[id] = mtime
	}
	st.LastExportTime = now.Format("2006-01-02T15:04:05")
	st.ExportedCount = count
	st.ExportDir = exportDir
	return Save(path, st)
}

// Eligible reports whether a session with the given mtime changed since it
// was last exported. Unknown sessions are always eligible.
func (st State) Eligible(id string, mtime float64) bool {
	return mtime > st.Sessions[id]
}

// Mtime converts a modification time to the float seconds stored in the
// state file.
func Mtime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
