package index

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Zuo-Peng/aisx/internal/parse"
	"github.com/Zuo-Peng/aisx/internal/rules"
	"github.com/Zuo-Peng/aisx/internal/scan"
	"github.com/Zuo-Peng/aisx/internal/stats"
)

const (
	KindText     = "text"
	KindThinking = "thinking"
)

// maxChunkText caps the bytes stored per chunk.
const maxChunkText = 8 * 1024

type Stats struct {
	Scanned  int
	Updated  int
	Skipped  int
	Excluded int
	Pruned   int
	Errors   int
	Warnings []error
}

func (s Stats) String() string {
	return fmt.Sprintf("scanned=%d updated=%d skipped=%d excluded=%d pruned=%d errors=%d",
		s.Scanned, s.Updated, s.Skipped, s.Excluded, s.Pruned, s.Errors)
}

type Options struct {
	Root  string
	Rules rules.RuleSet
}

// IndexAll brings the index in line with the session files under
// opts.Root. Unchanged files are skipped; files that vanished, have no
// searchable text or match the exclusion rules are removed.
func IndexAll(db *DB, opts Options) (Stats, error) {
	var st Stats

	if err := db.syncRules(opts.Rules); err != nil {
		return st, err
	}

	files, err := scan.WalkSessions(opts.Root)
	if err != nil {
		return st, fmt.Errorf("scan: %w", err)
	}
	st.Scanned = len(files)

	seen := make(map[string]struct{})
	kept := make(map[string]struct{})
	for _, fi := range files {
		key := parse.SessionID(fi.Path)

		prev, err := db.fileState(key)
		if err != nil {
			st.Errors++
			st.Warnings = append(st.Warnings, fmt.Errorf("index %s: %w", fi.Path, err))
			continue
		}
		if prev != nil && prev.Mtime == fi.Mtime && prev.Size == fi.Size {
			if prev.Indexed {
				seen[key] = struct{}{}
			} else {
				kept[key] = struct{}{}
			}
			st.Skipped++
			continue
		}

		s, err := parse.ParseFile(fi.Path)
		if err != nil {
			st.Errors++
			st.Warnings = append(st.Warnings, fmt.Errorf("parse %s: %w", fi.Path, err))
			continue
		}
		project := filepath.Base(filepath.Dir(fi.Path))
		display := scan.FolderName(s.Metadata.Cwd)
		if display == "" {
			display = project
		}

		excluded := opts.Rules.ExcludesSession(display, s)
		var chunks []ChunkRow
		if !excluded {
			chunks = Chunks(s)
		}
		if excluded || len(chunks) == 0 {
			if excluded {
				st.Excluded++
			}
			if err := skipSession(db, key, fi, prev); err != nil {
				st.Errors++
				st.Warnings = append(st.Warnings, fmt.Errorf("index %s: %w", fi.Path, err))
				continue
			}
			if prev != nil && prev.Indexed {
				st.Pruned++
			}
			kept[key] = struct{}{}
			continue
		}

		seen[key] = struct{}{}
		if err := indexSession(db, project, fi, s, chunks); err != nil {
			st.Errors++
			st.Warnings = append(st.Warnings, fmt.Errorf("index %s: %w", fi.Path, err))
			continue
		}
		st.Updated++
	}

	pruned, err := pruneSessions(db, seen, kept)
	if err != nil {
		return st, fmt.Errorf("prune: %w", err)
	}
	st.Pruned += pruned
	return st, nil
}

// skipSession drops a previously indexed session and records the file
// state so the file is not parsed again until it changes.
func skipSession(db *DB, key string, fi scan.FileInfo, prev *fileState) error {
	if prev != nil && prev.Indexed {
		if err := db.DeleteSession(key); err != nil {
			return err
		}
	}
	return db.markUnindexed(key, fi.Mtime, fi.Size)
}

// syncRules forces a full re-index when the exclusion rules differ from
// those the index was built with.
func (d *DB) syncRules(set rules.RuleSet) error {
	sources := make([]string, len(set))
	for i, r := range set {
		sources[i] = r.Source
	}
	fingerprint := strings.Join(sources, "\n")
	current, err := d.meta("rules")
	if err != nil {
		return err
	}
	if current == fingerprint {
		return nil
	}
	if err := d.invalidate(); err != nil {
		return err
	}
	return d.setMeta("rules", fingerprint)
}

// Chunks splits a session into searchable rows: one per text block and
// one per thinking block, in message order.
func Chunks(s *parse.Session) []ChunkRow {
	var chunks []ChunkRow
	add := func(m parse.Message, kind, text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		chunks = append(chunks, ChunkRow{
			SessionKey: s.ID,
			ChunkID:    len(chunks),
			Ts:         m.Timestamp,
			Role:       string(m.Role),
			Kind:       kind,
			Text:       clip(text, maxChunkText),
			LineNumber: m.Line,
		})
	}
	for _, m := range s.Messages {
		switch m.Role {
		case parse.RoleUser:
			add(m, KindText, parse.StripSystemTags(m.Text))
		case parse.RoleAssistant:
			add(m, KindThinking, m.Thinking)
			add(m, KindText, m.Text)
		}
	}
	return chunks
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func indexSession(db *DB, project string, fi scan.FileInfo, s *parse.Session, chunks []ChunkRow) error {
	if err := db.DeleteSession(s.ID); err != nil {
		return err
	}

	tx, err := db.Raw().Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m := s.Metadata
	var cost any
	if c := stats.Compute(s).CostEstimateUSD; c != nil {
		cost = *c
	}
	_, err = tx.Exec(
		`INSERT INTO sessions (session_key, project, file_path, title, cwd, git_branch, created_at, updated_at,
		 models, input_tokens, output_tokens, tool_calls, cost_usd, mtime, size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, project, fi.Path, s.Title, m.Cwd, m.GitBranch, m.FirstTimestamp, m.LastTimestamp,
		strings.Join(m.ModelsUsed, ","), m.TotalInputTokens, m.TotalOutputTokens, m.TotalToolCalls, cost,
		fi.Mtime, fi.Size,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO chunks (session_key, chunk_id, ts, role, kind, text, line_number)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.Exec(c.SessionKey, c.ChunkID, c.Ts, c.Role, c.Kind, c.Text, c.LineNumber); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// pruneSessions removes indexed sessions and remembered file states whose
// files were not seen in this run. Only removed sessions are counted.
func pruneSessions(db *DB, seen, kept map[string]struct{}) (int, error) {
	all, err := db.sessionKeys()
	if err != nil {
		return 0, err
	}

	pruned := 0
	for key := range all {
		if _, ok := seen[key]; ok {
			continue
		}
		if err := db.DeleteSession(key); err != nil {
			return pruned, err
		}
		pruned++
	}

	states, err := db.unindexedKeys()
	if err != nil {
		return pruned, err
	}
	for key := range states {
		if _, ok := kept[key]; ok {
			continue
		}
		if _, err := db.Raw().Exec("DELETE FROM unindexed WHERE session_key = ?", key); err != nil {
			return pruned, err
		}
	}
	return pruned, nil
}
