package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Zuo-Peng/aisx/internal/parse"
	"github.com/Zuo-Peng/aisx/internal/rules"
)

func writeSession(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func setup(t *testing.T) (string, *DB) {
	t.Helper()
	root := t.TempDir()
	writeSession(t, filepath.Join(root, "-home-me-webapp", "s1.jsonl"),
		`{"type":"user","timestamp":"2026-01-01T10:00:00Z","cwd":"/home/me/webapp","message":{"content":"<system-reminder>x</system-reminder>explain the retry loop"}}`,
		`{"type":"assistant","timestamp":"2026-01-01T10:00:05Z","message":{"model":"claude-opus-4","usage":{"input_tokens":100,"output_tokens":10},"content":[{"type":"thinking","thinking":"look at backoff"},{"type":"text","text":"The loop retries three times."}]}}`,
	)
	writeSession(t, filepath.Join(root, "-home-me-webapp", "s2.jsonl"),
		`{"type":"user","timestamp":"2026-01-02T10:00:00Z","message":{"content":"paste the api secret"}}`,
	)
	writeSession(t, filepath.Join(root, "-home-me-webapp", "empty.jsonl"),
		`{"type":"summary","summary":"x"}`,
	)

	db, err := OpenDB(filepath.Join(t.TempDir(), "idx", "aisx.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return root, db
}

func TestIndexAll(t *testing.T) {
	root, db := setup(t)

	st, err := IndexAll(db, Options{Root: root})
	if err != nil {
		t.Fatal(err)
	}
	if st.Scanned != 3 || st.Updated != 2 || st.Errors != 0 {
		t.Errorf("first run = %s", st)
	}

	s, err := db.GetSession("s1")
	if err != nil || s == nil {
		t.Fatalf("GetSession = %v, %v", s, err)
	}
	if s.Title != "explain the retry loop" || s.Project != "-home-me-webapp" || s.Cwd != "/home/me/webapp" {
		t.Errorf("session = %+v", s)
	}
	if len(s.Models) != 1 || s.InputTokens != 100 || s.CostUSD == nil {
		t.Errorf("usage columns = %+v", s)
	}

	chunks, err := db.GetChunks("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 || chunks[1].Kind != KindThinking || chunks[0].Text != "explain the retry loop" {
		t.Errorf("chunks = %+v", chunks)
	}
	if chunks[0].LineNumber != 1 || chunks[2].LineNumber != 2 {
		t.Errorf("line numbers = %d %d", chunks[0].LineNumber, chunks[2].LineNumber)
	}
	if chunks[0].Role != "user" || chunks[1].Role != "assistant" || chunks[2].Role != "assistant" {
		t.Errorf("roles = %q %q %q", chunks[0].Role, chunks[1].Role, chunks[2].Role)
	}

	st, err = IndexAll(db, Options{Root: root})
	if err != nil {
		t.Fatal(err)
	}
	if st.Updated != 0 || st.Skipped != 3 || st.Pruned != 0 {
		t.Errorf("second run = %s", st)
	}
}

func TestIndexAllRemembersUnindexedFiles(t *testing.T) {
	root, db := setup(t)
	set, _ := rules.Load(strings.NewReader("secret\n"))
	if _, err := IndexAll(db, Options{Root: root, Rules: set}); err != nil {
		t.Fatal(err)
	}

	// the excluded and the chunkless session are not parsed again
	st, err := IndexAll(db, Options{Root: root, Rules: set})
	if err != nil {
		t.Fatal(err)
	}
	if st.Skipped != 3 || st.Excluded != 0 || st.Updated != 0 {
		t.Errorf("unchanged run = %s", st)
	}

	empty := filepath.Join(root, "-home-me-webapp", "empty.jsonl")
	writeSession(t, empty,
		`{"type":"summary","summary":"x"}`,
		`{"type":"user","message":{"content":"now it has text"}}`,
	)
	later := time.Now().Add(time.Hour)
	os.Chtimes(empty, later, later)

	st, err = IndexAll(db, Options{Root: root, Rules: set})
	if err != nil {
		t.Fatal(err)
	}
	if st.Updated != 1 || st.Skipped != 2 {
		t.Errorf("changed run = %s", st)
	}
	if s, _ := db.GetSession("empty"); s == nil || s.Title != "now it has text" {
		t.Errorf("session = %+v", s)
	}
	keys, err := db.unindexedKeys()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := keys["empty"]; ok || len(keys) != 1 {
		t.Errorf("unindexed = %v, want only s2", keys)
	}

	os.Remove(filepath.Join(root, "-home-me-webapp", "s2.jsonl"))
	if _, err := IndexAll(db, Options{Root: root, Rules: set}); err != nil {
		t.Fatal(err)
	}
	if keys, _ := db.unindexedKeys(); len(keys) != 0 {
		t.Errorf("vanished file state kept: %v", keys)
	}
}

func TestMetaErrorsSurface(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "aisx.db"))
	if err != nil {
		t.Fatal(err)
	}
	if v, err := db.meta("missing"); err != nil || v != "" {
		t.Errorf("unset meta = %q, %v", v, err)
	}
	db.Close()

	if _, err := db.meta("schema_version"); err == nil {
		t.Error("expected error reading meta from a closed db")
	}
	if err := db.setMeta("rules", "x"); err == nil {
		t.Error("expected error writing meta to a closed db")
	}
	if _, err := IndexAll(db, Options{Root: t.TempDir()}); err == nil {
		t.Error("expected IndexAll to report the meta failure")
	}
}

func TestIndexAllReindexAndPrune(t *testing.T) {
	root, db := setup(t)
	if _, err := IndexAll(db, Options{Root: root}); err != nil {
		t.Fatal(err)
	}

	p1 := filepath.Join(root, "-home-me-webapp", "s1.jsonl")
	later := time.Now().Add(time.Hour)
	os.Chtimes(p1, later, later)
	os.Remove(filepath.Join(root, "-home-me-webapp", "s2.jsonl"))

	st, err := IndexAll(db, Options{Root: root})
	if err != nil {
		t.Fatal(err)
	}
	if st.Updated != 1 || st.Pruned != 1 {
		t.Errorf("run = %s", st)
	}
	if n, _ := db.SessionCount(); n != 1 {
		t.Errorf("sessions = %d", n)
	}
}

func TestIndexAllExclusion(t *testing.T) {
	root, db := setup(t)
	if _, err := IndexAll(db, Options{Root: root}); err != nil {
		t.Fatal(err)
	}

	set, _ := rules.Load(strings.NewReader("secret\n"))
	st, err := IndexAll(db, Options{Root: root, Rules: set})
	if err != nil {
		t.Fatal(err)
	}
	if st.Excluded != 1 || st.Pruned != 1 || st.Skipped != 0 {
		t.Errorf("run = %s", st)
	}
	if s, _ := db.GetSession("s2"); s != nil {
		t.Error("excluded session still indexed")
	}

	// project display name is matched too
	set, _ = rules.Load(strings.NewReader("Webapp AND retry\n"))
	if _, err := IndexAll(db, Options{Root: root, Rules: set}); err != nil {
		t.Fatal(err)
	}
	if s, _ := db.GetSession("s1"); s != nil {
		t.Error("s1 should be excluded by display name rule")
	}
}

func TestChunkWindow(t *testing.T) {
	root, db := setup(t)
	if _, err := IndexAll(db, Options{Root: root}); err != nil {
		t.Fatal(err)
	}

	w, err := db.ChunkWindow("s1", 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if w.Total != 3 || w.Before != 1 || len(w.Chunks) != 2 || w.HitIdx != 1 {
		t.Errorf("window = %+v", w)
	}

	w, err = db.ChunkWindow("s1", -1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Chunks) != 3 || w.HitIdx != -1 || w.Before != 0 {
		t.Errorf("full window = %+v", w)
	}
}

func TestChunksClip(t *testing.T) {
	long := strings.Repeat("é", maxChunkText)
	s := &parse.Session{ID: "x", Messages: []parse.Message{{Role: parse.RoleAssistant, Text: long}}}
	chunks := Chunks(s)
	if len(chunks) != 1 || len(chunks[0].Text) != maxChunkText {
		t.Fatalf("clipped length = %d", len(chunks[0].Text))
	}
	if !strings.HasSuffix(chunks[0].Text, "é") {
		t.Error("clip split a rune")
	}
}

func TestSchemaVersionBump(t *testing.T) {
	root, _ := setup(t)
	path := filepath.Join(t.TempDir(), "aisx.db")
	db, err := OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := IndexAll(db, Options{Root: root}); err != nil {
		t.Fatal(err)
	}
	db.setMeta("schema_version", "old")
	db.Close()

	reopened, err := OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	st, err := IndexAll(reopened, Options{Root: root})
	if err != nil {
		t.Fatal(err)
	}
	if st.Updated != 2 || st.Skipped != 0 {
		t.Errorf("after version bump = %s", st)
	}
}
