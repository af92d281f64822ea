package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA cache_size = -64000;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS sessions (
    session_key   TEXT PRIMARY KEY,
    project       TEXT NOT NULL DEFAULT '',
    file_path     TEXT NOT NULL,
    title         TEXT NOT NULL DEFAULT '',
    cwd           TEXT NOT NULL DEFAULT '',
    git_branch    TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL DEFAULT '',
    updated_at    TEXT NOT NULL DEFAULT '',
    models        TEXT NOT NULL DEFAULT '',
    input_tokens  INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    tool_calls    INTEGER NOT NULL DEFAULT 0,
    cost_usd      REAL,
    mtime         INTEGER NOT NULL DEFAULT 0,
    size          INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS chunks (
    session_key TEXT NOT NULL,
    chunk_id    INTEGER NOT NULL,
    ts          TEXT NOT NULL DEFAULT '',
    role        TEXT NOT NULL,
    kind        TEXT NOT NULL DEFAULT 'text',
    text        TEXT NOT NULL,
    line_number INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (session_key, chunk_id)
);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    text,
    content=chunks,
    content_rowid=rowid,
    tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
    INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES('delete', old.rowid, old.text);
END;

CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES('delete', old.rowid, old.text);
    INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TABLE IF NOT EXISTS unindexed (
    session_key TEXT PRIMARY KEY,
    mtime       INTEGER NOT NULL,
    size        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);
`

// schemaVersion must be bumped whenever the parser or chunking changes so
// that every session is re-indexed on the next run.
const schemaVersion = "5"

type DB struct {
	db *sql.DB
}

func OpenDB(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	d := &DB{db: db}
	if err := d.checkVersion(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) checkVersion() error {
	v, err := d.meta("schema_version")
	if err != nil {
		return err
	}
	if v == schemaVersion {
		return nil
	}
	if err := d.invalidate(); err != nil {
		return err
	}
	return d.setMeta("schema_version", schemaVersion)
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Raw() *sql.DB {
	return d.db
}

// meta returns the stored value for key, "" when unset.
func (d *DB) meta(key string) (string, error) {
	var v string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read meta %s: %w", key, err)
	}
	return v, nil
}

func (d *DB) setMeta(key, value string) error {
	if _, err := d.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("write meta %s: %w", key, err)
	}
	return nil
}

// invalidate forgets every recorded file state so the next index run
// re-parses all sessions.
func (d *DB) invalidate() error {
	if _, err := d.db.Exec("UPDATE sessions SET mtime = 0, size = 0"); err != nil {
		return fmt.Errorf("invalidate sessions: %w", err)
	}
	if _, err := d.db.Exec("DELETE FROM unindexed"); err != nil {
		return fmt.Errorf("invalidate unindexed: %w", err)
	}
	return nil
}

// fileState is the recorded modification time and size of a session file.
// Indexed is false for files that were parsed but left out of the index.
type fileState struct {
	Mtime   int64
	Size    int64
	Indexed bool
}

func (d *DB) fileState(key string) (*fileState, error) {
	st := fileState{Indexed: true}
	err := d.db.QueryRow(
		"SELECT mtime, size FROM sessions WHERE session_key = ?", key,
	).Scan(&st.Mtime, &st.Size)
	if err == sql.ErrNoRows {
		st.Indexed = false
		err = d.db.QueryRow(
			"SELECT mtime, size FROM unindexed WHERE session_key = ?", key,
		).Scan(&st.Mtime, &st.Size)
	}
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// markUnindexed remembers the state of a file that produced no index rows
// so unchanged files are not parsed again.
func (d *DB) markUnindexed(key string, mtime, size int64) error {
	_, err := d.db.Exec(
		"INSERT OR REPLACE INTO unindexed (session_key, mtime, size) VALUES (?, ?, ?)",
		key, mtime, size,
	)
	return err
}

func (d *DB) sessionKeys() (map[string]struct{}, error) {
	return d.keys("SELECT session_key FROM sessions")
}

func (d *DB) unindexedKeys() (map[string]struct{}, error) {
	return d.keys("SELECT session_key FROM unindexed")
}

func (d *DB) keys(query string) (map[string]struct{}, error) {
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

func (d *DB) DeleteSession(key string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunks WHERE session_key = ?", key); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM sessions WHERE session_key = ?", key); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM unindexed WHERE session_key = ?", key); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) SessionCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n)
	return n, err
}

func (d *DB) ChunkCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

type SessionRow struct {
	Key          string
	Project      string
	FilePath     string
	Title        string
	Cwd          string
	GitBranch    string
	CreatedAt    string
	UpdatedAt    string
	Models       []string
	InputTokens  int64
	OutputTokens int64
	ToolCalls    int
	CostUSD      *float64
}

// SessionColumns is the column list scanned by ScanSession, prefixed with
// the sessions table alias s.
const SessionColumns = `s.session_key, s.project, s.file_path, s.title, s.cwd, s.git_branch,
	s.created_at, s.updated_at, s.models, s.input_tokens, s.output_tokens, s.tool_calls, s.cost_usd`

type scanner interface {
	Scan(dest ...any) error
}

// ScanSession reads SessionColumns followed by extra destinations.
func ScanSession(row scanner, extra ...any) (SessionRow, error) {
	var s SessionRow
	var models string
	var cost sql.NullFloat64
	dest := append([]any{
		&s.Key, &s.Project, &s.FilePath, &s.Title, &s.Cwd, &s.GitBranch,
		&s.CreatedAt, &s.UpdatedAt, &models, &s.InputTokens, &s.OutputTokens, &s.ToolCalls, &cost,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return s, err
	}
	if models != "" {
		s.Models = strings.Split(models, ",")
	}
	if cost.Valid {
		s.CostUSD = &cost.Float64
	}
	return s, nil
}

func (d *DB) GetSession(key string) (*SessionRow, error) {
	s, err := ScanSession(d.db.QueryRow(
		"SELECT "+SessionColumns+" FROM sessions s WHERE s.session_key = ?", key,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type ChunkRow struct {
	SessionKey string
	ChunkID    int
	Ts         string
	Role       string
	Kind       string
	Text       string
	LineNumber int
}

const chunkColumns = "session_key, chunk_id, ts, role, kind, text, line_number"

func scanChunk(rows *sql.Rows) (ChunkRow, error) {
	var c ChunkRow
	err := rows.Scan(&c.SessionKey, &c.ChunkID, &c.Ts, &c.Role, &c.Kind, &c.Text, &c.LineNumber)
	return c, err
}

func (d *DB) GetChunks(key string) ([]ChunkRow, error) {
	rows, err := d.db.Query(
		"SELECT "+chunkColumns+" FROM chunks WHERE session_key = ? ORDER BY chunk_id", key,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []ChunkRow
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Window is a slice of a session's chunks around a hit. HitIdx is the
// position of the hit inside Chunks (-1 when absent), Before the number of
// chunks preceding the window and Total the session's chunk count.
type Window struct {
	Chunks []ChunkRow
	HitIdx int
	Before int
	Total  int
}

// ChunkWindow loads up to context chunks on each side of hitChunkID. A
// negative hitChunkID loads the whole session.
func (d *DB) ChunkWindow(key string, hitChunkID, context int) (Window, error) {
	w := Window{HitIdx: -1}
	if err := d.db.QueryRow(
		"SELECT COUNT(*) FROM chunks WHERE session_key = ?", key,
	).Scan(&w.Total); err != nil {
		return w, err
	}

	hitPos := -1
	if hitChunkID >= 0 {
		err := d.db.QueryRow(`
			SELECT pos FROM (
				SELECT chunk_id, ROW_NUMBER() OVER (ORDER BY chunk_id) - 1 AS pos
				FROM chunks WHERE session_key = ?
			) WHERE chunk_id = ?`,
			key, hitChunkID,
		).Scan(&hitPos)
		if err != nil && err != sql.ErrNoRows {
			return w, err
		}
	}

	limit := w.Total
	if hitPos >= 0 {
		w.Before = max(hitPos-context, 0)
		limit = min(hitPos+context+1, w.Total) - w.Before
	}

	rows, err := d.db.Query(
		"SELECT "+chunkColumns+" FROM chunks WHERE session_key = ? ORDER BY chunk_id LIMIT ? OFFSET ?",
		key, limit, w.Before,
	)
	if err != nil {
		return w, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return w, err
		}
		if c.ChunkID == hitChunkID {
			w.HitIdx = len(w.Chunks)
		}
		w.Chunks = append(w.Chunks, c)
	}
	return w, rows.Err()
}
