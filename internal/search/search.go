package search

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/Zuo-Peng/aisx/internal/index"
)

// Result is one session hit. ChunkID is -1 for listing results.
type Result struct {
	Session    index.SessionRow
	ChunkID    int
	LineNumber int
	Role       string
	Snippet    string
	Rank       float64
}

func (r Result) Key() string { return r.Session.Key }

type Options struct {
	Query   string
	Project string // substring of the project directory name
	Role    string // "" = all, "user", "assistant"
	Since   string // "" = no filter, e.g. "2024-01-01"
	Limit   int
}

// containsCJK returns true if the string contains any CJK Unified Ideograph.
func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// makeSnippet cuts contextChars runes on each side of the first
// case-insensitive occurrence of query and marks the match with >>> <<<.
func makeSnippet(text, query string, contextChars int) string {
	runes := []rune(text)
	lowerRunes := []rune(strings.ToLower(text))
	qRunes := []rune(strings.ToLower(query))
	pos := -1
	if len(lowerRunes) == len(runes) && len(qRunes) > 0 {
		pos = indexRunes(lowerRunes, qRunes)
	}
	if pos < 0 {
		if len(runes) > contextChars*2 {
			return string(runes[:contextChars*2]) + "..."
		}
		return text
	}

	start := max(pos-contextChars, 0)
	end := min(pos+len(qRunes)+contextChars, len(runes))
	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(string(runes[start:pos]))
	b.WriteString(">>>" + string(runes[pos:pos+len(qRunes)]) + "<<<")
	b.WriteString(string(runes[pos+len(qRunes) : end]))
	if end < len(runes) {
		b.WriteString("...")
	}
	return b.String()
}

func indexRunes(s, sub []rune) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// Search runs a full-text query and keeps the best hit per session.
func Search(db *index.DB, opts Options) ([]Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	// fetch more rows so enough sessions survive dedup
	limit := opts.Limit
	opts.Limit = limit * 3

	var results []Result
	var err error
	if containsCJK(opts.Query) {
		results, err = searchLike(db, opts)
	} else {
		results, err = searchFTS(db, opts)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var deduped []Result
	for _, r := range results {
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		deduped = append(deduped, r)
		if len(deduped) >= limit {
			break
		}
	}
	return deduped, nil
}

func filters(opts Options) ([]string, []any) {
	var conditions []string
	var args []any
	if opts.Project != "" {
		conditions = append(conditions, "s.project LIKE ?")
		args = append(args, "%"+opts.Project+"%")
	}
	if opts.Role != "" {
		conditions = append(conditions, "c.role = ?")
		args = append(args, opts.Role)
	}
	if opts.Since != "" {
		conditions = append(conditions, "s.updated_at >= ?")
		args = append(args, opts.Since)
	}
	return conditions, args
}

func searchFTS(db *index.DB, opts Options) ([]Result, error) {
	conditions, args := filters(opts)
	conditions = append([]string{"chunks_fts MATCH ?"}, conditions...)
	args = append([]any{opts.Query}, args...)

	query := fmt.Sprintf(`
		SELECT %s,
			c.chunk_id,
			c.line_number,
			c.role,
			snippet(chunks_fts, 0, '>>>','<<<', '...', 40) AS snip,
			bm25(chunks_fts, 1.0) AS rank
		FROM chunks_fts
		JOIN chunks c ON chunks_fts.rowid = c.rowid
		JOIN sessions s ON c.session_key = s.session_key
		WHERE %s
		ORDER BY rank
		LIMIT ?
	`, index.SessionColumns, strings.Join(conditions, " AND "))
	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		r.Session, err = index.ScanSession(rows, &r.ChunkID, &r.LineNumber, &r.Role, &r.Snippet, &r.Rank)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func searchLike(db *index.DB, opts Options) ([]Result, error) {
	conditions, args := filters(opts)
	conditions = append([]string{"c.text LIKE ?"}, conditions...)
	args = append([]any{"%" + opts.Query + "%"}, args...)

	query := fmt.Sprintf(`
		SELECT %s,
			c.chunk_id,
			c.line_number,
			c.role,
			c.text
		FROM chunks c
		JOIN sessions s ON c.session_key = s.session_key
		WHERE %s
		ORDER BY s.updated_at DESC
		LIMIT ?
	`, index.SessionColumns, strings.Join(conditions, " AND "))
	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var text string
		r.Session, err = index.ScanSession(rows, &r.ChunkID, &r.LineNumber, &r.Role, &text)
		if err != nil {
			return nil, err
		}
		r.Snippet = makeSnippet(text, opts.Query, 30)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListAll returns indexed sessions, most recently updated first.
func ListAll(db *index.DB, opts Options) ([]Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	where := "1 = 1"
	var args []any
	if opts.Project != "" {
		where = "s.project LIKE ?"
		args = append(args, "%"+opts.Project+"%")
	}
	if opts.Since != "" {
		where += " AND s.updated_at >= ?"
		args = append(args, opts.Since)
	}
	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(fmt.Sprintf(
		"SELECT %s FROM sessions s WHERE %s ORDER BY s.updated_at DESC LIMIT ?",
		index.SessionColumns, where,
	), args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()
	return scanListing(rows)
}

func scanListing(rows *sql.Rows) ([]Result, error) {
	var results []Result
	for rows.Next() {
		s, err := index.ScanSession(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Session: s, ChunkID: -1, Snippet: s.Title})
	}
	return results, rows.Err()
}
