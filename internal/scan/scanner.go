package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/Zuo-Peng/aisx/internal/parse"
)

// ErrSessionNotFound is returned when no session matches an id or prefix.
var ErrSessionNotFound = errors.New("session not found")

// AmbiguousError is returned when a prefix matches more than one session.
type AmbiguousError struct {
	Prefix  string
	Matches []SessionInfo
}

func (e *AmbiguousError) Error() string {
	ids := make([]string, len(e.Matches))
	for i, m := range e.Matches {
		ids[i] = "  " + m.ID
	}
	return fmt.Sprintf("ambiguous prefix %q matches %d sessions:\n%s", e.Prefix, len(e.Matches), strings.Join(ids, "\n"))
}

// Project is one directory under the projects root holding session logs.
type Project struct {
	Name         string
	Path         string
	DisplayName  string
	SessionCount int
	LastModified time.Time
}

// SessionInfo is one session log on disk.
type SessionInfo struct {
	ID      string
	Path    string
	Size    int64
	ModTime time.Time
}

// SizeText is the human readable file size.
func (s SessionInfo) SizeText() string {
	return humanize.Bytes(uint64(s.Size))
}

// FileInfo is a session file found by WalkSessions.
type FileInfo struct {
	Path  string
	Mtime int64
	Size  int64
}

func isSessionFile(name string) bool {
	return filepath.Ext(name) == ".jsonl" && !strings.HasPrefix(name, ".") &&
		!strings.Contains(name, "sessions-index")
}

// ListProjects returns the projects under root that hold at least one
// session, sorted by directory name. A missing root is no projects.
func ListProjects(root string) ([]Project, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read projects dir: %w", err)
	}

	var projects []Project
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		sessions, err := ListSessions(dir)
		if err != nil || len(sessions) == 0 {
			continue
		}
		p := Project{Name: e.Name(), Path: dir, SessionCount: len(sessions)}
		for _, s := range sessions {
			if s.ModTime.After(p.LastModified) {
				p.LastModified = s.ModTime
			}
			if p.DisplayName == "" {
				p.DisplayName = displayName(s.Path)
			}
		}
		if p.DisplayName == "" {
			p.DisplayName = p.Name
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func displayName(path string) string {
	h, err := parse.Peek(path)
	if err != nil {
		return ""
	}
	return FolderName(h.Cwd)
}

// FolderName is the last folder of a working directory with its first
// letter upper-cased, or "" for an empty cwd.
func FolderName(cwd string) string {
	cwd = strings.TrimRight(strings.ReplaceAll(cwd, `\`, "/"), "/")
	folder := cwd[strings.LastIndex(cwd, "/")+1:]
	if folder == "" {
		return cwd
	}
	r, n := utf8.DecodeRuneInString(folder)
	return string(unicode.ToUpper(r)) + folder[n:]
}

// ListSessions returns the session logs directly inside dir, sorted by
// file name.
func ListSessions(dir string) ([]SessionInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read project dir: %w", err)
	}
	var sessions []SessionInfo
	for _, e := range entries {
		if e.IsDir() || !isSessionFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, e.Name())
		sessions = append(sessions, SessionInfo{
			ID:      parse.SessionID(path),
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}

// FindSession looks a session up by id or id prefix across all projects.
// An exact id wins over prefix matches.
func FindSession(root, idOrPrefix string) (Project, SessionInfo, error) {
	if idOrPrefix == "" {
		return Project{}, SessionInfo{}, ErrSessionNotFound
	}
	projects, err := ListProjects(root)
	if err != nil {
		return Project{}, SessionInfo{}, err
	}

	type hit struct {
		project Project
		session SessionInfo
	}
	var matches []hit
	for _, p := range projects {
		sessions, err := ListSessions(p.Path)
		if err != nil {
			continue
		}
		for _, s := range sessions {
			if s.ID == idOrPrefix {
				return p, s, nil
			}
			if strings.HasPrefix(s.ID, idOrPrefix) {
				matches = append(matches, hit{p, s})
			}
		}
	}
	switch len(matches) {
	case 0:
		return Project{}, SessionInfo{}, fmt.Errorf("%w: %s", ErrSessionNotFound, idOrPrefix)
	case 1:
		return matches[0].project, matches[0].session, nil
	}
	amb := &AmbiguousError{Prefix: idOrPrefix}
	for _, m := range matches {
		amb.Matches = append(amb.Matches, m.session)
	}
	return Project{}, SessionInfo{}, amb
}

// WalkSessions finds every session log under root for the indexer.
// Subagent transcripts are skipped.
func WalkSessions(root string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable dirs
		}
		if info.IsDir() {
			if info.Name() == "subagents" {
				return filepath.SkipDir
			}
			return nil
		}
		if !isSessionFile(info.Name()) {
			return nil
		}
		files = append(files, FileInfo{
			Path:  path,
			Mtime: info.ModTime().Unix(),
			Size:  info.Size(),
		})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return files, nil
}
