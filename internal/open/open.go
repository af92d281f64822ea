package open

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Zuo-Peng/aisx/internal/index"
)

// OpenSession opens an indexed session log in $EDITOR, positioned at the
// source line of hitChunkID when it is known.
func OpenSession(db *index.DB, sessionKey string, hitChunkID int) error {
	session, err := db.GetSession(sessionKey)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("session not found: %s", sessionKey)
	}

	line := 1
	if hitChunkID >= 0 {
		if chunks, err := db.GetChunks(sessionKey); err == nil {
			for _, c := range chunks {
				if c.ChunkID == hitChunkID {
					line = c.LineNumber
					break
				}
			}
		}
	}
	return File(session.FilePath, line)
}

// File opens path in $EDITOR (less when unset) at the given line.
func File(path string, line int) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}

	cmd := exec.Command(editor, editorArgs(editor, path, line)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// editorArgs builds the go-to-line arguments understood by common editors.
func editorArgs(editor, path string, line int) []string {
	if line < 1 {
		line = 1
	}
	switch name := filepath.Base(editor); {
	case strings.Contains(name, "vim"), name == "vi", name == "nano", name == "less", name == "emacs":
		return []string{"+" + strconv.Itoa(line), path}
	case strings.Contains(name, "code"), strings.Contains(name, "cursor"):
		return []string{"--goto", path + ":" + strconv.Itoa(line)}
	case name == "hx", name == "subl", name == "zed":
		return []string{path + ":" + strconv.Itoa(line)}
	}
	return []string{path}
}
