package parse

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// peekWindow bounds how much of each end of a file Peek reads.
const peekWindow = 64 * 1024

// Peek infers the title, working directory and first/last timestamps from
// the first and last peekWindow bytes of a session file. Titles that only
// appear past the head window read as untitled.
func Peek(path string) (Header, error) {
	h := Header{ID: SessionID(path), Path: path, Title: UntitledTitle}

	f, err := os.Open(path)
	if err != nil {
		return h, fmt.Errorf("open session: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return h, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()

	head := make([]byte, min(size, peekWindow))
	if _, err := io.ReadFull(f, head); err != nil {
		return h, fmt.Errorf("read %s: %w", path, err)
	}

	var tail []byte
	if size > 2*peekWindow {
		tail = make([]byte, peekWindow)
		if _, err := f.ReadAt(tail, size-peekWindow); err != nil && err != io.EOF {
			return h, fmt.Errorf("read %s: %w", path, err)
		}
		// the first tail line is almost always cut
		if i := bytes.IndexByte(tail, '\n'); i >= 0 {
			tail = tail[i+1:]
		}
	} else if size > peekWindow {
		rest := make([]byte, size-peekWindow)
		if _, err := io.ReadFull(f, rest); err != nil {
			return h, fmt.Errorf("read %s: %w", path, err)
		}
		head = append(head, rest...)
	}

	for _, line := range bytes.Split(head, []byte("\n")) {
		rec, ok := DecodeLine(line)
		if !ok {
			continue
		}
		ts := recordTimestamp(rec)
		if h.FirstTimestamp == "" {
			h.FirstTimestamp = ts
		}
		if ts != "" {
			h.LastTimestamp = ts
		}
		if h.Cwd == "" {
			h.Cwd = rec.Str("cwd")
		}
		if h.Title == UntitledTitle && rec.Type() == EntryUser {
			if text := ExtractText(rec.Obj("message").Get("content")); text != "" {
				if title := titleLine(text); title != "" {
					h.Title = title
				}
			}
		}
	}

	lines := bytes.Split(tail, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		rec, ok := DecodeLine(lines[i])
		if !ok {
			continue
		}
		if ts := recordTimestamp(rec); ts != "" {
			h.LastTimestamp = ts
			break
		}
	}
	return h, nil
}
