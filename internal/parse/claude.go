package parse

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const maxLineSize = 10 * 1024 * 1024 // 10MB

const maxTitleRunes = 100

// ParseFile parses one Claude Code session log. Only I/O failures are
// returned; malformed lines are skipped.
func ParseFile(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer f.Close()

	s, err := ParseReader(SessionID(path), f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s.Path = path
	return s, nil
}

// SessionID derives the session id from a log file path.
func SessionID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".jsonl")
}

// ParseReader parses a session log from r. The result depends only on the
// bytes read.
func ParseReader(id string, r io.Reader) (*Session, error) {
	acc := newAccumulator(id)
	var messages []Message

	lines := newLineReader(r)
	lineNum := 0
	for {
		line, err := lines.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		lineNum++
		rec, ok := DecodeLine(line)
		if !ok {
			continue
		}

		entryType := rec.Type()
		acc.countEntry(entryType)
		acc.observeTimestamp(recordTimestamp(rec))

		var msg Message
		switch entryType {
		case EntryUser:
			msg = processUser(acc, rec, lineNum)
		case EntryAssistant:
			msg = processAssistant(acc, rec, lineNum)
		case EntrySystem:
			msg = processSystem(acc, rec, lineNum)
		case EntryProgress:
			msg = processProgress(rec, lineNum)
		default:
			continue
		}
		if msg.IsSidechain {
			acc.meta.SidechainMessages++
		}
		messages = append(messages, msg)
	}

	if messages == nil {
		messages = []Message{}
	}
	return &Session{
		ID:       id,
		Title:    InferTitle(messages),
		Messages: messages,
		Metadata: acc.freeze(),
	}, nil
}

// lineReader splits a log into lines. A line longer than maxLineSize is
// consumed and returned empty so it decodes as a skipped record.
type lineReader struct {
	r   *bufio.Reader
	buf []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

func (lr *lineReader) next() ([]byte, error) {
	lr.buf = lr.buf[:0]
	tooLong, read := false, false
	for {
		part, err := lr.r.ReadSlice('\n')
		read = read || len(part) > 0
		if !tooLong && len(lr.buf)+len(part) <= maxLineSize {
			lr.buf = append(lr.buf, part...)
		} else {
			tooLong = true
			lr.buf = lr.buf[:0]
		}
		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF && read:
			return lr.buf, nil
		case err != nil:
			return nil, err
		}
		return lr.buf, nil
	}
}

// recordTimestamp returns the record timestamp. Snapshot records keep
// theirs inside the snapshot object.
func recordTimestamp(rec Record) string {
	if ts := rec.Str("timestamp"); ts != "" {
		return ts
	}
	if rec.Type() == EntrySnapshot {
		return rec.Obj("snapshot").Str("timestamp")
	}
	return ""
}

// InferTitle returns the first line of the first user message that still
// has text after internal tags are stripped.
func InferTitle(messages []Message) string {
	for _, m := range messages {
		if m.Role != RoleUser || m.Text == "" {
			continue
		}
		if title := titleLine(m.Text); title != "" {
			return title
		}
	}
	return UntitledTitle
}

func titleLine(text string) string {
	text = StripSystemTags(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if runes := []rune(text); len(runes) > maxTitleRunes {
		text = string(runes[:maxTitleRunes])
	}
	return text
}

var (
	blockTagRes = func() []*regexp.Regexp {
		tags := []string{
			"system-reminder", "ide_opened_file", "user-prompt-submit-hook",
			"claude_background_info", "fast_mode_info", "env",
		}
		res := make([]*regexp.Regexp, len(tags))
		for i, tag := range tags {
			res[i] = regexp.MustCompile(`<` + tag + `>[\s\S]*?</` + tag + `>`)
		}
		return res
	}()
	inlineTagRe = regexp.MustCompile(`</?(?:ide_selection|local-command-stdout|local-command-stderr|command-name|function_calls|example\w*)>`)
)

// StripSystemTags removes the annotation tags the producer injects into
// user text. Block tags are removed with their content.
func StripSystemTags(text string) string {
	for _, re := range blockTagRes {
		text = re.ReplaceAllString(text, "")
	}
	text = inlineTagRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
