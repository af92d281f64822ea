package rules

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Term is one operand of a rule. Words and phrases both match as
// case-insensitive substrings; a phrase may contain spaces.
type Term struct {
	Value  string
	Phrase bool
}

func (t Term) matches(lowerText string) bool {
	if t.Value == "" {
		return false
	}
	return strings.Contains(lowerText, strings.ToLower(t.Value))
}

// Rule is an OR of AND-clauses.
type Rule struct {
	Source  string
	Clauses [][]Term
}

// Matches reports whether any clause has all of its terms in text.
func (r Rule) Matches(text string) bool {
	lower := strings.ToLower(text)
	for _, clause := range r.Clauses {
		if len(clause) == 0 {
			continue
		}
		all := true
		for _, t := range clause {
			if !t.matches(lower) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// RuleSet is the parsed content of a rule file.
type RuleSet []Rule

// Excludes reports whether any rule matches text. An empty set or an empty
// text never excludes.
func (rs RuleSet) Excludes(text string) bool {
	if text == "" || len(rs) == 0 {
		return false
	}
	for _, r := range rs {
		if r.Matches(text) {
			return true
		}
	}
	return false
}

type token struct {
	op   string // "AND", "OR" or "" for a term
	term Term
}

// Parse parses one rule line. AND binds tighter than OR, and adjacent terms
// without an operator are ANDed.
func Parse(line string) Rule {
	r := Rule{Source: strings.TrimSpace(line)}
	var current []Term
	for _, tok := range tokenize(line) {
		switch tok.op {
		case "OR":
			if len(current) > 0 {
				r.Clauses = append(r.Clauses, current)
			}
			current = nil
		case "AND":
		default:
			current = append(current, tok.term)
		}
	}
	if len(current) > 0 {
		r.Clauses = append(r.Clauses, current)
	}
	return r
}

func tokenize(line string) []token {
	var toks []token
	rest := strings.TrimSpace(line)
	for rest != "" {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if rest == "" {
			break
		}
		if kw, ok := keyword(rest); ok {
			toks = append(toks, token{op: kw})
			rest = rest[len(kw):]
			continue
		}
		if rest[0] == '"' {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				// unterminated quote: the rest of the line is one word
				toks = append(toks, token{term: Term{Value: strings.TrimSpace(rest[1:])}})
				break
			}
			toks = append(toks, token{term: Term{Value: rest[1 : end+1], Phrase: true}})
			rest = rest[end+2:]
			continue
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			end = len(rest)
		}
		toks = append(toks, token{term: Term{Value: rest[:end]}})
		rest = rest[end:]
	}
	return toks
}

// keyword matches a case-insensitive AND or OR followed by a non-word
// rune or the end of the line.
func keyword(s string) (string, bool) {
	for _, kw := range []string{"AND", "OR"} {
		if len(s) < len(kw) || !strings.EqualFold(s[:len(kw)], kw) {
			continue
		}
		next, _ := utf8.DecodeRuneInString(s[len(kw):])
		if len(s) == len(kw) || !isWordRune(next) {
			return kw, true
		}
	}
	return "", false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Load reads one rule per line. Blank lines and lines starting with # are
// skipped, as are lines without any term.
func Load(r io.Reader) (RuleSet, error) {
	var rs RuleSet
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if rule := Parse(line); len(rule.Clauses) > 0 {
			rs = append(rs, rule)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// LoadFile loads a rule file. An empty path is an empty set. On any error
// the set is empty and filtering is off; callers report the error as a
// warning.
func LoadFile(path string) (RuleSet, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("exclusion rules: %w", err)
	}
	defer f.Close()
	rs, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("exclusion rules %s: %w", path, err)
	}
	return rs, nil
}

// ResolvePath picks the rule file to load. An explicit path is returned
// absolute even when missing, so the load reports it; otherwise the
// default is used only when it exists. "" means no filtering.
func ResolvePath(cliPath, defaultPath string) string {
	if cliPath != "" {
		if abs, err := filepath.Abs(expandHome(cliPath)); err == nil {
			return abs
		}
		return cliPath
	}
	if defaultPath != "" {
		if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
			return defaultPath
		}
	}
	return ""
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
