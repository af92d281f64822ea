package rules

import (
	"strings"

	"github.com/Zuo-Peng/aisx/internal/parse"
)

// Fields are the parts of a session that rules are matched against.
type Fields struct {
	Project string
	Title   string
	Models  []string
	Content string
}

// SearchableText joins the non-empty fields with newlines.
func SearchableText(f Fields) string {
	parts := make([]string, 0, 3+len(f.Models))
	for _, p := range append([]string{f.Project, f.Title}, f.Models...) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if f.Content != "" {
		parts = append(parts, f.Content)
	}
	return strings.Join(parts, "\n")
}

// SessionContent joins the non-blank text of every message.
func SessionContent(s *parse.Session) string {
	var parts []string
	for _, m := range s.Messages {
		if strings.TrimSpace(m.Text) != "" {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// SessionFields builds the match fields of a parsed session in project.
func SessionFields(project string, s *parse.Session) Fields {
	return Fields{
		Project: project,
		Title:   s.Title,
		Models:  s.Metadata.ModelsUsed,
		Content: SessionContent(s),
	}
}

// ExcludesSession is Excludes over the searchable text of s.
func (rs RuleSet) ExcludesSession(project string, s *parse.Session) bool {
	if len(rs) == 0 {
		return false
	}
	return rs.Excludes(SearchableText(SessionFields(project, s)))
}
