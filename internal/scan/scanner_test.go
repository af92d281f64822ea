package scan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func fixture(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "-home-me-webapp", "aaaa1111-x.jsonl"),
		`{"type":"user","cwd":"/home/me/webapp/","message":{"content":"hi"}}`+"\n")
	writeFile(t, filepath.Join(root, "-home-me-webapp", "aaaa2222-y.jsonl"), "")
	writeFile(t, filepath.Join(root, "-home-me-webapp", "notes.txt"), "x")
	writeFile(t, filepath.Join(root, "-home-me-webapp", "aaaa1111-x", "subagents", "agent-1.jsonl"), "{}\n")
	writeFile(t, filepath.Join(root, "-srv-api", "bbbb3333-z.jsonl"), `{"type":"summary"}`+"\n")
	writeFile(t, filepath.Join(root, "-srv-api", ".hidden.jsonl"), "")
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestListProjects(t *testing.T) {
	root := fixture(t)
	projects, err := ListProjects(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 2 {
		t.Fatalf("projects = %+v", projects)
	}
	web := projects[0]
	if web.Name != "-home-me-webapp" || web.DisplayName != "Webapp" || web.SessionCount != 2 {
		t.Errorf("webapp = %+v", web)
	}
	if api := projects[1]; api.DisplayName != "-srv-api" || api.SessionCount != 1 {
		t.Errorf("api = %+v", api)
	}
}

func TestListProjectsMissingRoot(t *testing.T) {
	projects, err := ListProjects(filepath.Join(t.TempDir(), "nope"))
	if err != nil || projects != nil {
		t.Errorf("got %v, %v", projects, err)
	}
}

func TestFindSession(t *testing.T) {
	root := fixture(t)

	p, s, err := FindSession(root, "bbbb")
	if err != nil || s.ID != "bbbb3333-z" || p.Name != "-srv-api" {
		t.Errorf("prefix lookup = %+v %+v %v", p, s, err)
	}

	_, s, err = FindSession(root, "aaaa1111-x")
	if err != nil || s.ID != "aaaa1111-x" {
		t.Errorf("exact lookup = %+v %v", s, err)
	}

	_, _, err = FindSession(root, "aaaa")
	var amb *AmbiguousError
	if !errors.As(err, &amb) || len(amb.Matches) != 2 {
		t.Errorf("ambiguous lookup err = %v", err)
	}

	_, _, err = FindSession(root, "zzzz")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing lookup err = %v", err)
	}
}

func TestWalkSessionsSkipsSubagents(t *testing.T) {
	files, err := WalkSessions(fixture(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Errorf("files = %+v, want 3 top-level sessions", files)
	}
	for _, f := range files {
		if filepath.Base(filepath.Dir(f.Path)) == "subagents" {
			t.Errorf("subagent transcript walked: %s", f.Path)
		}
	}
}
