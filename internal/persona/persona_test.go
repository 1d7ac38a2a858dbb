package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePersonaFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "persona.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write persona file: %v", err)
	}
	return path
}

func TestLoadAndPreamble(t *testing.T) {
	path := writePersonaFile(t, `{
		"name": "degenbot",
		"bio": "A chain-obsessed poster.",
		"traits": [
			{"title": "tone", "content": "Always lowercase."},
			{"title": "eth", "content": "Loves gas golf.", "keywords": ["gas", "eth"]}
		]
	}`)

	p, err := Load(path, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	preamble := p.Preamble("thinking about eth gas prices")
	if !strings.Contains(preamble, "degenbot") {
		t.Fatalf("preamble missing name: %q", preamble)
	}
	if !strings.Contains(preamble, "Loves gas golf.") {
		t.Fatalf("keyword trait should be selected: %q", preamble)
	}

	preamble = p.Preamble("the weather today")
	if strings.Contains(preamble, "Loves gas golf.") {
		t.Fatalf("unrelated trait should be skipped: %q", preamble)
	}
	if !strings.Contains(preamble, "Always lowercase.") {
		t.Fatalf("keyword-less trait should always be selected: %q", preamble)
	}
}

func TestLoadRejectsMissingName(t *testing.T) {
	path := writePersonaFile(t, `{"bio": "nameless"}`)
	if _, err := Load(path, 3); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestRelevantHonorsLimit(t *testing.T) {
	p := &Persona{
		Name:      "x",
		Traits:    []Trait{{Content: "a"}, {Content: "b"}, {Content: "c"}},
		maxTraits: 2,
	}
	if got := len(p.Relevant("anything")); got != 2 {
		t.Fatalf("expected 2 traits, got %d", got)
	}
}
