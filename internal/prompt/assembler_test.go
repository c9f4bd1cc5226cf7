package prompt

import (
	"errors"
	"strings"
	"testing"

	"lantern/internal/domain"
	"lantern/internal/domain/models"
)

var testPrompts = Prompts{
	Common:  "common instructions",
	Explain: "explain instructions",
	Idea:    "idea instructions",
}

func TestAssembleFreeChatPassthrough(t *testing.T) {
	got, err := Assemble(models.ModeFree, "just a question", Inputs{Prompts: testPrompts})
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	if got.System != "" {
		t.Errorf("free chat system prompt = %q, want empty", got.System)
	}
	if got.User != "just a question" {
		t.Errorf("free chat user prompt = %q, want passthrough", got.User)
	}
}

func TestAssembleExplain(t *testing.T) {
	got, err := Assemble(models.ModeExplain, "goroutines", Inputs{Prompts: testPrompts})
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	if got.System != "common instructions\n\nexplain instructions" {
		t.Errorf("system = %q", got.System)
	}
	for _, want := range []string{"goroutines", "overview", "details", "concrete examples", "summary"} {
		if !strings.Contains(got.User, want) {
			t.Errorf("user prompt missing %q: %s", want, got.User)
		}
	}
}

func TestAssembleIdea(t *testing.T) {
	got, err := Assemble(models.ModeIdea, "side projects", Inputs{Prompts: testPrompts})
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	if got.System != "common instructions\n\nidea instructions" {
		t.Errorf("system = %q", got.System)
	}
	for _, want := range []string{"side projects", "candidate ideas", "recommended next steps"} {
		if !strings.Contains(got.User, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestAssembleSearchRequiresResults(t *testing.T) {
	_, err := Assemble(models.ModeSearch, "latest news", Inputs{Prompts: testPrompts})
	if err == nil {
		t.Fatal("Assemble() succeeded with no search results")
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v, want validation sentinel match", err)
	}
}

func TestAssembleSearchEmbedsResults(t *testing.T) {
	results := []models.SearchResult{
		{Title: "First", URL: "https://a.example", Snippet: "snippet one"},
		{Title: "Second", URL: "https://b.example", Snippet: "snippet two"},
	}
	got, err := Assemble(models.ModeSearch, "what happened", Inputs{
		Prompts:       testPrompts,
		SearchResults: results,
	})
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	if got.System != "common instructions" {
		t.Errorf("system = %q", got.System)
	}
	for _, want := range []string{
		"what happened",
		"[1] First", "https://a.example", "snippet one",
		"[2] Second", "https://b.example",
		"Cite the URLs",
	} {
		if !strings.Contains(got.User, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestAssembleRAGEmbedsMatches(t *testing.T) {
	matches := []models.RAGMatch{
		{Content: "chunk one", Metadata: models.RAGMetadata{Filename: "notes.md"}, Score: 0.87},
		{Content: "chunk two", Metadata: models.RAGMetadata{Filename: "guide.md"}, Score: 0.5},
	}
	got, err := Assemble(models.ModeRAG, "how do I", Inputs{
		Prompts:    testPrompts,
		RAGMatches: matches,
	})
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	for _, want := range []string{
		"[notes.md] (relevance 87%)", "chunk one",
		"[guide.md] (relevance 50%)", "chunk two",
		"Cite the filenames",
	} {
		if !strings.Contains(got.User, want) {
			t.Errorf("user prompt missing %q: %s", want, got.User)
		}
	}
}

func TestAssembleRAGNoMatches(t *testing.T) {
	got, err := Assemble(models.ModeRAG, "unknown topic", Inputs{Prompts: testPrompts})
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	if !strings.Contains(got.User, "No matching reference material") {
		t.Errorf("user prompt = %q, want explicit no-match instruction", got.User)
	}
	if !strings.Contains(got.User, "instead of guessing") {
		t.Errorf("user prompt = %q, want anti-fabrication instruction", got.User)
	}
}

func TestAssembleSupplementaryRAGOutsideRAGMode(t *testing.T) {
	matches := []models.RAGMatch{
		{Content: "background", Metadata: models.RAGMetadata{Filename: "ref.md"}, Score: 0.6},
	}
	got, err := Assemble(models.ModeExplain, "topic", Inputs{
		Prompts:    testPrompts,
		RAGMatches: matches,
	})
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	if !strings.Contains(got.User, "Supplementary reference material") {
		t.Errorf("user prompt missing supplementary block: %s", got.User)
	}
	if !strings.Contains(got.User, "[ref.md] (relevance 60%)") {
		t.Errorf("user prompt missing match: %s", got.User)
	}
}

func TestAssembleUnknownMode(t *testing.T) {
	_, err := Assemble(models.ConversationMode("bogus"), "msg", Inputs{Prompts: testPrompts})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v, want validation sentinel match", err)
	}
}
