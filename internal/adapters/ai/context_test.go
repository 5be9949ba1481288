package ai

import (
	"strings"
	"testing"
	"time"
)

func TestPromptKeepsAggregatesAndTruncatesDetail(t *testing.T) {
	t.Parallel()

	msgs := make([]string, 2000)
	files := make([]string, 2000)
	for i := range msgs {
		msgs[i] = "refactor the ingestion pipeline once more\nwith a body line"
		files[i] = "internal/services/ingest/service/service.go"
	}

	sc := SessionContext{
		RepoFullName: "octocat/hello",
		Author:       "dev@example.com",
		StartedAt:    time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		EndedAt:      time.Date(2026, 3, 14, 9, 50, 0, 0, time.UTC),
		Commits:      2000,
		Additions:    123,
		Deletions:    45,
		Languages:    []string{"Go", "SQL"},
		Messages:     msgs,
		Files:        files,
	}

	p := sc.Prompt()
	if len(p) > budgetChars+200 {
		t.Fatalf("prompt blew the budget: %d chars", len(p))
	}
	for _, must := range []string{"octocat/hello", "Commits: 2000 (+123/-45 lines)", "Go, SQL", "(+"} {
		if !strings.Contains(p, must) {
			t.Fatalf("prompt missing %q:\n%s", must, p[:200])
		}
	}
	// multi-line commit messages collapse to their subject
	if strings.Contains(p, "with a body line") {
		t.Fatal("commit message bodies must not leak into the prompt")
	}
}

func TestPromptSmallSessionUntruncated(t *testing.T) {
	t.Parallel()

	sc := SessionContext{
		RepoFullName: "octocat/hello",
		Author:       "dev@example.com",
		StartedAt:    time.Now(),
		EndedAt:      time.Now(),
		Commits:      1,
		Messages:     []string{"initial commit"},
		Files:        []string{"main.go"},
	}
	p := sc.Prompt()
	if strings.Contains(p, "more)") {
		t.Fatalf("small session should not be truncated:\n%s", p)
	}
	if !strings.Contains(p, "initial commit") || !strings.Contains(p, "main.go") {
		t.Fatalf("detail lines missing:\n%s", p)
	}
}
