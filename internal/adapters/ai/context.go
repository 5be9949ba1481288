package ai

import (
	"fmt"
	"strings"
	"time"
)

// budget caps the prompt size. Roughly 4 chars per token puts this around
// 2k tokens, well inside every chat/embedding model's context window
const budgetChars = 8000

// SessionContext is the bounded view of a session handed to capabilities
type SessionContext struct {
	RepoFullName string
	Author       string
	StartedAt    time.Time
	EndedAt      time.Time
	Commits      int
	Additions    int
	Deletions    int
	Languages    []string
	Messages     []string
	Files        []string
}

// Prompt renders the context as the capability input, truncating commit
// messages and file lists before they blow the budget. Aggregate stats
// are always kept; detail is what gets cut
func (sc SessionContext) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", sc.RepoFullName)
	fmt.Fprintf(&b, "Author: %s\n", sc.Author)
	fmt.Fprintf(&b, "Window: %s to %s (%.0f minutes)\n",
		sc.StartedAt.UTC().Format(time.RFC3339),
		sc.EndedAt.UTC().Format(time.RFC3339),
		sc.EndedAt.Sub(sc.StartedAt).Minutes(),
	)
	fmt.Fprintf(&b, "Commits: %d (+%d/-%d lines)\n", sc.Commits, sc.Additions, sc.Deletions)
	if len(sc.Languages) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(sc.Languages, ", "))
	}

	b.WriteString("Commit messages:\n")
	writeBounded(&b, sc.Messages, "- ", budgetChars*3/4)

	b.WriteString("Files touched:\n")
	writeBounded(&b, sc.Files, "- ", budgetChars)

	return b.String()
}

// writeBounded appends items until the builder would exceed limit, then
// notes how many were dropped
func writeBounded(b *strings.Builder, items []string, prefix string, limit int) {
	for i, it := range items {
		line := prefix + firstLine(it) + "\n"
		if b.Len()+len(line) > limit {
			fmt.Fprintf(b, "%s(+%d more)\n", prefix, len(items)-i)
			return
		}
		b.WriteString(line)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
