package langcode

import "testing"

func TestFromPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"cmd/api/main.go", "Go"},
		{"src/App.TSX", "TypeScript"},
		{"lib/util.py", "Python"},
		{"deep/nested/dir/query.sql", "SQL"},
		{"Dockerfile", "Dockerfile"},
		{"build/Makefile", "Makefile"},
		{"go.mod", "Go Module"},
		{"README.md", "Markdown"},
		{"LICENSE", ""},
		{"bin/tool", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := FromPath(tc.in); got != tc.want {
			t.Fatalf("FromPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
