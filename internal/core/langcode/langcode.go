// Package langcode infers a programming language from a file path
// push payloads carry no per-file language, so we map by extension
package langcode

import (
	"path"
	"strings"
)

var byExt = map[string]string{
	".go":     "Go",
	".py":     "Python",
	".rb":     "Ruby",
	".js":     "JavaScript",
	".jsx":    "JavaScript",
	".mjs":    "JavaScript",
	".ts":     "TypeScript",
	".tsx":    "TypeScript",
	".java":   "Java",
	".kt":     "Kotlin",
	".kts":    "Kotlin",
	".swift":  "Swift",
	".m":      "Objective-C",
	".c":      "C",
	".h":      "C",
	".cc":     "C++",
	".cpp":    "C++",
	".cxx":    "C++",
	".hpp":    "C++",
	".cs":     "C#",
	".rs":     "Rust",
	".php":    "PHP",
	".scala":  "Scala",
	".clj":    "Clojure",
	".ex":     "Elixir",
	".exs":    "Elixir",
	".erl":    "Erlang",
	".hs":     "Haskell",
	".lua":    "Lua",
	".r":      "R",
	".pl":     "Perl",
	".sh":     "Shell",
	".bash":   "Shell",
	".zsh":    "Shell",
	".ps1":    "PowerShell",
	".sql":    "SQL",
	".html":   "HTML",
	".htm":    "HTML",
	".css":    "CSS",
	".scss":   "SCSS",
	".sass":   "SCSS",
	".less":   "Less",
	".vue":    "Vue",
	".svelte": "Svelte",
	".dart":   "Dart",
	".zig":    "Zig",
	".nim":    "Nim",
	".ml":     "OCaml",
	".proto":  "Protocol Buffers",
	".tf":     "HCL",
	".yaml":   "YAML",
	".yml":    "YAML",
	".toml":   "TOML",
	".json":   "JSON",
	".md":     "Markdown",
	".tex":    "TeX",
}

// filenames without a meaningful extension
var byName = map[string]string{
	"dockerfile":     "Dockerfile",
	"makefile":       "Makefile",
	"rakefile":       "Ruby",
	"gemfile":        "Ruby",
	"vagrantfile":    "Ruby",
	"cmakelists.txt": "CMake",
	"go.mod":         "Go Module",
	"go.sum":         "Go Module",
}

// FromPath returns the inferred language for a repo-relative path
// or "" when nothing sensible can be said
func FromPath(p string) string {
	base := strings.ToLower(path.Base(p))
	if lang, ok := byName[base]; ok {
		return lang
	}
	if lang, ok := byExt[strings.ToLower(path.Ext(base))]; ok {
		return lang
	}
	return ""
}
