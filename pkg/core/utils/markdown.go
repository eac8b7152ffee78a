package utils

import (
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"
)

// CleanMarkdown trims surrounding whitespace and strips an outer fenced code
// block (e.g. ```json ... ``` or ```markdown ... ```), including the language
// tag on the fence's opening line, so the result is ready for JSON parsing or
// Markdown rendering. Input that does not both start and end with a fence is
// returned trimmed but otherwise unchanged.
func CleanMarkdown(input string) string {
	cleaned := strings.TrimSpace(input)

	if strings.HasPrefix(cleaned, "```") && strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")

		if nl := strings.IndexByte(cleaned, '\n'); nl >= 0 && isFenceTag(cleaned[:nl]) {
			cleaned = cleaned[nl+1:]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	return cleaned
}

// isFenceTag reports whether line is a bare language tag (e.g. "json",
// "markdown") rather than the start of actual content.
func isFenceTag(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	for _, r := range line {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// ValidateMarkdown checks if the string is valid Markdown using Goldmark.
// Returns true if it parses without critical errors (Goldmark is very permissive, so this is basic).
func ValidateMarkdown(input string) bool {
	parser := goldmark.DefaultParser()
	reader := text.NewReader([]byte(input))
	doc := parser.Parse(reader)
	return doc != nil
}
