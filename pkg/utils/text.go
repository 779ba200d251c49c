// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"regexp"
	"unicode/utf8"
)

var blankLines = regexp.MustCompile(`\n\s*\n`)

// CollapseBlankLines collapses runs of blank lines into a single newline.
// Applied to extracted text before chunking so windows are not dominated by
// layout whitespace.
func CollapseBlankLines(s string) string {
	return blankLines.ReplaceAllString(s, "\n")
}

// Truncate returns s truncated to at most maxLen bytes, with "..." appended
// if truncated. The cut never lands inside a multi-byte rune. If maxLen is 0
// or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:RuneBoundary(s, maxLen)] + "..."
}

// RuneBoundary returns the largest index <= n that does not split a rune in s.
func RuneBoundary(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
