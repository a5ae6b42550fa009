// Package sanitize neutralizes prompt-injection phrasing in user text before
// it is embedded in an inference prompt or compared against other entries.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxLength is the maximum number of characters kept after sanitization.
const MaxLength = 500

// Marker replaces every matched injection pattern.
const Marker = "[REMOVED]"

// Patterns are applied in order, case-insensitively.
var Patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions?`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?previous`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?above`),
	regexp.MustCompile(`(?i)new\s+instructions?:`),
	regexp.MustCompile(`(?i)system\s*:`),
	regexp.MustCompile(`(?i)\[system\]`),
	regexp.MustCompile(`(?i)\[assistant\]`),
	regexp.MustCompile(`(?i)you\s+are\s+now`),
	regexp.MustCompile(`(?i)pretend\s+to\s+be`),
	regexp.MustCompile(`(?i)act\s+as\s+if`),
}

// Text strips injection patterns, collapses triple quotes and truncates to
// MaxLength characters. It never fails; empty input yields empty output.
func Text(text string) string {
	if text == "" {
		return ""
	}
	out := text
	// Collapsing quotes can form a new triple quote, so run to a fixed point.
	for {
		prev := out
		for _, p := range Patterns {
			out = p.ReplaceAllString(out, Marker)
		}
		out = strings.ReplaceAll(out, `"""`, `"`)
		out = strings.ReplaceAll(out, `'''`, `'`)
		out = truncate(out, MaxLength)
		if out == prev {
			break
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
