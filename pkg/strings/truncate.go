package strings

import (
	"strings"
)

// MinTruncateLen is the minimum maxLen value for SingleLine.
// Values smaller than this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// SingleLine collapses all whitespace runs (including newlines) into single
// spaces and truncates the result to maxLen runes, ending in "..." when cut.
// maxLen is clamped to MinTruncateLen.
func SingleLine(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// Head returns the first n runes of s unchanged, followed by "..." when s is
// longer. Unlike SingleLine, whitespace is preserved so response bodies keep
// their shape.
func Head(s string, n int) string {
	if n < 0 {
		n = 0
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
