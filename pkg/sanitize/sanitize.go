// Package sanitize cleans untrusted provider strings before they reach logs or
// terminal output.
package sanitize

import (
	"strings"
	"unicode"
)

// DefaultMaxLen bounds provider-supplied values such as error_description.
const DefaultMaxLen = 200

// minMaxLen leaves room for one character and the ellipsis.
const minMaxLen = 4

// SingleLine collapses all whitespace runs to single spaces, drops other
// control characters and cuts the result to maxLen runes, ending with "..."
// when cut. maxLen below 4 is treated as 4.
func SingleLine(s string, maxLen int) string {
	if maxLen < minMaxLen {
		maxLen = minMaxLen
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
