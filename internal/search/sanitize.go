package search

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// escapeRE matches terminal escape sequences that may appear in source
// files: CSI (colors, cursor movement), OSC terminated by BEL or ST, and
// two-byte charset designations.
var escapeRE = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[ -/]*[@-~]|\][^\x07\x1b]*(?:\x07|\x1b\\)|[()*+][A-Za-z0-9])`)

// cleanText makes a raw line safe to render on one terminal row: escape
// sequences are removed, invalid UTF-8 bytes become U+FFFD, tabs become
// spaces and surrounding whitespace is trimmed.
func cleanText(s string) string {
	s = escapeRE.ReplaceAllString(s, "")
	if !utf8.ValidString(s) {
		s = replaceInvalid(s)
	}
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}

// replaceInvalid substitutes U+FFFD for each invalid byte.
func replaceInvalid(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		b.WriteRune(r) // RuneError for a bad byte, with size 1
		s = s[size:]
	}
	return b.String()
}

// truncateMiddle shortens s to at most width display columns by replacing
// its middle with an ellipsis. Wide runes (CJK, emoji) count as two.
func truncateMiddle(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	if width < 3 {
		return prefixWithin(s, width)
	}

	avail := width - 1 // one column for the ellipsis
	head := prefixWithin(s, (avail+1)/2)
	tail := suffixWithin(s, avail/2)
	return head + "…" + tail
}

// prefixWithin returns the longest prefix of s no wider than width.
func prefixWithin(s string, width int) string {
	w := 0
	for i, r := range s {
		w += runewidth.RuneWidth(r)
		if w > width {
			return s[:i]
		}
	}
	return s
}

// suffixWithin returns the longest suffix of s no wider than width.
func suffixWithin(s string, width int) string {
	w := 0
	cut := len(s)
	for cut > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:cut])
		w += runewidth.RuneWidth(r)
		if w > width {
			break
		}
		cut -= size
	}
	return s[cut:]
}
