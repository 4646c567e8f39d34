// Package arabic classifies Arabic-script text and extracts the spans
// that should receive restyling. It covers the Arabic, Arabic Supplement,
// Arabic Extended-A and both Presentation Forms Unicode blocks.
package arabic

import "regexp"

// ranges is the character-class body for the covered Unicode blocks.
const ranges = `\x{0600}-\x{06FF}\x{0750}-\x{077F}\x{08A0}-\x{08FF}\x{FB50}-\x{FDFF}\x{FE70}-\x{FEFF}`

var (
	arabicChar = regexp.MustCompile(`[` + ranges + `]`)

	// arabicRun matches a maximal styling span: it opens on an Arabic
	// character and is extended by further Arabic characters, digits and
	// any non-word character (\W is ASCII-negated, so punctuation,
	// whitespace and non-Latin marks all extend the run while ASCII
	// letters close it). Mixed Arabic/Latin punctuation and numerals
	// therefore stay inside one span. Do not tighten this to
	// script-characters-only; the granularity is load-bearing for how
	// pages end up styled.
	arabicRun = regexp.MustCompile(`[` + ranges + `]+[` + ranges + `\d\W]*`)
)

// Matches reports whether s contains at least one character in the
// covered blocks. Empty, whitespace-only and non-Arabic text does not
// match.
func Matches(s string) bool {
	return arabicChar.MatchString(s)
}

// Runs returns the byte-offset [start, end) spans of every maximal
// styling run in s, in order. Pure: the same input always yields the
// same spans.
func Runs(s string) [][]int {
	return arabicRun.FindAllStringIndex(s, -1)
}
