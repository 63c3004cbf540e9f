// Package richtext recovers plain text from the archived attributed-string
// blobs the message store keeps when a message has no plain text column.
//
// This is pattern matching over an undocumented binary format, not a decoder.
// It can discard real text and it can accept noise; it never fails.
package richtext

import "strings"

const minRunLength = 3

// Substrings that mark archiver and framework metadata, matched as written.
var markerSubstrings = []string{
	"NSAttributedString",
	"NSString",
	"NSDictionary",
	"NSObject",
	"__kIM",
}

// Substrings matched case-insensitively (the list is lowercase).
var markerSubstringsFold = []string{
	"streamtyped",
	"com.apple",
	".plist",
	"$class",
	"archiver",
}

var markerPrefixes = []string{"NS", "$", "_", "+", "#", "@"}

// Recover returns the best-effort plain text in blob. The second result is
// false when no candidate survives, which callers treat as "text unavailable".
func Recover(blob []byte) (string, bool) {
	best := ""
	for _, run := range printableRuns(blob) {
		if isNoise(run) {
			continue
		}
		if len(run) > len(best) {
			best = run
		}
	}
	if best == "" {
		return "", false
	}
	text := strings.TrimSpace(stripLead(best))
	if text == "" {
		return "", false
	}
	return text, true
}

// printableRuns returns every maximal run of printable ASCII of at least
// minRunLength bytes, in blob order.
func printableRuns(blob []byte) []string {
	var runs []string
	start := -1
	for i, c := range blob {
		if c >= 0x20 && c <= 0x7e {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= minRunLength {
			runs = append(runs, string(blob[start:i]))
		}
		start = -1
	}
	if start >= 0 && len(blob)-start >= minRunLength {
		runs = append(runs, string(blob[start:]))
	}
	return runs
}

func isNoise(run string) bool {
	cleaned := stripLead(run)
	if len(cleaned) <= 2 || !isAlnum(cleaned[0]) {
		return true
	}
	for _, m := range markerSubstrings {
		if strings.Contains(run, m) {
			return true
		}
	}
	lower := strings.ToLower(run)
	for _, m := range markerSubstringsFold {
		if strings.Contains(lower, m) {
			return true
		}
	}
	for _, p := range markerPrefixes {
		if strings.HasPrefix(run, p) {
			return true
		}
	}
	return false
}

// stripLead drops the non-alphanumeric bytes that precede the text, such as
// the length and type markers the archiver writes in front of a string.
func stripLead(s string) string {
	i := 0
	for i < len(s) && !isAlnum(s[i]) {
		i++
	}
	return s[i:]
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
