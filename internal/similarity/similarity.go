// Package similarity scores how close two messages are, for reusing a stored
// human correction on a slightly different message.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Score returns the case-insensitive Levenshtein ratio of a and b in [0, 1]:
// one minus the edit distance divided by the longer rune length. Score is
// symmetric, Score(x, x) is 1 and Score("", "") is 1.
func Score(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	dist := matchr.Levenshtein(a, b)
	return 1 - float64(dist)/float64(longest)
}
