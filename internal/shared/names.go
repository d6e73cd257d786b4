package shared

import (
	"strings"
	"unicode"

	"github.com/xrash/smetrics"
)

// maxEditTolerance caps the edit distance [IsLike] accepts regardless of name length.
const maxEditTolerance = 3

// NormalizeTrackKey builds a lookup key from a title and artist: lowercased, trimmed, inner whitespace collapsed.
func NormalizeTrackKey(title, artist string) string {
	return collapse(strings.ToLower(title)) + "|" + collapse(strings.ToLower(artist))
}

// NormalizeName folds a track or artist name for comparison.
//
// Letters and digits are lowercased, apostrophes are dropped ("Don't" == "Dont"), any other
// punctuation or symbol becomes a space and runs of whitespace collapse to one.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case r == '\'' || r == '’' || r == '`':
		default:
			b.WriteRune(' ')
		}
	}
	return collapse(b.String())
}

// IsLike reports whether two names refer to the same thing.
//
// Names are equal after [NormalizeName], or, for names of ten or more runes, within a small
// Wagner-Fischer distance (one edit per ten runes, capped at [maxEditTolerance]; substitutions cost two).
// Empty names never match.
func IsLike(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}

	longest := max(len([]rune(na)), len([]rune(nb)))
	tolerance := min(longest/10, maxEditTolerance)
	if tolerance == 0 {
		return false
	}
	return smetrics.WagnerFischer(na, nb, 1, 1, 2) <= tolerance
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
