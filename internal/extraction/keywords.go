package extraction

import (
	"strings"
	"unicode"
)

// ScanStatus returns the status of the first keyword set with a hit. Both the
// text and the keywords are compared after punctuation is folded to spaces,
// so "not moving forward." matches "not moving forward".
func ScanStatus(text string, sets []KeywordSet) (string, bool) {
	norm := normalizeForKeywords(text)
	if strings.TrimSpace(norm) == "" {
		return "", false
	}
	for _, set := range sets {
		for _, kw := range set.Keywords {
			needle := normalizeForKeywords(kw)
			if strings.TrimSpace(needle) == "" {
				continue
			}
			if strings.Contains(norm, needle) {
				return set.Status, true
			}
		}
	}
	return "", false
}

// normalizeForKeywords lowercases s, maps every non letter/digit rune to a
// space, collapses runs and pads both ends so matches land on word edges.
func normalizeForKeywords(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}
