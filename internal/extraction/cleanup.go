package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"MailTracker/internal/domain"
)

var (
	bracketExpr = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)
	articleExpr = regexp.MustCompile(`(?i)^(?:the|a|an)\s+`)
	spaceExpr   = regexp.MustCompile(`\s+`)
)

var charReplacer = strings.NewReplacer(
	"\u2018", "'",
	"\u2019", "'",
	"\u201c", `"`,
	"\u201d", `"`,
	"&amp;", "&",
	"\uff06", "&",
	"\u00a0", " ",
)

const trimCutset = " \t.,;:-|!?\"'"

// Clean normalises a recovered name or title. Values shorter than two
// characters collapse to the manual-review sentinel.
func Clean(value string, h *Heuristics) string {
	v := charReplacer.Replace(value)
	v = bracketExpr.ReplaceAllString(v, "")
	v = spaceExpr.ReplaceAllString(v, " ")
	v = strings.Trim(v, trimCutset)
	v = articleExpr.ReplaceAllString(v, "")
	v = stripLegalSuffixes(v, h)
	v = strings.Trim(v, trimCutset)

	if utf8.RuneCountInString(v) < 2 || strings.EqualFold(v, domain.ManualReview) {
		return domain.ManualReview
	}
	return v
}

func stripLegalSuffixes(v string, h *Heuristics) string {
	if h == nil {
		return v
	}
	for {
		trimmed := strings.TrimRight(v, " .,")
		stripped := false
		for _, suffix := range h.LegalSuffixes {
			s := strings.TrimRight(suffix, ".")
			n := len(trimmed) - len(s)
			if n < 1 || !strings.EqualFold(trimmed[n:], s) {
				continue
			}
			if sep := trimmed[n-1]; sep != ' ' && sep != ',' {
				continue
			}
			v = strings.TrimRight(trimmed[:n], " ,")
			stripped = true
			break
		}
		if !stripped {
			return v
		}
	}
}

// truncate cuts s to at most limit runes.
func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
