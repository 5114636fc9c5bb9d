package extraction

import (
	"regexp"
	"strings"

	"MailTracker/internal/domain"
)

// Disambiguation is the rule applied to the captures after a pattern matched.
type Disambiguation int

const (
	// KeepOrder trusts the capture groups as declared.
	KeepOrder Disambiguation = iota
	// SwapOnRoleKeyword swaps the captures when the primary capture contains a
	// role keyword and the secondary one does not.
	SwapOnRoleKeyword
)

// Pattern is one regular expression with a declared mapping from capture
// groups to the primary (company, funder) and secondary (title) fields.
// A group index of zero means the pattern does not capture that field.
type Pattern struct {
	Name           string
	Expr           *regexp.Regexp
	PrimaryGroup   int
	SecondaryGroup int
	Rule           Disambiguation
}

// Match is the structured result of a pattern. Unresolved fields hold the
// manual-review sentinel.
type Match struct {
	Pattern   string
	Primary   string
	Secondary string
}

// Complete reports whether both fields were resolved.
func (m Match) Complete() bool {
	return !domain.IsManualReview(m.Primary) && !domain.IsManualReview(m.Secondary)
}

// Partial reports whether at least one field was resolved.
func (m Match) Partial() bool {
	return !domain.IsManualReview(m.Primary) || !domain.IsManualReview(m.Secondary)
}

// Apply runs the pattern against text. It returns false when the expression
// does not match or when no field survives cleanup.
func (p Pattern) Apply(text string, h *Heuristics) (Match, bool) {
	if p.Expr == nil {
		return Match{}, false
	}
	sub := p.Expr.FindStringSubmatch(text)
	if sub == nil {
		return Match{}, false
	}

	primary := group(sub, p.PrimaryGroup)
	secondary := group(sub, p.SecondaryGroup)

	if p.Rule == SwapOnRoleKeyword && h.hasRoleKeyword(primary) && !h.hasRoleKeyword(secondary) {
		primary, secondary = secondary, primary
	}

	m := Match{
		Pattern:   p.Name,
		Primary:   Clean(primary, h),
		Secondary: Clean(secondary, h),
	}
	return m, m.Partial()
}

func group(sub []string, idx int) string {
	if idx <= 0 || idx >= len(sub) {
		return ""
	}
	return strings.TrimSpace(sub[idx])
}

// firstMatch walks patterns in order and returns the first complete match.
// When none is complete, the first partial match is returned instead.
func firstMatch(patterns []Pattern, text string, h *Heuristics) (Match, bool) {
	var (
		partial Match
		found   bool
	)
	for _, p := range patterns {
		m, ok := p.Apply(text, h)
		if !ok {
			continue
		}
		if m.Complete() {
			return m, true
		}
		if !found {
			partial, found = m, true
		}
	}
	return partial, found
}
