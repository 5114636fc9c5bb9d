package extraction

import "strings"

// KeywordSet maps a list of phrases to the status they indicate.
type KeywordSet struct {
	Status   string
	Keywords []string
}

// Heuristics is the per-tracker data driving the deterministic fallback.
type Heuristics struct {
	// IgnoredDomains never name the organisation (webmail, ATS, job boards).
	IgnoredDomains []string
	// DomainPrefixes are leading subdomain labels such as "careers" or "mail".
	DomainPrefixes []string
	// GenericTLDs are trailing labels stripped before guessing a name.
	GenericTLDs []string
	// SenderNoise are phrases removed from display names ("via Greenhouse").
	SenderNoise []string
	// DepartmentWords are whole words removed from display names.
	DepartmentWords []string
	// LegalSuffixes are trailing entity suffixes ("Inc", "LLC").
	LegalSuffixes []string
	// RoleKeywords identify a secondary (title) value inside a capture.
	RoleKeywords []string

	SubjectPatterns []Pattern
	BodyPatterns    []Pattern

	// StatusKeywords are checked in order; the first set with a hit wins.
	StatusKeywords []KeywordSet
}

func (h *Heuristics) hasRoleKeyword(value string) bool {
	if h == nil || value == "" {
		return false
	}
	norm := normalizeForKeywords(value)
	for _, kw := range h.RoleKeywords {
		if strings.Contains(norm, normalizeForKeywords(kw)) {
			return true
		}
	}
	return false
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
