// Package tracker describes one instantiation of the reconciliation engine:
// which fields form the natural key, the status vocabulary with its ranks,
// and the heuristics used by the fallback extractor.
package tracker

import (
	"fmt"
	"strings"

	"MailTracker/internal/domain"
	"MailTracker/internal/extraction"
)

// Status is one vocabulary entry with its forward-progress rank.
type Status struct {
	Name string
	Rank int
}

// Profile parameterises the generic engine.
type Profile struct {
	Name           string
	PrimaryField   string
	SecondaryField string

	Statuses         []Status
	DefaultStatus    string
	StaleStatus      string
	OverrideStatuses []string
	TerminalStatuses []string

	Heuristics extraction.Heuristics
}

// Rank returns the rank of status. Unknown statuses rank 0.
func (p *Profile) Rank(status string) int {
	if s, ok := p.lookup(status); ok {
		return s.Rank
	}
	return 0
}

// Canonical maps status onto the vocabulary spelling, ignoring case.
func (p *Profile) Canonical(status string) (string, bool) {
	s, ok := p.lookup(status)
	return s.Name, ok
}

// Names lists the substantive statuses, without the manual-review sentinel.
func (p *Profile) Names() []string {
	names := make([]string, 0, len(p.Statuses))
	for _, s := range p.Statuses {
		if s.Name == domain.ManualReview {
			continue
		}
		names = append(names, s.Name)
	}
	return names
}

// IsOverride reports whether status may replace a higher-ranked one.
func (p *Profile) IsOverride(status string) bool {
	return containsFold(p.OverrideStatuses, status)
}

// IsTerminal reports whether status is exempt from the stale sweep.
func (p *Profile) IsTerminal(status string) bool {
	return containsFold(p.TerminalStatuses, status)
}

// StatusForRank maps a rank back to its status name.
func (p *Profile) StatusForRank(rank int) (string, bool) {
	for _, s := range p.Statuses {
		if s.Rank == rank {
			return s.Name, true
		}
	}
	return "", false
}

// Validate checks the vocabulary invariants.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("tracker profile has no name")
	}
	if p.PrimaryField == "" || p.SecondaryField == "" {
		return fmt.Errorf("tracker %s: key fields are required", p.Name)
	}
	if len(p.Statuses) == 0 {
		return fmt.Errorf("tracker %s: empty status vocabulary", p.Name)
	}

	seenNames := map[string]bool{}
	seenRanks := map[int]string{}
	review, hasReview := Status{}, false
	for _, s := range p.Statuses {
		key := strings.ToLower(s.Name)
		if s.Name == "" || seenNames[key] {
			return fmt.Errorf("tracker %s: duplicate or empty status %q", p.Name, s.Name)
		}
		if other, ok := seenRanks[s.Rank]; ok {
			return fmt.Errorf("tracker %s: statuses %q and %q share rank %d", p.Name, other, s.Name, s.Rank)
		}
		seenNames[key] = true
		seenRanks[s.Rank] = s.Name
		if s.Name == domain.ManualReview {
			review, hasReview = s, true
		}
	}
	if !hasReview {
		return fmt.Errorf("tracker %s: vocabulary must contain %q", p.Name, domain.ManualReview)
	}
	for _, s := range p.Statuses {
		if s.Name != domain.ManualReview && s.Rank <= review.Rank {
			return fmt.Errorf("tracker %s: %q must rank above %q", p.Name, s.Name, domain.ManualReview)
		}
	}

	for label, status := range map[string]string{"default": p.DefaultStatus, "stale": p.StaleStatus} {
		if _, ok := p.lookup(status); !ok {
			return fmt.Errorf("tracker %s: %s status %q is not in the vocabulary", p.Name, label, status)
		}
	}
	for _, status := range append(append([]string{}, p.OverrideStatuses...), p.TerminalStatuses...) {
		if _, ok := p.lookup(status); !ok {
			return fmt.Errorf("tracker %s: status %q is not in the vocabulary", p.Name, status)
		}
	}
	return nil
}

func (p *Profile) lookup(status string) (Status, bool) {
	status = strings.TrimSpace(status)
	for _, s := range p.Statuses {
		if strings.EqualFold(s.Name, status) {
			return s, true
		}
	}
	return Status{}, false
}

func (p Profile) clone() Profile {
	c := p
	c.Statuses = append([]Status(nil), p.Statuses...)
	c.OverrideStatuses = append([]string(nil), p.OverrideStatuses...)
	c.TerminalStatuses = append([]string(nil), p.TerminalStatuses...)
	return c
}

func containsFold(list []string, value string) bool {
	value = strings.TrimSpace(value)
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
