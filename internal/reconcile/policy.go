// Package reconcile decides whether a candidate creates a new tracked entity
// or updates an existing one, and applies the status-hierarchy merge rule.
package reconcile

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"MailTracker/internal/domain"
	"MailTracker/internal/index"
	"MailTracker/internal/tracker"
)

// maxNoteLength bounds the failure detail stored on error rows.
const maxNoteLength = 500

// Action is the outcome of reconciling one candidate.
type Action int

const (
	Create Action = iota + 1
	Update
)

func (a Action) String() string {
	switch a {
	case Create:
		return "create"
	case Update:
		return "update"
	default:
		return "unknown"
	}
}

// Decision carries the row to write. For updates Target points at the
// matched entity inside the index and Entity holds its new values.
type Decision struct {
	Action               Action
	Entity               domain.Entity
	Target               *domain.Entity
	RequiresManualReview bool
}

// Policy reconciles candidates for one tracker profile.
type Policy struct {
	profile *tracker.Profile
}

// NewPolicy binds the status vocabulary of profile.
func NewPolicy(profile *tracker.Profile) *Policy {
	return &Policy{profile: profile}
}

// Reconcile decides CREATE or UPDATE for c without mutating ix.
func (p *Policy) Reconcile(c domain.Candidate, ix *index.Index) Decision {
	if c.Failed {
		return Decision{Action: Create, Entity: p.errorRow(c), RequiresManualReview: true}
	}
	if c.NeedsReview() {
		return Decision{Action: Create, Entity: p.reviewRow(c), RequiresManualReview: true}
	}

	existing := ix.Match(c.Primary, c.Secondary)
	if existing == nil {
		return Decision{Action: Create, Entity: p.newRow(c)}
	}
	return Decision{Action: Update, Entity: p.Merge(*existing, c), Target: existing}
}

// Apply commits d to the in-memory state and returns the live entity. New
// entities with resolved keys are registered as pending in ix.
func (p *Policy) Apply(d Decision, ix *index.Index) *domain.Entity {
	if d.Action == Update && d.Target != nil {
		*d.Target = d.Entity
		return d.Target
	}

	e := d.Entity
	e.Location = domain.PendingLocation
	if !d.RequiresManualReview {
		ix.InsertPending(&e)
	}
	return &e
}

// Merge applies the status hierarchy: a new status wins when its rank is not
// lower than the current one or when it is an override status. The peak only
// ever moves up. Provenance follows the most recent message, so an older
// candidate never moves LastUpdate backwards.
func (p *Policy) Merge(existing domain.Entity, c domain.Candidate) domain.Entity {
	next := existing
	if !c.Timestamp.Before(existing.LastUpdate) {
		next.LastUpdate = c.Timestamp
		next.Subject = c.Subject
		next.Permalink = c.Permalink
		next.MessageID = c.MessageID
		next.ThreadID = c.ThreadID
	}

	if c.Status != "" {
		curRank := p.profile.Rank(existing.Status)
		newRank := p.profile.Rank(c.Status)
		if newRank >= curRank || p.profile.IsOverride(c.Status) {
			next.Status = c.Status
		}
	}

	if next.PeakStatus == "" || p.profile.Rank(next.Status) > p.profile.Rank(next.PeakStatus) {
		next.PeakStatus = next.Status
	}
	return next
}

func (p *Policy) newRow(c domain.Candidate) domain.Entity {
	status := c.Status
	if status == "" {
		status = p.profile.DefaultStatus
	}
	e := provenance(c)
	e.Primary = strings.TrimSpace(c.Primary)
	e.Secondary = strings.TrimSpace(c.Secondary)
	e.Status = status
	e.PeakStatus = status
	return e
}

func (p *Policy) reviewRow(c domain.Candidate) domain.Entity {
	e := provenance(c)
	e.Primary = keyOrSentinel(c.Primary)
	e.Secondary = keyOrSentinel(c.Secondary)
	e.Status = domain.ManualReview
	e.PeakStatus = domain.ManualReview

	var unresolved []string
	if domain.IsManualReview(c.Primary) {
		unresolved = append(unresolved, p.profile.PrimaryField)
	}
	if domain.IsManualReview(c.Secondary) {
		unresolved = append(unresolved, p.profile.SecondaryField)
	}
	note := "Unresolved " + strings.Join(unresolved, ", ")
	if c.Status != "" {
		note += "; detected status " + c.Status
	}
	e.Notes = boundNote(note)
	return e
}

func (p *Policy) errorRow(c domain.Candidate) domain.Entity {
	e := provenance(c)
	e.Primary = domain.ManualReview
	e.Secondary = domain.ManualReview
	e.Status = domain.ManualReview
	e.PeakStatus = domain.ManualReview
	e.Notes = boundNote(fmt.Sprintf("Extraction failed: %s", c.Err))
	return e
}

// ErrorRow builds the visible error row for a message that failed outside
// extraction, for example when a write threw.
func ErrorRow(msg domain.Message, err error) domain.Entity {
	return domain.Entity{
		Primary:    domain.ManualReview,
		Secondary:  domain.ManualReview,
		Status:     domain.ManualReview,
		PeakStatus: domain.ManualReview,
		LastUpdate: msg.Timestamp,
		Subject:    msg.Subject,
		Permalink:  msg.Permalink,
		MessageID:  msg.ID,
		ThreadID:   msg.ThreadID,
		Notes:      boundNote(fmt.Sprintf("Processing failed: %v", err)),
		Location:   domain.PendingLocation,
	}
}

func provenance(c domain.Candidate) domain.Entity {
	return domain.Entity{
		LastUpdate: c.Timestamp,
		Subject:    c.Subject,
		Permalink:  c.Permalink,
		MessageID:  c.MessageID,
		ThreadID:   c.ThreadID,
		Location:   domain.PendingLocation,
	}
}

func keyOrSentinel(v string) string {
	if domain.IsManualReview(v) {
		return domain.ManualReview
	}
	return strings.TrimSpace(v)
}

func boundNote(note string) string {
	if utf8.RuneCountInString(note) <= maxNoteLength {
		return note
	}
	return string([]rune(note)[:maxNoteLength])
}
