package reconcile

import (
	"errors"
	"strings"
	"testing"
	"time"

	"MailTracker/internal/domain"
	"MailTracker/internal/index"
	"MailTracker/internal/tracker"
)

var day = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newPolicy() *Policy {
	p := tracker.Application()
	return NewPolicy(&p)
}

func candidate(primary, secondary, status string, at time.Time) domain.Candidate {
	return domain.Candidate{
		Primary:   primary,
		Secondary: secondary,
		Status:    status,
		Method:    domain.MethodAI,
		Subject:   "subject " + status,
		MessageID: "m-" + status,
		ThreadID:  "t1",
		Permalink: "https://mail.example/" + status,
		Timestamp: at,
	}
}

func TestReconcileStatusHistory(t *testing.T) {
	t.Parallel()

	policy := newPolicy()
	ix := index.Build([]domain.Entity{{
		Primary: "Acme", Secondary: "Data Analyst",
		Status: tracker.StatusApplied, PeakStatus: tracker.StatusApplied,
		LastUpdate: day, Location: 4,
	}})

	steps := []struct {
		status     string
		wantStatus string
		wantPeak   string
	}{
		{tracker.StatusInterviewing, tracker.StatusInterviewing, tracker.StatusInterviewing},
		{tracker.StatusViewed, tracker.StatusInterviewing, tracker.StatusInterviewing},
		{tracker.StatusRejected, tracker.StatusRejected, tracker.StatusInterviewing},
	}
	for i, step := range steps {
		at := day.Add(time.Duration(i+1) * 24 * time.Hour)
		d := policy.Reconcile(candidate("acme", "data analyst", step.status, at), ix)
		if d.Action != Update || d.Target == nil || d.Target.Location != 4 {
			t.Fatalf("step %d: expected update of row 4, got %+v", i, d)
		}
		if d.RequiresManualReview {
			t.Fatalf("step %d: unexpected manual review", i)
		}
		e := policy.Apply(d, ix)
		if e.Status != step.wantStatus || e.PeakStatus != step.wantPeak {
			t.Fatalf("step %d: got %s/%s want %s/%s", i, e.Status, e.PeakStatus, step.wantStatus, step.wantPeak)
		}
		if !e.LastUpdate.Equal(at) || e.MessageID != "m-"+step.status {
			t.Fatalf("step %d: provenance not refreshed: %+v", i, e)
		}
		if e.Primary != "Acme" {
			t.Fatalf("step %d: key must keep stored spelling, got %q", i, e.Primary)
		}
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	t.Parallel()

	policy := newPolicy()
	existing := domain.Entity{Primary: "Acme", Secondary: "Analyst", Status: tracker.StatusViewed, PeakStatus: tracker.StatusViewed, Location: 1}
	c := candidate("Acme", "Analyst", tracker.StatusAssessment, day)

	once := policy.Merge(existing, c)
	twice := policy.Merge(once, c)
	if once != twice {
		t.Fatalf("merge not idempotent:\n%+v\n%+v", once, twice)
	}
}

func TestMergeOfferOverridesAndPeakNeverDrops(t *testing.T) {
	t.Parallel()

	policy := newPolicy()
	e := domain.Entity{Primary: "Acme", Secondary: "Analyst", Status: tracker.StatusRejected, PeakStatus: tracker.StatusInterviewing}

	e = policy.Merge(e, candidate("Acme", "Analyst", "", day))
	if e.Status != tracker.StatusRejected {
		t.Fatalf("empty status must not change the row, got %s", e.Status)
	}

	e = policy.Merge(e, candidate("Acme", "Analyst", tracker.StatusOffer, day))
	if e.Status != tracker.StatusOffer || e.PeakStatus != tracker.StatusOffer {
		t.Fatalf("offer should win and raise peak, got %s/%s", e.Status, e.PeakStatus)
	}

	e = policy.Merge(e, candidate("Acme", "Analyst", tracker.StatusRejected, day))
	if e.Status != tracker.StatusRejected || e.PeakStatus != tracker.StatusOffer {
		t.Fatalf("rejection overrides status but not peak, got %s/%s", e.Status, e.PeakStatus)
	}
}

func TestReconcileCreatesAndIndexesNewEntities(t *testing.T) {
	t.Parallel()

	policy := newPolicy()
	ix := index.Build(nil)

	d := policy.Reconcile(candidate("Globex", "Engineer", "", day), ix)
	if d.Action != Create || d.RequiresManualReview {
		t.Fatalf("expected plain create, got %+v", d)
	}
	if d.Entity.Status != tracker.StatusApplied || d.Entity.PeakStatus != tracker.StatusApplied {
		t.Fatalf("default status not applied: %+v", d.Entity)
	}

	created := policy.Apply(d, ix)
	if !created.Pending() {
		t.Fatalf("new entity must be pending")
	}

	next := policy.Reconcile(candidate("GLOBEX", "engineer", tracker.StatusViewed, day.Add(time.Hour)), ix)
	if next.Action != Update || next.Target != created {
		t.Fatalf("same-run message should update the pending entity, got %+v", next)
	}
	policy.Apply(next, ix)
	if created.Status != tracker.StatusViewed || !created.Pending() {
		t.Fatalf("pending entity not updated in place: %+v", created)
	}
}

func TestReconcileQuarantinesUnresolvedKeys(t *testing.T) {
	t.Parallel()

	policy := newPolicy()
	ix := index.Build([]domain.Entity{{Primary: "Acme", Secondary: domain.ManualReview, Location: 1}})

	c := candidate("Acme", domain.ManualReview, tracker.StatusApplied, day)
	d := policy.Reconcile(c, ix)
	if d.Action != Create || !d.RequiresManualReview {
		t.Fatalf("sentinel keys must never match, got %+v", d)
	}
	if d.Entity.Status != domain.ManualReview {
		t.Fatalf("quarantined row status %q", d.Entity.Status)
	}
	if d.Entity.Primary != "Acme" || d.Entity.Secondary != domain.ManualReview {
		t.Fatalf("quarantined keys %q/%q", d.Entity.Primary, d.Entity.Secondary)
	}
	if d.Entity.Notes != "Unresolved title; detected status Applied" {
		t.Fatalf("unexpected notes %q", d.Entity.Notes)
	}

	before := ix.Len()
	policy.Apply(d, ix)
	if ix.Len() != before {
		t.Fatalf("quarantined rows must not enter the index")
	}
}

func TestReconcileFailedCandidate(t *testing.T) {
	t.Parallel()

	policy := newPolicy()
	c := domain.Candidate{Failed: true, Err: "primary extractor: timeout", MessageID: "m9", Timestamp: day}
	d := policy.Reconcile(c, index.Build(nil))
	if d.Action != Create || !d.RequiresManualReview {
		t.Fatalf("expected error row, got %+v", d)
	}
	if !strings.Contains(d.Entity.Notes, "timeout") || d.Entity.MessageID != "m9" {
		t.Fatalf("error row lacks detail: %+v", d.Entity)
	}
}

func TestErrorRowIsBounded(t *testing.T) {
	t.Parallel()

	msg := domain.Message{ID: "m1", ThreadID: "t1", Subject: "s", Timestamp: day}
	row := ErrorRow(msg, errors.New(strings.Repeat("é", 2000)))
	if n := len([]rune(row.Notes)); n != maxNoteLength {
		t.Fatalf("notes length %d", n)
	}
	if !row.Pending() || row.Status != domain.ManualReview || row.ThreadID != "t1" {
		t.Fatalf("unexpected error row %+v", row)
	}
}

func TestMergeKeepsNewerProvenance(t *testing.T) {
	t.Parallel()

	policy := newPolicy()
	latest := day.Add(30 * 24 * time.Hour)
	existing := domain.Entity{
		Primary: "Acme", Secondary: "Analyst",
		Status: tracker.StatusViewed, PeakStatus: tracker.StatusViewed,
		LastUpdate: latest, MessageID: "m-new", Subject: "newer", Location: 3,
	}

	e := policy.Merge(existing, candidate("Acme", "Analyst", tracker.StatusApplied, day))
	if !e.LastUpdate.Equal(latest) || e.MessageID != "m-new" || e.Subject != "newer" {
		t.Fatalf("older message moved provenance back: %+v", e)
	}
	if e.Status != tracker.StatusViewed {
		t.Fatalf("lower rank must not apply, got %s", e.Status)
	}

	e = policy.Merge(existing, candidate("Acme", "Analyst", tracker.StatusInterviewing, day))
	if e.Status != tracker.StatusInterviewing || !e.LastUpdate.Equal(latest) {
		t.Fatalf("late higher status should apply without rewinding time: %+v", e)
	}

	e = policy.Merge(existing, candidate("Acme", "Analyst", "", latest))
	if e.MessageID != "m-" {
		t.Fatalf("same-instant message should refresh provenance, got %q", e.MessageID)
	}
}
