package usecase

import (
	"context"
	"errors"
	"log/slog"

	"MailTracker/internal/domain"
	"MailTracker/internal/ports"
)

// ThreadState is the label lifecycle of one source thread.
type ThreadState int

const (
	StatePending ThreadState = iota
	StateDone
	StateManual
)

func (s ThreadState) String() string {
	switch s {
	case StateDone:
		return "done"
	case StateManual:
		return "manual"
	default:
		return "pending"
	}
}

// Labels names the markers used to move threads through the lifecycle.
type Labels struct {
	ToProcess    string
	Processed    string
	ManualReview string
}

// LabelReport counts what Finalize did.
type LabelReport struct {
	Done     int
	Manual   int
	Deferred int
	Missing  int
	Failed   int
}

// Outcomes tracks, per thread, how many messages are still unresolved and
// whether any resolved message needs manual review.
type Outcomes struct {
	order     []string
	remaining map[string]int
	manual    map[string]bool
}

// NewOutcomes starts every thread in the pending state.
func NewOutcomes(threads []domain.Thread) *Outcomes {
	o := &Outcomes{
		order:     make([]string, 0, len(threads)),
		remaining: make(map[string]int, len(threads)),
		manual:    make(map[string]bool, len(threads)),
	}
	for _, t := range threads {
		if _, dup := o.remaining[t.ID]; dup {
			o.remaining[t.ID] += len(t.Messages)
			continue
		}
		o.order = append(o.order, t.ID)
		o.remaining[t.ID] = len(t.Messages)
	}
	return o
}

// Record marks one message of threadID as resolved. Any manual result makes
// the whole thread manual.
func (o *Outcomes) Record(threadID string, manual bool) {
	if n, ok := o.remaining[threadID]; ok && n > 0 {
		o.remaining[threadID] = n - 1
	}
	if manual {
		o.manual[threadID] = true
	}
}

// Flag forces threadID to manual without resolving a message, e.g. after
// the batch append of its new rows failed.
func (o *Outcomes) Flag(threadID string) {
	o.manual[threadID] = true
}

// State reports the current state of threadID. Threads with unresolved
// messages stay pending.
func (o *Outcomes) State(threadID string) ThreadState {
	if o.remaining[threadID] > 0 {
		return StatePending
	}
	if o.manual[threadID] {
		return StateManual
	}
	return StateDone
}

// Finalize moves every resolved thread from the to-process label to exactly
// one outcome label. Pending threads keep their label for the next run.
// Vanished threads are skipped with a warning.
func (o *Outcomes) Finalize(ctx context.Context, mailbox ports.Mailbox, labels Labels, logger *slog.Logger) LabelReport {
	var report LabelReport
	for _, id := range o.order {
		state := o.State(id)

		var target string
		switch state {
		case StatePending:
			report.Deferred++
			logger.Debug("thread deferred to next run", "thread_id", id, "remaining", o.remaining[id])
			continue
		case StateManual:
			target = labels.ManualReview
		default:
			target = labels.Processed
		}

		err := mailbox.ModifyLabels(ctx, id, []string{labels.ToProcess}, []string{target})
		switch {
		case err == nil:
			if state == StateManual {
				report.Manual++
			} else {
				report.Done++
			}
		case errors.Is(err, domain.ErrThreadNotFound):
			report.Missing++
			logger.Warn("thread vanished before labelling", "thread_id", id)
		default:
			report.Failed++
			logger.Error("apply thread label", "thread_id", id, "label", target, "error", err)
		}
	}
	return report
}
