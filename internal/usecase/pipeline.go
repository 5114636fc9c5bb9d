package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"MailTracker/internal/domain"
	"MailTracker/internal/index"
	"MailTracker/internal/ports"
	"MailTracker/internal/reconcile"
)

// SettingLastRun records when the last batch finished.
const SettingLastRun = "run.last_completed_at"

// MessageExtractor turns one message into a candidate and never fails.
type MessageExtractor interface {
	Extract(ctx context.Context, msg domain.Message) domain.Candidate
}

// PipelineDeps wires all driven adapters into the batch orchestrator.
type PipelineDeps struct {
	Mailbox   ports.Mailbox
	Table     ports.TrackerTable
	Settings  ports.Settings
	Extractor MessageExtractor
	Policy    *reconcile.Policy
	Notifier  ports.Notifier
	Tracker   string
	Labels    Labels
	BatchSize int
	Deadline  time.Duration
	Pause     time.Duration
	Now       func() time.Time
	Logger    *slog.Logger
}

// Pipeline runs one bounded batch: fetch, extract, reconcile, write, label.
type Pipeline struct {
	mailbox   ports.Mailbox
	table     ports.TrackerTable
	settings  ports.Settings
	extractor MessageExtractor
	policy    *reconcile.Policy
	notifier  ports.Notifier
	tracker   string
	labels    Labels
	batchSize int
	deadline  time.Duration
	pause     time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// RunReport summarises a batch.
type RunReport struct {
	RunID       string
	Threads     int
	Messages    int
	Processed   int
	Skipped     int
	Created     int
	Updated     int
	Failed      int
	DeadlineHit bool
	Labels      LabelReport
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		mailbox:   deps.Mailbox,
		table:     deps.Table,
		settings:  deps.Settings,
		extractor: deps.Extractor,
		policy:    deps.Policy,
		notifier:  deps.Notifier,
		tracker:   deps.Tracker,
		labels:    deps.Labels,
		batchSize: deps.BatchSize,
		deadline:  deps.Deadline,
		pause:     deps.Pause,
		now:       deps.Now,
		logger:    deps.Logger,
	}
}

// pendingWrite is a row waiting for the batch append, with the threads
// whose messages shaped it.
type pendingWrite struct {
	entity  *domain.Entity
	threads []string
}

// Run processes one batch. Only fetch and load failures abort the run;
// everything below the message level degrades to manual review.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{RunID: uuid.NewString()}
	if p.mailbox == nil || p.table == nil || p.extractor == nil || p.policy == nil {
		return report, fmt.Errorf("pipeline misconfigured")
	}
	logger := p.logger.With("run_id", report.RunID)
	start := p.now()

	threads, err := p.mailbox.FetchThreads(ctx, p.labels.ToProcess, p.batchSize)
	if err != nil {
		return report, fmt.Errorf("fetch threads: %w", err)
	}
	report.Threads = len(threads)
	if len(threads) == 0 {
		logger.Debug("no threads to process", "label", p.labels.ToProcess)
		return report, nil
	}

	rows, err := p.table.LoadAll(ctx)
	if err != nil {
		return report, fmt.Errorf("load tracker rows: %w", err)
	}
	ix := index.Build(rows)
	reviewed := reviewedMessages(rows)

	messages := flatten(threads)
	report.Messages = len(messages)
	logger.Info("batch started", "threads", len(threads), "messages", len(messages), "indexed", ix.Len())

	outcomes := NewOutcomes(threads)

	var limiter *rate.Limiter
	if p.pause > 0 {
		limiter = rate.NewLimiter(rate.Every(p.pause), 1)
	}

	var (
		writes  []*pendingWrite
		byEntry = map[*domain.Entity]*pendingWrite{}
	)
	queue := func(e *domain.Entity, threadID string) {
		w := &pendingWrite{entity: e, threads: []string{threadID}}
		writes = append(writes, w)
		byEntry[e] = w
	}

	for _, msg := range messages {
		if ctx.Err() != nil {
			logger.Warn("batch cancelled", "error", ctx.Err())
			break
		}
		if p.deadline > 0 && !p.now().Before(start.Add(p.deadline)) {
			report.DeadlineHit = true
			logger.Warn("batch deadline reached", "processed", report.Processed, "remaining", len(messages)-report.Processed-report.Failed-report.Skipped)
			break
		}
		if reviewed[msg.ID] {
			report.Skipped++
			logger.Debug("message already awaiting review", "thread_id", msg.ThreadID, "message_id", msg.ID)
			outcomes.Record(msg.ThreadID, true)
			continue
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}

		res, err := p.processMessage(ctx, msg, ix)
		if err != nil {
			report.Failed++
			logger.Error("message failed", "thread_id", msg.ThreadID, "message_id", msg.ID, "error", err)
			row := reconcile.ErrorRow(msg, err)
			queue(&row, msg.ThreadID)
			outcomes.Record(msg.ThreadID, true)
			continue
		}

		report.Processed++
		switch {
		case res.created != nil:
			report.Created++
			queue(res.created, msg.ThreadID)
		case res.updated != nil:
			report.Updated++
			if w, ok := byEntry[res.updated]; ok {
				w.threads = append(w.threads, msg.ThreadID)
			}
		}
		outcomes.Record(msg.ThreadID, res.manual)
	}

	p.flush(ctx, writes, ix, outcomes, logger)

	report.Labels = outcomes.Finalize(ctx, p.mailbox, p.labels, logger)
	logger.Info("batch finished",
		"processed", report.Processed,
		"skipped", report.Skipped,
		"created", report.Created,
		"updated", report.Updated,
		"failed", report.Failed,
		"done_threads", report.Labels.Done,
		"manual_threads", report.Labels.Manual,
		"deferred_threads", report.Labels.Deferred,
	)

	if p.settings != nil {
		if err := p.settings.Set(ctx, SettingLastRun, p.now().UTC().Format(time.RFC3339)); err != nil {
			logger.Warn("record last run", "error", err)
		}
	}
	p.notify(ctx, report, logger)
	return report, nil
}

type messageResult struct {
	created *domain.Entity
	updated *domain.Entity
	manual  bool
}

// processMessage is the per-message failure boundary: errors and panics
// are returned to the caller instead of aborting the batch.
func (p *Pipeline) processMessage(ctx context.Context, msg domain.Message, ix *index.Index) (res messageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	cand := p.extractor.Extract(ctx, msg)
	decision := p.policy.Reconcile(cand, ix)
	res.manual = decision.RequiresManualReview

	switch decision.Action {
	case reconcile.Update:
		if !decision.Target.Pending() {
			if err := p.table.UpdateRow(ctx, decision.Entity); err != nil {
				return res, fmt.Errorf("update row %d: %w", decision.Target.Location, err)
			}
		}
		res.updated = p.policy.Apply(decision, ix)
	case reconcile.Create:
		res.created = p.policy.Apply(decision, ix)
	default:
		return res, fmt.Errorf("unknown reconcile action %v", decision.Action)
	}

	p.logger.Debug("message reconciled",
		"thread_id", msg.ThreadID,
		"message_id", msg.ID,
		"action", decision.Action.String(),
		"method", string(cand.Method),
		"manual", res.manual,
	)
	return res, nil
}

// flush appends all new rows in one write and back-patches their locations.
// On failure every contributing thread is flagged for manual review.
func (p *Pipeline) flush(ctx context.Context, writes []*pendingWrite, ix *index.Index, outcomes *Outcomes, logger *slog.Logger) {
	if len(writes) == 0 {
		return
	}

	rows := make([]domain.Entity, len(writes))
	for i, w := range writes {
		rows[i] = *w.entity
	}

	locations, err := p.table.AppendRows(ctx, rows)
	if err == nil && len(locations) != len(rows) {
		err = fmt.Errorf("append returned %d locations for %d rows", len(locations), len(rows))
	}
	if err != nil {
		logger.Error("append new rows", "rows", len(rows), "error", err)
		for _, w := range writes {
			for _, id := range w.threads {
				outcomes.Flag(id)
			}
		}
		return
	}

	for i, w := range writes {
		if err := ix.PatchLocation(w.entity, locations[i]); err != nil {
			logger.Warn("patch index location", "error", err)
		}
	}
}

// flatten merges all thread messages into one sequence ordered by
// timestamp; ties keep fetch order.
func flatten(threads []domain.Thread) []domain.Message {
	var messages []domain.Message
	for _, t := range threads {
		for _, m := range t.Messages {
			m.ThreadID = t.ID
			messages = append(messages, m)
		}
	}
	slices.SortStableFunc(messages, func(a, b domain.Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return messages
}

// reviewedMessages collects the message ids behind existing review and error
// rows. Those rows never enter the index, so a thread replayed after a
// deadline would otherwise append them again.
func reviewedMessages(rows []domain.Entity) map[string]bool {
	seen := map[string]bool{}
	for _, r := range rows {
		if r.MessageID != "" && domain.IsManualReview(r.Status) {
			seen[r.MessageID] = true
		}
	}
	return seen
}
