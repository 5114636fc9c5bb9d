package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"MailTracker/internal/domain"
	"MailTracker/internal/reconcile"
	"MailTracker/internal/tracker"
)

var day = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

var testLabels = Labels{
	ToProcess:    "Tracker/To Process",
	Processed:    "Tracker/Processed",
	ManualReview: "Tracker/Manual Review",
}

type memMailbox struct {
	mu       sync.Mutex
	threads  []domain.Thread
	fetchErr error
	missing  map[string]bool
	applied  map[string]string
	removed  map[string][]string
}

func newMailbox(threads ...domain.Thread) *memMailbox {
	return &memMailbox{
		threads: threads,
		missing: map[string]bool{},
		applied: map[string]string{},
		removed: map[string][]string{},
	}
}

func (m *memMailbox) FetchThreads(_ context.Context, label string, limit int) ([]domain.Thread, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if label != testLabels.ToProcess {
		return nil, fmt.Errorf("unexpected label %q", label)
	}
	threads := m.threads
	if limit > 0 && len(threads) > limit {
		threads = threads[:limit]
	}
	return threads, nil
}

func (m *memMailbox) ModifyLabels(_ context.Context, threadID string, remove, add []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.missing[threadID] {
		return fmt.Errorf("modify: %w", domain.ErrThreadNotFound)
	}
	if len(add) != 1 {
		return fmt.Errorf("expected exactly one outcome label, got %v", add)
	}
	m.applied[threadID] = add[0]
	m.removed[threadID] = remove
	return nil
}

type memTable struct {
	rows        []domain.Entity
	nextID      int64
	loads       int
	appendCalls int
	appended    []domain.Entity
	updates     []domain.Entity
	appendErr   error
	updateErr   error
	failRows    map[int64]error
}

func newTable(rows ...domain.Entity) *memTable {
	t := &memTable{nextID: 100}
	t.rows = append(t.rows, rows...)
	return t
}

func (t *memTable) LoadAll(context.Context) ([]domain.Entity, error) {
	t.loads++
	return append([]domain.Entity(nil), t.rows...), nil
}

func (t *memTable) UpdateRow(_ context.Context, e domain.Entity) error {
	if t.updateErr != nil {
		return t.updateErr
	}
	if err := t.failRows[e.Location]; err != nil {
		return err
	}
	for i := range t.rows {
		if t.rows[i].Location == e.Location {
			t.rows[i] = e
			t.updates = append(t.updates, e)
			return nil
		}
	}
	return domain.ErrRowNotFound
}

func (t *memTable) AppendRows(_ context.Context, rows []domain.Entity) ([]int64, error) {
	t.appendCalls++
	if t.appendErr != nil {
		return nil, t.appendErr
	}
	ids := make([]int64, len(rows))
	for i, e := range rows {
		t.nextID++
		e.Location = t.nextID
		ids[i] = e.Location
		t.rows = append(t.rows, e)
		t.appended = append(t.appended, e)
	}
	return ids, nil
}

func (t *memTable) row(location int64) (domain.Entity, bool) {
	for _, r := range t.rows {
		if r.Location == location {
			return r, true
		}
	}
	return domain.Entity{}, false
}

type memSettings map[string]string

func (s memSettings) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s[key]
	return v, ok, nil
}

func (s memSettings) Set(_ context.Context, key, value string) error {
	s[key] = value
	return nil
}

// scriptedExtractor returns a fixed candidate per message id and panics for
// ids mapped to a candidate with Err "panic".
type scriptedExtractor map[string]domain.Candidate

func (s scriptedExtractor) Extract(_ context.Context, msg domain.Message) domain.Candidate {
	c, ok := s[msg.ID]
	if !ok {
		c = domain.Candidate{Primary: domain.ManualReview, Secondary: domain.ManualReview}
	}
	if c.Err == "panic" {
		panic("extractor exploded")
	}
	c.MessageID = msg.ID
	c.ThreadID = msg.ThreadID
	c.Subject = msg.Subject
	c.Timestamp = msg.Timestamp
	return c
}

func found(primary, secondary, status string) domain.Candidate {
	return domain.Candidate{Primary: primary, Secondary: secondary, Status: status, Method: domain.MethodAI}
}

func msg(id string, at time.Time) domain.Message {
	return domain.Message{ID: id, Subject: "subject " + id, Timestamp: at}
}

func thread(id string, msgs ...domain.Message) domain.Thread {
	return domain.Thread{ID: id, Messages: msgs}
}

type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func newTestPipeline(mailbox *memMailbox, table *memTable, settings memSettings, extractor scriptedExtractor, now func() time.Time) *Pipeline {
	profile := tracker.Application()
	if now == nil {
		now = func() time.Time { return day }
	}
	deps := PipelineDeps{
		Mailbox:   mailbox,
		Table:     table,
		Extractor: extractor,
		Policy:    reconcile.NewPolicy(&profile),
		Labels:    testLabels,
		BatchSize: 10,
		Deadline:  time.Hour,
		Now:       now,
	}
	if settings != nil {
		deps.Settings = settings
	}
	return NewPipeline(deps)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
