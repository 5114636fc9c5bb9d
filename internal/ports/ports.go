package ports

import (
	"context"
	"time"

	"MailTracker/internal/domain"
)

// Mailbox pulls labelled threads and moves them between labels.
type Mailbox interface {
	FetchThreads(ctx context.Context, label string, limit int) ([]domain.Thread, error)
	// ModifyLabels must be idempotent and return domain.ErrThreadNotFound
	// when the thread no longer exists.
	ModifyLabels(ctx context.Context, threadID string, remove, add []string) error
}

// TrackerTable persists tracked entities as rows addressed by location.
type TrackerTable interface {
	LoadAll(ctx context.Context) ([]domain.Entity, error)
	UpdateRow(ctx context.Context, entity domain.Entity) error
	// AppendRows writes all entities in one batch and returns their
	// locations in input order.
	AppendRows(ctx context.Context, entities []domain.Entity) ([]int64, error)
}

// Extractor is the primary (AI) classifier behind the extraction pipeline.
type Extractor interface {
	Extract(ctx context.Context, req domain.ExtractionRequest) (domain.ExtractionResult, error)
}

// Settings is the narrow key/value store for credentials, feature flags and
// run bookkeeping.
type Settings interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Notifier publishes a short human-readable digest of a run.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
