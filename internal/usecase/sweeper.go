package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"MailTracker/internal/domain"
	"MailTracker/internal/ports"
	"MailTracker/internal/tracker"
)

// SettingLastSweep records when the last stale sweep finished.
const SettingLastSweep = "sweep.last_completed_at"

// Sweeper demotes entities stuck in a non-terminal status.
type Sweeper struct {
	table    ports.TrackerTable
	settings ports.Settings
	profile  *tracker.Profile
	now      func() time.Time
	logger   *slog.Logger
}

// NewSweeper wires the sweeper to the tracker table.
func NewSweeper(table ports.TrackerTable, settings ports.Settings, profile *tracker.Profile, now func() time.Time, logger *slog.Logger) *Sweeper {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{table: table, settings: settings, profile: profile, now: now, logger: logger}
}

// Sweep forces every non-terminal row last touched before now-threshold to
// the stale status and returns how many rows changed. Rows awaiting manual
// review and rows without a timestamp are left alone. A row that cannot be
// written is logged and skipped; the next sweep retries it.
func (s *Sweeper) Sweep(ctx context.Context, threshold time.Duration) (int, error) {
	if s.table == nil || s.profile == nil {
		return 0, fmt.Errorf("sweeper misconfigured")
	}
	if threshold <= 0 {
		return 0, fmt.Errorf("sweep threshold must be positive, got %s", threshold)
	}

	rows, err := s.table.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load tracker rows: %w", err)
	}

	now := s.now()
	cutoff := now.Add(-threshold)
	swept, failed := 0, 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return swept, fmt.Errorf("sweep interrupted: %w", err)
		}
		if s.profile.IsTerminal(row.Status) || domain.IsManualReview(row.Status) {
			continue
		}
		if row.LastUpdate.IsZero() || !row.LastUpdate.Before(cutoff) {
			continue
		}

		previous := row.Status
		row.Status = s.profile.StaleStatus
		row.LastUpdate = now
		if s.profile.Rank(row.Status) > s.profile.Rank(row.PeakStatus) {
			row.PeakStatus = row.Status
		}
		if err := s.table.UpdateRow(ctx, row); err != nil {
			failed++
			s.logger.Error("update stale row", "location", row.Location, "error", err)
			continue
		}
		swept++
		s.logger.Debug("row marked stale", "location", row.Location, "from", previous, "to", row.Status)
	}

	if s.settings != nil {
		if err := s.settings.Set(ctx, SettingLastSweep, now.UTC().Format(time.RFC3339)); err != nil {
			s.logger.Warn("record last sweep", "error", err)
		}
	}
	s.logger.Info("stale sweep finished", "scanned", len(rows), "swept", swept, "failed", failed, "threshold", threshold.String())
	return swept, nil
}
