package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Digest renders a run report as a short chat message.
func Digest(tracker string, report RunReport) string {
	var b strings.Builder
	if tracker == "" {
		tracker = "tracker"
	}
	fmt.Fprintf(&b, "%s run %s\n", tracker, shortID(report.RunID))
	fmt.Fprintf(&b, "messages: %d processed, %d failed\n", report.Processed, report.Failed)
	fmt.Fprintf(&b, "rows: %d created, %d updated\n", report.Created, report.Updated)
	fmt.Fprintf(&b, "threads: %d done, %d manual review, %d deferred", report.Labels.Done, report.Labels.Manual, report.Labels.Deferred)
	if report.DeadlineHit {
		b.WriteString("\ndeadline reached, remaining messages left for the next run")
	}
	return b.String()
}

// notify publishes the digest when the run changed something or needs a
// human. Delivery failures never fail the run.
func (p *Pipeline) notify(ctx context.Context, report RunReport, logger *slog.Logger) {
	if p.notifier == nil {
		return
	}
	if report.Created == 0 && report.Updated == 0 && report.Failed == 0 && report.Labels.Manual == 0 {
		return
	}
	if err := p.notifier.PublishDigest(ctx, Digest(p.tracker, report)); err != nil {
		logger.Warn("publish digest", "error", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
