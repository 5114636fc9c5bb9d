package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"MailTracker/internal/domain"
	"MailTracker/internal/tracker"
)

type recordingNotifier struct {
	digests []string
	err     error
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.digests = append(n.digests, digest)
	return n.err
}

func TestRunPublishesDigest(t *testing.T) {
	t.Parallel()

	mailbox := newMailbox(thread("t1", msg("m1", day)), thread("t2", msg("m2", day)))
	extractor := scriptedExtractor{
		"m1": found("Acme", "Data Analyst", tracker.StatusApplied),
		"m2": found("Globex", domain.ManualReview, tracker.StatusApplied),
	}
	notifier := &recordingNotifier{}
	p := newTestPipeline(mailbox, newTable(), nil, extractor, nil)
	p.notifier = notifier
	p.tracker = "application"

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.digests) != 1 {
		t.Fatalf("expected one digest, got %d", len(notifier.digests))
	}
	digest := notifier.digests[0]
	for _, want := range []string{
		"application run " + report.RunID[:8],
		"rows: 2 created, 0 updated",
		"threads: 1 done, 1 manual review, 0 deferred",
	} {
		if !strings.Contains(digest, want) {
			t.Fatalf("digest %q missing %q", digest, want)
		}
	}
}

func TestRunSkipsDigestWhenNothingHappened(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	p := newTestPipeline(newMailbox(), newTable(), nil, scriptedExtractor{}, nil)
	p.notifier = notifier
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.digests) != 0 {
		t.Fatalf("empty batch must not notify")
	}
}

func TestDigestFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{err: errors.New("chat unreachable")}
	mailbox := newMailbox(thread("t1", msg("m1", day)))
	p := newTestPipeline(mailbox, newTable(), nil, scriptedExtractor{"m1": found("Acme", "Analyst", "")}, nil)
	p.notifier = notifier
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("notifier error leaked into run: %v", err)
	}
	if mailbox.applied["t1"] != testLabels.Processed {
		t.Fatalf("thread not finalized: %q", mailbox.applied["t1"])
	}
}

func TestDigestMentionsDeadline(t *testing.T) {
	t.Parallel()

	d := Digest("", RunReport{RunID: "abc", DeadlineHit: true})
	if !strings.HasPrefix(d, "tracker run abc\n") || !strings.Contains(d, "deadline reached") {
		t.Fatalf("unexpected digest %q", d)
	}
}
