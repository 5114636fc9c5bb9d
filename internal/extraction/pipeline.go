// Package extraction turns a raw email into a typed candidate record. The
// primary extractor is an external classifier; when it fails or is unsure, a
// deterministic pipeline of sender, subject, body and keyword heuristics
// fills in. Extract never returns an error: every failure degrades to a
// candidate flagged for manual review.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"MailTracker/internal/domain"
	"MailTracker/internal/ports"
)

const (
	defaultBodyLimit     = 4000
	defaultBodyScanLimit = 1500
	maxErrorDetail       = 500
)

// Vocabulary resolves free-form status strings to canonical names.
type Vocabulary interface {
	Canonical(status string) (string, bool)
	Names() []string
}

// Config parameterises a pipeline for one tracker.
type Config struct {
	PrimaryField   string
	SecondaryField string
	Vocabulary     Vocabulary
	Heuristics     *Heuristics

	// BodyLimit caps the body sent to the primary extractor (runes).
	BodyLimit int
	// BodyScanLimit caps the body prefix searched by body patterns (runes).
	BodyScanLimit int
	// MinConfidence rejects primary results that report a lower confidence.
	MinConfidence float64
}

// Pipeline implements extract(subject, body) -> Candidate.
type Pipeline struct {
	primary ports.Extractor
	cfg     Config
	logger  *slog.Logger
}

// NewPipeline wires the optional primary extractor with fallback heuristics.
func NewPipeline(primary ports.Extractor, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = defaultBodyLimit
	}
	if cfg.BodyScanLimit <= 0 {
		cfg.BodyScanLimit = defaultBodyScanLimit
	}
	if cfg.Heuristics == nil {
		cfg.Heuristics = &Heuristics{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{primary: primary, cfg: cfg, logger: logger}
}

// Extract produces a candidate for msg.
func (p *Pipeline) Extract(ctx context.Context, msg domain.Message) (cand domain.Candidate) {
	cand = domain.Candidate{
		Primary:   domain.ManualReview,
		Secondary: domain.ManualReview,
		Method:    domain.MethodNone,
		Subject:   msg.Subject,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		Permalink: msg.Permalink,
		Timestamp: msg.Timestamp,
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("extraction panicked", "message_id", msg.ID, "panic", r)
			cand.Primary = domain.ManualReview
			cand.Secondary = domain.ManualReview
			cand.Failed = true
			cand.Err = truncate(fmt.Sprintf("extraction panic: %v", r), maxErrorDetail)
		}
	}()

	primaryErr := p.runPrimary(ctx, msg, &cand)
	if cand.Method == domain.MethodAI && cand.Status != "" && !cand.NeedsReview() {
		return cand
	}

	fb := p.fallback(msg)

	if cand.Method == domain.MethodAI {
		filled := false
		if domain.IsManualReview(cand.Primary) && !domain.IsManualReview(fb.Primary) {
			cand.Primary = fb.Primary
			filled = true
		}
		if domain.IsManualReview(cand.Secondary) && !domain.IsManualReview(fb.Secondary) {
			cand.Secondary = fb.Secondary
			filled = true
		}
		if cand.Status == "" && fb.Status != "" {
			cand.Status = fb.Status
			filled = true
		}
		if filled {
			cand.Method = domain.MethodMixed
		}
		return cand
	}

	cand.Primary = fb.Primary
	cand.Secondary = fb.Secondary
	cand.Status = fb.Status
	cand.Method = domain.MethodFallback

	if primaryErr != nil && domain.IsManualReview(fb.Primary) && domain.IsManualReview(fb.Secondary) {
		cand.Failed = true
		cand.Err = truncate(primaryErr.Error(), maxErrorDetail)
	}
	return cand
}

// runPrimary fills cand from the primary extractor. A returned error means
// the result must not be used.
func (p *Pipeline) runPrimary(ctx context.Context, msg domain.Message, cand *domain.Candidate) error {
	if p.primary == nil {
		return nil
	}

	var names []string
	if p.cfg.Vocabulary != nil {
		names = p.cfg.Vocabulary.Names()
	}

	res, err := p.primary.Extract(ctx, domain.ExtractionRequest{
		Subject:        msg.Subject,
		Body:           truncate(msg.Body, p.cfg.BodyLimit),
		PrimaryField:   p.cfg.PrimaryField,
		SecondaryField: p.cfg.SecondaryField,
		Statuses:       names,
	})
	if err == nil && res.HasConfidence && res.Confidence < p.cfg.MinConfidence {
		err = fmt.Errorf("low confidence %.2f", res.Confidence)
	}
	if err != nil {
		p.logger.Warn("primary extractor unusable, falling back", "message_id", msg.ID, "error", err)
		return fmt.Errorf("primary extractor: %w", err)
	}

	cand.Primary = normalizeKey(res.Primary)
	cand.Secondary = normalizeKey(res.Secondary)
	cand.Status = p.canonical(res.Status)
	cand.Confidence = res.Confidence
	cand.Method = domain.MethodAI
	return nil
}

type fallbackResult struct {
	Primary   string
	Secondary string
	Status    string
}

func (p *Pipeline) fallback(msg domain.Message) fallbackResult {
	h := p.cfg.Heuristics
	res := fallbackResult{Primary: domain.ManualReview, Secondary: domain.ManualReview}

	if m, ok := firstMatch(h.SubjectPatterns, msg.Subject, h); ok {
		res.Primary, res.Secondary = m.Primary, m.Secondary
	}

	if domain.IsManualReview(res.Primary) || domain.IsManualReview(res.Secondary) {
		head := truncate(msg.Body, p.cfg.BodyScanLimit)
		for _, pattern := range h.BodyPatterns {
			m, ok := pattern.Apply(head, h)
			if !ok {
				continue
			}
			if domain.IsManualReview(res.Primary) {
				res.Primary = m.Primary
			}
			if domain.IsManualReview(res.Secondary) {
				res.Secondary = m.Secondary
			}
			if !domain.IsManualReview(res.Primary) && !domain.IsManualReview(res.Secondary) {
				break
			}
		}
	}

	if domain.IsManualReview(res.Primary) {
		display, address := parseSender(msg.From)
		if guess := nameFromAddress(address, h); guess != "" {
			res.Primary = Clean(guess, h)
		} else if guess := nameFromDisplay(display, h); guess != "" {
			res.Primary = guess
		}
	}

	if status, ok := ScanStatus(msg.Subject+"\n"+msg.Body, h.StatusKeywords); ok {
		res.Status = p.canonical(status)
	}
	return res
}

func (p *Pipeline) canonical(status string) string {
	status = strings.TrimSpace(status)
	if status == "" || domain.IsManualReview(status) {
		return ""
	}
	if p.cfg.Vocabulary == nil {
		return status
	}
	if name, ok := p.cfg.Vocabulary.Canonical(status); ok {
		return name
	}
	return ""
}

func normalizeKey(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if domain.IsManualReview(value) {
		return domain.ManualReview
	}
	return value
}
