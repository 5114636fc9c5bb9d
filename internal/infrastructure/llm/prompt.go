package llm

import (
	"fmt"
	"strings"

	"MailTracker/internal/domain"
)

func systemPrompt(req domain.ExtractionRequest) string {
	var b strings.Builder
	b.WriteString("You read one email about a tracked submission and extract structured fields.\n")
	b.WriteString("Answer with a single JSON object and nothing else. Keys:\n")
	fmt.Fprintf(&b, "- %q: the organisation the email is about\n", req.PrimaryField)
	fmt.Fprintf(&b, "- %q: the specific item (role, proposal) the email is about\n", req.SecondaryField)
	b.WriteString("- \"status\": exactly one of: ")
	b.WriteString(strings.Join(req.Statuses, ", "))
	b.WriteString("\n")
	b.WriteString("- \"confidence\": a number between 0 and 1 for how sure you are\n")
	fmt.Fprintf(&b, "If a value cannot be determined, use %q for it. Do not guess.\n", domain.ManualReview)
	return b.String()
}

func userPrompt(req domain.ExtractionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n\n", strings.TrimSpace(req.Subject))
	b.WriteString(strings.TrimSpace(req.Body))
	return b.String()
}
