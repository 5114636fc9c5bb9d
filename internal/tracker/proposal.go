package tracker

import (
	"regexp"

	"MailTracker/internal/domain"
	"MailTracker/internal/extraction"
)

// Proposal status names.
const (
	StatusDeclined          = "Declined"
	StatusSubmitted         = "Submitted"
	StatusAcknowledged      = "Acknowledged"
	StatusUnderReview       = "Under Review"
	StatusRevisionRequested = "Revision Requested"
	StatusAwarded           = "Awarded"
)

// Proposal is the grant-proposal tracker: funder and proposal title form the
// natural key.
func Proposal() Profile {
	return Profile{
		Name:           "proposal",
		PrimaryField:   "funder",
		SecondaryField: "proposal_title",
		Statuses: []Status{
			{Name: domain.ManualReview, Rank: 0},
			{Name: StatusDeclined, Rank: 1},
			{Name: StatusSubmitted, Rank: 2},
			{Name: StatusAcknowledged, Rank: 3},
			{Name: StatusUnderReview, Rank: 4},
			{Name: StatusRevisionRequested, Rank: 5},
			{Name: StatusAwarded, Rank: 6},
		},
		DefaultStatus:    StatusSubmitted,
		StaleStatus:      StatusDeclined,
		OverrideStatuses: []string{StatusDeclined, StatusAwarded},
		TerminalStatuses: []string{StatusDeclined, StatusAwarded},
		Heuristics:       proposalHeuristics(),
	}
}

func proposalHeuristics() extraction.Heuristics {
	return extraction.Heuristics{
		IgnoredDomains: append([]string{
			"submittable.com", "fluxx.io", "fluxxlabs.com", "smartsimple.com",
			"blackbaud.com", "instrumentl.com", "grants.gov",
		}, webmailDomains...),
		DomainPrefixes: []string{
			"grants", "grant", "programs", "program", "research", "mail", "email",
			"notifications", "no-reply", "noreply", "apply", "info", "www",
		},
		GenericTLDs: append([]string{"gov", "edu"}, genericTLDs...),
		SenderNoise: []string{
			"via Submittable", "via Fluxx", "Grants Management", "Grants Team",
			"Program Team", "Program Office", "Do Not Reply", "No Reply", "noreply",
		},
		DepartmentWords: []string{
			"Grants", "Grant", "Program", "Programs", "Team", "Office", "Management",
			"Administration", "Notifications", "Support",
		},
		LegalSuffixes: legalSuffixes,
		RoleKeywords:  []string{"proposal", "project", "study", "initiative", "research", "application"},
		SubjectPatterns: []extraction.Pattern{
			{
				Name:           "proposal-title-to-funder",
				Expr:           regexp.MustCompile(`(?i)(?:proposal|submission) ["“']?(.+?)["”']? (?:to|submitted to|for) (?:the )?(.+)$`),
				PrimaryGroup:   2,
				SecondaryGroup: 1,
			},
			{
				Name:           "award-decision-from-funder",
				Expr:           regexp.MustCompile(`(?i)(?:award|funding) (?:notification|decision|notice)\s*[|:–-]?\s*(?:for )?["“']?(.+?)["”']?\s+(?:from|by)\s+(.+)$`),
				PrimaryGroup:   2,
				SecondaryGroup: 1,
			},
			{
				Name:           "separated-pair-proposal",
				Expr:           regexp.MustCompile(`(?i)^(.+?)\s*[|:–-]\s*(.+?)\s*[|:–-]\s*(?:proposal|application|submission)\b`),
				PrimaryGroup:   1,
				SecondaryGroup: 2,
				Rule:           extraction.SwapOnRoleKeyword,
			},
			{
				Name:         "funder-grant-update",
				Expr:         regexp.MustCompile(`(?i)^(.+?) (?:grant|funding) (?:application|proposal) (?:received|update|status)`),
				PrimaryGroup: 1,
			},
		},
		BodyPatterns: []extraction.Pattern{
			{
				Name:           "proposal-titled-submitted-to",
				Expr:           regexp.MustCompile(`(?i)proposal (?:titled|entitled) ["“']?(.+?)["”']?,? (?:submitted )?to (?:the )?` + companyCapture),
				PrimaryGroup:   2,
				SecondaryGroup: 1,
			},
			{
				Name:           "proposal-titled",
				Expr:           regexp.MustCompile(`(?i)proposal (?:titled|entitled) ["“']?([^"”'\n]+?)["”']?(?:[.,;\n]|\s+(?:has|was|is)\b)`),
				SecondaryGroup: 1,
			},
			{
				Name:         "submitted-to",
				Expr:         regexp.MustCompile(`(?i)submitted to (?:the )?` + companyCapture),
				PrimaryGroup: 1,
			},
			{
				Name:         "on-behalf-of",
				Expr:         regexp.MustCompile(`(?i)on behalf of (?:the )?` + companyCapture),
				PrimaryGroup: 1,
			},
		},
		StatusKeywords: []extraction.KeywordSet{
			{Status: StatusAwarded, Keywords: []string{
				"has been awarded", "award notification", "pleased to award",
				"approved for funding", "selected for funding", "has been funded",
			}},
			{Status: StatusRevisionRequested, Keywords: []string{
				"revise and resubmit", "request revisions", "revised proposal",
				"request for additional information", "additional information is required",
				"budget revision",
			}},
			{Status: StatusUnderReview, Keywords: []string{
				"under review", "review panel", "being reviewed", "peer review", "merit review",
			}},
			{Status: StatusAcknowledged, Keywords: []string{
				"acknowledge receipt", "received your proposal", "receipt of your proposal",
			}},
			{Status: StatusDeclined, Keywords: []string{
				"not been selected", "unable to fund", "not able to fund", "will not be funded",
				"not recommended for funding", "regret to inform", "unsuccessful", "declined",
			}},
			{Status: StatusSubmitted, Keywords: []string{
				"successfully submitted", "submission confirmation", "proposal has been submitted",
				"thank you for your submission",
			}},
		},
	}
}
