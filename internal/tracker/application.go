package tracker

import (
	"regexp"

	"MailTracker/internal/domain"
	"MailTracker/internal/extraction"
)

// Application status names.
const (
	StatusRejected     = "Rejected"
	StatusApplied      = "Applied"
	StatusViewed       = "Viewed"
	StatusAssessment   = "Assessment"
	StatusInterviewing = "Interviewing"
	StatusOffer        = "Offer"
)

// company captures stop at sentence punctuation or a common continuation word.
const companyCapture = `([^.,;!?\n]+?)(?:\s+(?:and|where|we|our|in|for|on|is|has|team)\b|[.,;!?\n]|$)`

var webmailDomains = []string{
	"gmail.com", "googlemail.com", "outlook.com", "hotmail.com", "live.com",
	"yahoo.com", "icloud.com", "me.com", "aol.com", "proton.me", "protonmail.com",
}

var genericTLDs = []string{
	"com", "org", "net", "io", "co", "ai", "app", "dev", "tech", "biz", "info",
	"us", "uk", "de", "fr", "ca", "au", "in", "eu", "nl", "es", "it", "se", "ch",
}

var legalSuffixes = []string{
	"Inc", "Incorporated", "LLC", "Ltd", "Limited", "Corp", "Corporation", "Co",
	"GmbH", "PLC", "LLP", "AG", "SA", "S.A", "BV", "Pty",
}

// Application is the job-application tracker: company and job title form the
// natural key.
func Application() Profile {
	return Profile{
		Name:           "application",
		PrimaryField:   "company",
		SecondaryField: "title",
		Statuses: []Status{
			{Name: domain.ManualReview, Rank: 0},
			{Name: StatusRejected, Rank: 1},
			{Name: StatusApplied, Rank: 2},
			{Name: StatusViewed, Rank: 3},
			{Name: StatusAssessment, Rank: 4},
			{Name: StatusInterviewing, Rank: 5},
			{Name: StatusOffer, Rank: 6},
		},
		DefaultStatus:    StatusApplied,
		StaleStatus:      StatusRejected,
		OverrideStatuses: []string{StatusRejected, StatusOffer},
		TerminalStatuses: []string{StatusRejected, StatusOffer},
		Heuristics:       applicationHeuristics(),
	}
}

func applicationHeuristics() extraction.Heuristics {
	return extraction.Heuristics{
		IgnoredDomains: append([]string{
			"greenhouse.io", "greenhouse-mail.io", "lever.co", "myworkday.com",
			"myworkdayjobs.com", "workable.com", "workablemail.com", "ashbyhq.com",
			"smartrecruiters.com", "icims.com", "jobvite.com", "bamboohr.com",
			"recruitee.com", "teamtailor-mail.com", "linkedin.com", "indeed.com",
			"indeedemail.com", "glassdoor.com", "ziprecruiter.com", "successfactors.com",
			"taleo.net", "breezy.hr", "jazzhr.com", "applytojob.com",
		}, webmailDomains...),
		DomainPrefixes: []string{
			"careers", "career", "jobs", "job", "recruiting", "recruitment", "talent",
			"hr", "mail", "email", "e", "em", "mg", "m", "mailer", "notifications",
			"notification", "notify", "no-reply", "noreply", "reply", "hire", "apply",
			"info", "news", "us", "eu",
		},
		GenericTLDs: genericTLDs,
		SenderNoise: []string{
			"via Greenhouse", "via Lever", "via Workday", "via LinkedIn", "via Indeed",
			"via Ashby", "via SmartRecruiters", "via Workable", "Hiring Team",
			"Recruiting Team", "Talent Acquisition", "Talent Team", "People Team",
			"Do Not Reply", "No Reply", "no-reply", "noreply",
		},
		DepartmentWords: []string{
			"HR", "Team", "Recruiting", "Recruitment", "Recruiter", "Talent", "Careers",
			"Career", "Jobs", "People", "Hiring", "Acquisition", "Human", "Resources",
			"Notifications", "Notification",
		},
		LegalSuffixes: legalSuffixes,
		RoleKeywords: []string{
			"engineer", "engineering", "developer", "manager", "analyst", "designer",
			"scientist", "intern", "internship", "specialist", "director", "lead",
			"architect", "consultant", "associate", "coordinator", "administrator",
			"officer", "technician", "representative", "assistant", "researcher",
			"sre", "devops",
		},
		SubjectPatterns: []extraction.Pattern{
			{
				Name:           "thanks-for-applying-role-at",
				Expr:           regexp.MustCompile(`(?i)thank(?:s| you) for (?:applying|your application|your interest)(?: to| for| in)? (?:the )?(.+?) (?:position|role|opening|job) (?:at|with) (.+)$`),
				PrimaryGroup:   2,
				SecondaryGroup: 1,
			},
			{
				Name:           "application-for-role-at",
				Expr:           regexp.MustCompile(`(?i)application (?:for|to) (?:the )?(.+?) (?:position |role |opening |job )?(?:at|with) (.+)$`),
				PrimaryGroup:   2,
				SecondaryGroup: 1,
			},
			{
				Name:           "interview-for-role-at",
				Expr:           regexp.MustCompile(`(?i)interview (?:invitation|invite|request|scheduled)(?: for| -|:)?\s+(?:the )?(.+?)\s+(?:at|with)\s+(.+)$`),
				PrimaryGroup:   2,
				SecondaryGroup: 1,
			},
			{
				Name:           "update-on-role-application-at",
				Expr:           regexp.MustCompile(`(?i)(?:update|news) (?:on|regarding|about) your (.+?) application (?:at|with|to) (.+)$`),
				PrimaryGroup:   2,
				SecondaryGroup: 1,
			},
			{
				Name:           "separated-pair-application",
				Expr:           regexp.MustCompile(`(?i)^(.+?)\s*[|:–-]\s*(.+?)\s*[|:–-]\s*application\b`),
				PrimaryGroup:   1,
				SecondaryGroup: 2,
				Rule:           extraction.SwapOnRoleKeyword,
			},
			{
				Name:           "company-colon-application-for",
				Expr:           regexp.MustCompile(`(?i)^(.+?)\s*[|:–-]\s*(?:your )?application (?:for|to) (?:the )?(.+?)(?: position| role)?$`),
				PrimaryGroup:   1,
				SecondaryGroup: 2,
				Rule:           extraction.SwapOnRoleKeyword,
			},
			{
				Name:         "thanks-for-applying-to-company",
				Expr:         regexp.MustCompile(`(?i)thank(?:s| you) for applying (?:to|at) (.+)$`),
				PrimaryGroup: 1,
			},
			{
				Name:         "application-to-company",
				Expr:         regexp.MustCompile(`(?i)application (?:to|with) (.+)$`),
				PrimaryGroup: 1,
			},
		},
		BodyPatterns: []extraction.Pattern{
			{
				Name:           "applying-to-role-at",
				Expr:           regexp.MustCompile(`(?i)applying (?:to|for) (?:the )?(.+?) (?:position|role|opening) (?:at|with) ` + companyCapture),
				PrimaryGroup:   2,
				SecondaryGroup: 1,
			},
			{
				Name:           "application-for-the-role",
				Expr:           regexp.MustCompile(`(?i)application for the (.+?) (?:position|role|opening)(?: (?:at|with) ` + companyCapture + `)?`),
				PrimaryGroup:   2,
				SecondaryGroup: 1,
			},
			{
				Name:           "role-of-at",
				Expr:           regexp.MustCompile(`(?i)(?:position|role) of (.+?) (?:at|with) ` + companyCapture),
				PrimaryGroup:   2,
				SecondaryGroup: 1,
			},
			{
				Name:         "position-at",
				Expr:         regexp.MustCompile(`(?i)(?:position|role|opportunity) at ` + companyCapture),
				PrimaryGroup: 1,
			},
			{
				Name:         "applying-to",
				Expr:         regexp.MustCompile(`(?i)applying to ` + companyCapture),
				PrimaryGroup: 1,
			},
		},
		StatusKeywords: []extraction.KeywordSet{
			{Status: StatusOffer, Keywords: []string{
				"pleased to offer", "excited to offer you", "extend an offer", "offer letter",
				"job offer", "offer of employment",
			}},
			{Status: StatusInterviewing, Keywords: []string{
				"schedule an interview", "interview invitation", "invite you to interview",
				"invite you for an interview", "phone screen", "next round",
				"availability for a call", "like to speak with you", "onsite interview",
				"video interview",
			}},
			{Status: StatusAssessment, Keywords: []string{
				"assessment", "coding challenge", "take home", "hackerrank", "codility",
				"online test", "technical test", "skills test",
			}},
			{Status: StatusViewed, Keywords: []string{
				"application was viewed", "viewed your application", "reviewing your application",
				"application is being reviewed", "under review",
			}},
			{Status: StatusRejected, Keywords: []string{
				"not moving forward", "not be moving forward", "decided not to proceed",
				"move forward with other candidates", "pursue other candidates",
				"regret to inform", "will not be proceeding", "position has been filled",
				"no longer under consideration", "not been selected",
			}},
			{Status: StatusApplied, Keywords: []string{
				"thank you for applying", "thanks for applying", "application received",
				"received your application", "application has been submitted",
				"successfully submitted",
			}},
		},
	}
}
