package extraction

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"MailTracker/internal/domain"
)

// parseSender splits a From header into display name and address.
func parseSender(from string) (name, address string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.TrimSpace(addr.Name), strings.ToLower(addr.Address)
	}
	if strings.Contains(from, "@") && !strings.ContainsAny(from, " <>") {
		return "", strings.ToLower(from)
	}
	return from, ""
}

// nameFromAddress guesses an organisation name from the sender domain, for
// example "no-reply@careers.acme-robotics.com" gives "Acme Robotics".
func nameFromAddress(address string, h *Heuristics) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	host := strings.ToLower(strings.Trim(address[at+1:], ". "))

	for _, ignored := range h.IgnoredDomains {
		ignored = strings.ToLower(ignored)
		if host == ignored || strings.HasSuffix(host, "."+ignored) {
			return ""
		}
	}

	labels := strings.Split(host, ".")
	for len(labels) > 1 && containsFold(h.GenericTLDs, labels[len(labels)-1]) {
		labels = labels[:len(labels)-1]
	}
	for len(labels) > 1 && containsFold(h.DomainPrefixes, labels[0]) {
		labels = labels[1:]
	}
	if len(labels) == 0 {
		return ""
	}

	name := labels[len(labels)-1]
	if containsFold(h.DomainPrefixes, name) {
		return ""
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return titleCase(name)
}

var wordExpr = regexp.MustCompile(`[\p{L}\p{N}&'.]+`)

// nameFromDisplay strips ATS noise, department words and legal suffixes from
// the sender display name ("Acme Recruiting Team via Lever" gives "Acme").
func nameFromDisplay(display string, h *Heuristics) string {
	display = strings.Trim(display, `"' `)
	if display == "" || strings.Contains(display, "@") {
		return ""
	}

	for _, phrase := range h.SenderNoise {
		if phrase == "" {
			continue
		}
		expr := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(phrase))
		display = expr.ReplaceAllString(display, " ")
	}

	kept := make([]string, 0, 4)
	for _, word := range wordExpr.FindAllString(display, -1) {
		if containsFold(h.DepartmentWords, strings.Trim(word, ".'")) {
			continue
		}
		kept = append(kept, word)
	}
	name := Clean(strings.Join(kept, " "), h)
	if domain.IsManualReview(name) {
		return ""
	}
	return name
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
