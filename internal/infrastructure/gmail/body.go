package gmail

import (
	"encoding/base64"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type messagePart struct {
	MimeType string        `json:"mimeType"`
	Headers  []header      `json:"headers"`
	Body     partBody      `json:"body"`
	Parts    []messagePart `json:"parts"`
}

type header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type partBody struct {
	Data string `json:"data"`
}

func (p messagePart) header(name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractBody prefers the first text/plain part and falls back to the
// first text/html part rendered as text.
func extractBody(root messagePart) string {
	if plain := findPart(root, "text/plain"); plain != "" {
		return normalizeText(plain)
	}
	if html := findPart(root, "text/html"); html != "" {
		return htmlToText(html)
	}
	return ""
}

func findPart(p messagePart, mime string) string {
	if strings.EqualFold(p.MimeType, mime) && p.Body.Data != "" {
		if decoded, ok := decodeData(p.Body.Data); ok {
			return decoded
		}
	}
	for _, child := range p.Parts {
		if found := findPart(child, mime); found != "" {
			return found
		}
	}
	return ""
}

func decodeData(data string) (string, bool) {
	data = strings.TrimRight(data, "=")
	raw, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(data)
		if err != nil {
			return "", false
		}
	}
	return string(raw), true
}

func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return normalizeText(html)
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, table").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return normalizeText(doc.Text())
}

// normalizeText collapses runs of blanks inside lines and drops empty lines.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
