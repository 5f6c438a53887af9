package extract

import (
	"net/mail"
	"strings"

	"golang.org/x/net/html"

	"github.com/sells-group/competitor-agent/internal/model"
)

// EmailFields are the identity-bearing fields pulled from a stored payload.
type EmailFields struct {
	FromAddress string
	ToAddress   string
	Subject     string
	Date        string
	MessageID   string
}

// Fields extracts addressing fields from a payload, preferring the SMTP
// envelope and falling back to message headers. fallbackID is used as the
// message ID when the payload has no Message-ID header; callers pass the
// stored filename so identity stays stable across reruns.
func Fields(p model.Payload, fallbackID string) EmailFields {
	f := EmailFields{
		FromAddress: strings.TrimSpace(p.Envelope.From),
		ToAddress:   strings.TrimSpace(p.Envelope.To),
		Subject:     strings.TrimSpace(p.Header("Subject")),
		Date:        strings.TrimSpace(p.Header("Date")),
		MessageID:   strings.TrimSpace(p.Header("Message-ID")),
	}

	if f.FromAddress == "" {
		f.FromAddress = parseAddress(p.Header("From"))
	}
	if f.ToAddress == "" {
		f.ToAddress = parseAddress(p.Header("To"))
	}
	if f.MessageID == "" {
		f.MessageID = fallbackID
	}

	return f
}

// parseAddress pulls the bare address out of a header like
// `"Name" <user@host>`. Unparseable headers are returned lowercased as-is.
func parseAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	return strings.ToLower(addr.Address)
}

// BodyText returns the email body as clean text: the plain part when
// present, otherwise the HTML part with markup stripped.
func BodyText(p model.Payload) string {
	if text := strings.TrimSpace(p.Plain); text != "" {
		return CleanText(text)
	}
	if p.HTML == "" {
		return ""
	}
	return stripHTML(p.HTML)
}

// stripHTML extracts visible text from an HTML email body.
func stripHTML(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return CleanText(raw)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipElements[n.Data] {
				return
			}
			if blockElements[n.Data] {
				b.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				b.WriteString(text)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return CleanText(b.String())
}
