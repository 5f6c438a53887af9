// Package extract turns raw page HTML and inbound email payloads into
// normalized article records ready for the update ledger.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/competitor-agent/internal/model"
)

// Untitled is the fallback title when a page carries none.
const Untitled = "Untitled"

var multiNewline = regexp.MustCompile(`\n{3,}`)

// skipElements never contribute body text.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"aside":    true,
	"form":     true,
}

// blockElements force a line break in the extracted text.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"li": true, "br": true, "tr": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// Article extracts a normalized article from fetched page HTML. Extraction
// never fails: missing pieces degrade to fallbacks, and a page with no
// usable body yields an Article with empty CleanText.
func Article(company, sourceURL, rawHTML string) model.Article {
	art := model.Article{
		Company:   company,
		SourceURL: sourceURL,
		Title:     Untitled,
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return art
	}

	p := newParsedPage(doc)

	if t := p.title(); t != "" {
		art.Title = t
	}
	art.PublishedAt = p.publishedAt()
	art.CleanText = p.bodyText()

	return art
}

// parsedPage holds the single-pass walk results over a parsed document.
type parsedPage struct {
	doc       *html.Node
	metaTags  map[string]string
	jsonLD    []map[string]any
	titleTag  string
	firstH1   string
	container *html.Node // <article>, else <main>, else nil
}

func newParsedPage(doc *html.Node) *parsedPage {
	p := &parsedPage{
		doc:      doc,
		metaTags: make(map[string]string),
	}

	var mainNode *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script":
				if attr(n, "type") == "application/ld+json" && n.FirstChild != nil {
					p.collectJSONLD(n.FirstChild.Data)
				}
				return
			case "meta":
				key := attr(n, "property")
				if key == "" {
					key = attr(n, "name")
				}
				if content := attr(n, "content"); key != "" && content != "" {
					if _, seen := p.metaTags[key]; !seen {
						p.metaTags[key] = content
					}
				}
			case "title":
				if p.titleTag == "" && n.FirstChild != nil {
					p.titleTag = strings.TrimSpace(n.FirstChild.Data)
				}
			case "h1":
				if p.firstH1 == "" {
					p.firstH1 = strings.TrimSpace(textOf(n))
				}
			case "article":
				if p.container == nil {
					p.container = n
				}
			case "main":
				if mainNode == nil {
					mainNode = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if p.container == nil {
		p.container = mainNode
	}
	return p
}

func (p *parsedPage) collectJSONLD(raw string) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		p.jsonLD = append(p.jsonLD, obj)
		return
	}
	var arr []map[string]any
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		p.jsonLD = append(p.jsonLD, arr...)
	}
}

// title resolves og:title, then the <title> tag, then the first <h1>.
func (p *parsedPage) title() string {
	if t := strings.TrimSpace(p.metaTags["og:title"]); t != "" {
		return normText(t)
	}
	if p.titleTag != "" {
		return normText(p.titleTag)
	}
	if p.firstH1 != "" {
		return normText(p.firstH1)
	}
	return ""
}

// jsonLDDateKeys are consulted in priority order within each JSON-LD block.
var jsonLDDateKeys = []string{"datePublished", "dateCreated", "dateModified", "uploadDate"}

// publishedAt resolves a publish date from JSON-LD date keys, then the
// article:published_time meta tag. Absent or unparseable dates yield nil.
func (p *parsedPage) publishedAt() *time.Time {
	for _, obj := range p.jsonLD {
		for _, key := range jsonLDDateKeys {
			if raw, ok := obj[key].(string); ok {
				if t := ParseDate(raw); t != nil {
					return t
				}
			}
		}
	}
	if raw, ok := p.metaTags["article:published_time"]; ok {
		return ParseDate(raw)
	}
	return nil
}

// bodyText extracts visible text from the article container, falling back to
// the whole document when no <article> or <main> exists.
func (p *parsedPage) bodyText() string {
	root := p.container
	if root == nil {
		root = p.doc
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
	walk(root)

	return CleanText(b.String())
}

// CleanText normalizes extracted text: NFC form, trimmed lines, and runs of
// blank lines collapsed to at most one.
func CleanText(s string) string {
	s = norm.NFC.String(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	s = strings.Join(lines, "\n")
	s = multiNewline.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// dateLayouts covers the publish-date formats seen across competitor sites.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"01/02/2006",
}

// ParseDate parses a date string against the known site layouts. Returns nil
// when nothing matches.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func normText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
