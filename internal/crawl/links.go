package crawl

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/sells-group/competitor-agent/internal/identity"
)

// LinkFinder discovers follow-up links in fetched pages and classifies
// article-like URLs by path marker.
type LinkFinder struct {
	markers []string
}

// NewLinkFinder creates a LinkFinder with the given article path markers.
func NewLinkFinder(markers []string) *LinkFinder {
	return &LinkFinder{markers: markers}
}

// Links returns the normalized absolute URLs of the page's article-like
// anchors, deduplicated, in document order. Anchors matching no article
// marker are not crawl candidates and are never returned.
func (lf *LinkFinder) Links(baseURL, rawHTML string) []string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key != "href" {
					continue
				}
				href := strings.TrimSpace(a.Val)
				if href == "" || strings.HasPrefix(href, "#") ||
					strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
					continue
				}
				resolved := identity.Resolve(baseURL, href)
				if !lf.IsArticle(resolved) {
					continue
				}
				if !seen[resolved] {
					seen[resolved] = true
					links = append(links, resolved)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links
}

// IsArticle reports whether the URL path looks like an individual update or
// article, by substring marker.
func (lf *LinkFinder) IsArticle(pageURL string) bool {
	lower := strings.ToLower(pageURL)
	for _, m := range lf.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
