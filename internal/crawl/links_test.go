package crawl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testMarkers = []string{"/blog/", "/news", "/post", "/article", "/resources", "/insights"}

func TestLinksResolvesAndDeduplicates(t *testing.T) {
	page := `<html><body>
<a href="/blog/first-post">First</a>
<a href="/blog/first-post/">First again</a>
<a href="https://other.example/blog/external">External</a>
<a href="/pricing">Pricing</a>
<a href="/careers">Careers</a>
<a href="#section">Anchor</a>
<a href="mailto:hi@clubco.example">Mail</a>
<a href="javascript:void(0)">JS</a>
</body></html>`

	lf := NewLinkFinder(testMarkers)
	links := lf.Links("https://clubco.example/blog/", page)

	// Only article-marker anchors are crawl candidates.
	assert.Equal(t, []string{
		"https://clubco.example/blog/first-post",
		"https://other.example/blog/external",
	}, links)
}

func TestLinksOnlyArticleMarkers(t *testing.T) {
	page := `<html><body>
<a href="/pricing">Pricing</a>
<a href="/about">About</a>
</body></html>`

	lf := NewLinkFinder(testMarkers)
	assert.Empty(t, lf.Links("https://clubco.example/", page))
}

func TestIsArticleMarkers(t *testing.T) {
	lf := NewLinkFinder(testMarkers)

	assert.True(t, lf.IsArticle("https://clubco.example/blog/launch"))
	assert.True(t, lf.IsArticle("https://clubco.example/News/2026"))
	assert.True(t, lf.IsArticle("https://clubco.example/resources/guide"))
	assert.False(t, lf.IsArticle("https://clubco.example/pricing"))
	assert.False(t, lf.IsArticle("https://clubco.example/"))
}
