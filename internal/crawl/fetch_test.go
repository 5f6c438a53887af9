package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-agent/pkg/renderer"
)

func pad(s string, n int) string {
	return s + strings.Repeat("<!-- pad -->", n)
}

func TestFetchPlainGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(pad("<html><body>real content</body></html>", 100)))
	}))
	defer srv.Close()

	f := NewFetcher(FetchOptions{}, nil)
	html, ok := f.Fetch(context.Background(), srv.URL)

	require.True(t, ok)
	assert.Contains(t, html, "real content")
}

func TestFetchThinBodyFallsBackToRenderer(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body></body></html>"))
	}))
	defer site.Close()

	rendered := pad("<html><body>hydrated content</body></html>", 100)
	renderSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rendered))
	}))
	defer renderSrv.Close()

	f := NewFetcher(FetchOptions{}, renderer.NewClient(renderSrv.URL))
	html, ok := f.Fetch(context.Background(), site.URL)

	require.True(t, ok)
	assert.Contains(t, html, "hydrated content")
}

func TestFetchThinRenderedBodyIsAMiss(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body></body></html>"))
	}))
	defer site.Close()

	// Renderer produces a shell no bigger than the plain GET did.
	renderSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><div id=\"app\"></div></body></html>"))
	}))
	defer renderSrv.Close()

	f := NewFetcher(FetchOptions{}, renderer.NewClient(renderSrv.URL))
	_, ok := f.Fetch(context.Background(), site.URL)

	assert.False(t, ok)
}

func TestFetchNonHTMLContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer srv.Close()

	f := NewFetcher(FetchOptions{}, nil)
	_, ok := f.Fetch(context.Background(), srv.URL)

	assert.False(t, ok)
}

func TestFetchMissIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(FetchOptions{}, nil)
	_, ok := f.Fetch(context.Background(), srv.URL)

	assert.False(t, ok)
}

func TestFetchRendererFailureIsAMiss(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer site.Close()

	renderSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pool exhausted", http.StatusServiceUnavailable)
	}))
	defer renderSrv.Close()

	f := NewFetcher(FetchOptions{}, renderer.NewClient(renderSrv.URL))
	_, ok := f.Fetch(context.Background(), site.URL)

	assert.False(t, ok)
}
