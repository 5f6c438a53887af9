package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-agent/internal/crawl"
	"github.com/sells-group/competitor-agent/internal/ledger"
	"github.com/sells-group/competitor-agent/internal/model"
)

func padHTML(body string) string {
	return "<html><body>" + body + strings.Repeat("<!-- pad -->", 100) + "</body></html>"
}

func scanSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/blog/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(padHTML(`<a href="/blog/launch">Launch</a><a href="/blog/launch/">Launch again</a>`)))
	})
	mux.HandleFunc("/blog/launch", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(padHTML(`<article><h1>Launch</h1><p>We launched the portal.</p></article>`)))
	})
	return httptest.NewServer(mux)
}

func newScanner(t *testing.T, srv *httptest.Server, updates *ledger.Updates) *Scanner {
	t.Helper()
	frontier := crawl.NewFrontier(
		crawl.NewFetcher(crawl.FetchOptions{}, nil),
		crawl.NewLinkFinder([]string{"/blog/"}),
		crawl.FrontierOptions{Delay: time.Millisecond, WithinDomainOnly: true},
	)
	comps := []model.Competitor{{Name: "ClubCo", StartURLs: []string{srv.URL + "/blog/"}}}
	return NewScanner(frontier, updates, comps, 2)
}

func TestScanRunTwiceIsIdempotent(t *testing.T) {
	srv := scanSite(t)
	defer srv.Close()

	updates := ledger.NewUpdates(filepath.Join(t.TempDir(), "updates.csv"))
	s := newScanner(t, srv, updates)

	first, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.New)
	assert.Equal(t, 1, first.PerCompany["ClubCo"])

	second, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.New)
	assert.Equal(t, 1, second.Duplicates)

	rows, err := updates.Load()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Launch", rows[0].Title)
	assert.Contains(t, rows[0].CleanText, "launched the portal")
}

func TestScanAlwaysReturnsSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	updates := ledger.NewUpdates(filepath.Join(t.TempDir(), "updates.csv"))
	s := newScanner(t, srv, updates)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.New)
	assert.Equal(t, 1, summary.Errors)
	assert.False(t, summary.Started.IsZero())
}
