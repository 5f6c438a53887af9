// Package renderer provides a client for a browserless-style headless
// rendering service. It is the fallback fetch path for pages whose content
// only appears after JavaScript runs.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the rendering operations used by the crawler.
type Client interface {
	// Render loads a URL in a headless browser, waits for the page to
	// settle, and returns the resulting HTML.
	Render(ctx context.Context, targetURL string) (string, error)
}

// Option configures the renderer client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithSettleDelay sets how long the browser waits after load before
// capturing HTML.
func WithSettleDelay(d time.Duration) Option {
	return func(c *httpClient) {
		c.settle = d
	}
}

type httpClient struct {
	baseURL string
	settle  time.Duration
	http    *http.Client
}

// NewClient creates a renderer client against the given service base URL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		settle:  2 * time.Second,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// renderRequest is the browserless /content request body.
type renderRequest struct {
	URL            string      `json:"url"`
	GotoOptions    gotoOptions `json:"gotoOptions"`
	WaitForTimeout int64       `json:"waitForTimeout,omitempty"`
}

type gotoOptions struct {
	WaitUntil string `json:"waitUntil"`
	Timeout   int    `json:"timeout"`
}

func (c *httpClient) Render(ctx context.Context, targetURL string) (string, error) {
	payload := renderRequest{
		URL: targetURL,
		GotoOptions: gotoOptions{
			WaitUntil: "networkidle2",
			Timeout:   30000,
		},
		WaitForTimeout: c.settle.Milliseconds(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", eris.Wrap(err, "renderer: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/content", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "renderer: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "renderer: request failed")
	}
	defer resp.Body.Close()

	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "renderer: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("renderer: unexpected status %d", resp.StatusCode)
	}

	return string(html), nil
}
