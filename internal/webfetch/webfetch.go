// Package webfetch renders remote pages into text for the scrape adapters.
// Two renderers are available: a plain HTTP client for the common case and a
// headless-browser fetcher for directories that assemble listings in script.
package webfetch

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 8000
)

// Result is one rendered page.
type Result struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	HTML     string `json:"html"`
	Text     string `json:"text"`
	Status   int    `json:"status"`
	RenderMS int    `json:"render_ms"`
}

// Fetcher renders a URL. Implementations return a Result with Status set even
// on partial failure so callers can decide what is usable.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Result, error)
}

// FetcherType selects the renderer.
type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

// New builds a fetcher of the requested type.
func New(fetcherType FetcherType, timeout time.Duration, maxChars int) (Fetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}
	switch fetcherType {
	case HTTPFetcherType, "":
		return NewHTTPFetcher(timeout, maxChars), nil
	case ChromedpFetcherType:
		return &ChromeFetcher{Timeout: timeout, MaxChars: maxChars}, nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type %q", fetcherType)
	}
}
