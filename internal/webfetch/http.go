package webfetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// browser-like headers; several directories serve bot traffic an empty shell
var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

// HTTPFetcher renders pages with a plain HTTP GET and readability text
// extraction. It is the default renderer.
type HTTPFetcher struct {
	client   *http.Client
	maxChars int
}

func NewHTTPFetcher(timeout time.Duration, maxChars int) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxChars: maxChars,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Result{}, errors.New("invalid url")
	}
	t0 := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{URL: rawURL}, err
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{URL: rawURL, Status: 599, RenderMS: ms(t0)}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Result{URL: rawURL, Status: resp.StatusCode, RenderMS: ms(t0)}, err
	}
	html := string(body)

	res := Result{
		URL:      rawURL,
		HTML:     html,
		Status:   resp.StatusCode,
		RenderMS: ms(t0),
	}
	article, err := readability.FromReader(strings.NewReader(html), parseURL(rawURL))
	if err != nil {
		return res, nil
	}
	res.Title = strings.TrimSpace(article.Title)
	text := strings.TrimSpace(article.TextContent)
	if len(text) > f.maxChars {
		text = text[:f.maxChars]
	}
	res.Text = text
	return res, nil
}

func ms(t0 time.Time) int { return int(time.Since(t0) / time.Millisecond) }

func parseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
