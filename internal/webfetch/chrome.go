package webfetch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
)

// ChromeFetcher renders pages in a headless browser. Directories that build
// their listing markup in script need this; everything else should use the
// HTTP fetcher.
type ChromeFetcher struct {
	Timeout  time.Duration
	MaxChars int
}

func (f *ChromeFetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Result{}, errors.New("invalid url")
	}
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	html, err := renderHTML(ctx, rawURL)
	if err != nil {
		return Result{URL: rawURL, Status: 599, RenderMS: ms(t0)}, err
	}

	res := Result{
		URL:      rawURL,
		HTML:     html,
		Status:   200,
		RenderMS: ms(t0),
	}
	article, err := readability.FromReader(strings.NewReader(html), parseURL(rawURL))
	if err != nil {
		return res, nil
	}
	res.Title = strings.TrimSpace(article.Title)
	text := strings.TrimSpace(article.TextContent)
	if len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}
	res.Text = text
	return res, nil
}

func renderHTML(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(defaultHeaders["User-Agent"]),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
