package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mfg-agent/mfgagent/models"
)

const ddgEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the DuckDuckGo HTML endpoint. It needs no key and is
// always registered.
type DuckDuckGo struct {
	maxResults int
	endpoint   string
	client     *http.Client
}

func NewDuckDuckGo(maxResults int) *DuckDuckGo {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &DuckDuckGo{maxResults: maxResults, endpoint: ddgEndpoint, client: http.DefaultClient}
}

func (d *DuckDuckGo) Tag() string { return "duckduckgo" }

func (d *DuckDuckGo) Fetch(ctx context.Context, product, location string) ([]models.RawCandidate, error) {
	q := url.Values{"q": {searchQuery(product, location)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	var out []models.RawCandidate
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		out = append(out, models.RawCandidate{
			Name:        title,
			Location:    location,
			Website:     resolveDDGLink(href),
			Description: strings.TrimSpace(sel.Find(".result__snippet").Text()),
			Source:      "duckduckgo",
		})
		return len(out) < d.maxResults
	})
	return out, nil
}

// resolveDDGLink unwraps the /l/?uddg= redirect DuckDuckGo wraps results in.
func resolveDDGLink(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
