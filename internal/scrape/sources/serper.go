// Package sources holds the candidate source adapters: the search APIs
// (Serper, Tavily, DuckDuckGo) and the B2B directory scrapers.
package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mfg-agent/mfgagent/models"
)

const serperEndpoint = "https://google.serper.dev/search"

// Serper queries the Serper.dev Google search API.
type Serper struct {
	apiKey     string
	maxResults int
	endpoint   string
	client     *http.Client
}

func NewSerper(apiKey string, maxResults int) *Serper {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Serper{apiKey: apiKey, maxResults: maxResults, endpoint: serperEndpoint, client: http.DefaultClient}
}

func (s *Serper) Tag() string { return "serper" }

func (s *Serper) Fetch(ctx context.Context, product, location string) ([]models.RawCandidate, error) {
	body, err := json.Marshal(map[string]interface{}{
		"q":   searchQuery(product, location),
		"num": s.maxResults,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("serper: status %d", resp.StatusCode)
	}

	var payload struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	out := make([]models.RawCandidate, 0, len(payload.Organic))
	for _, r := range payload.Organic {
		out = append(out, models.RawCandidate{
			Name:        r.Title,
			Location:    location,
			Website:     r.Link,
			Description: r.Snippet,
			Source:      "serper",
		})
	}
	return out, nil
}

// searchQuery is the query shape every search adapter uses.
func searchQuery(product, location string) string {
	return fmt.Sprintf("%s suppliers manufacturers %s", product, location)
}
