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

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily queries the Tavily search API.
type Tavily struct {
	apiKey     string
	maxResults int
	endpoint   string
	client     *http.Client
}

func NewTavily(apiKey string, maxResults int) *Tavily {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Tavily{apiKey: apiKey, maxResults: maxResults, endpoint: tavilyEndpoint, client: http.DefaultClient}
}

func (t *Tavily) Tag() string { return "tavily" }

func (t *Tavily) Fetch(ctx context.Context, product, location string) ([]models.RawCandidate, error) {
	body, err := json.Marshal(map[string]interface{}{
		"api_key":             t.apiKey,
		"query":               searchQuery(product, location),
		"max_results":         t.maxResults,
		"include_raw_content": false,
		"search_depth":        "advanced",
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("tavily: status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	out := make([]models.RawCandidate, 0, len(payload.Results))
	for _, r := range payload.Results {
		out = append(out, models.RawCandidate{
			Name:        r.Title,
			Location:    location,
			Website:     r.URL,
			Description: r.Content,
			Source:      "tavily",
		})
	}
	return out, nil
}
