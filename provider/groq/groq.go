package groq_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mfg-agent/mfgagent/provider"
)

const defaultBaseURL = "https://api.groq.com/openai/v1"

// Client implements provider.Provider against the Groq chat-completions API.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// NewClient creates a new Groq client.
func NewClient(apiKey, model, baseURL string, temperature float64, maxTokens int, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:      apiKey,
		model:       model,
		baseURL:     baseURL,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Model returns the configured completion model name.
func (c *Client) Model() string { return c.model }

const parseSystem = `You are a manufacturing procurement analyst.
Extract the product/material and geographic location from the user's query.
Respond ONLY with valid JSON: {"product": "...", "location": "..."}
If location is not specified, use "Global".`

const extractSystem = `You are a manufacturing procurement data extractor.
Given raw search results about suppliers, extract a structured list.
Respond ONLY with a valid JSON array of objects, each with:
{
  "name": "Company Name",
  "location": "City, Country",
  "products": ["product1", "product2"],
  "website": "https://...",
  "contact": "email or phone if found",
  "description": "1-2 sentence description",
  "certifications": ["ISO 9001", ...],
  "min_order": "MOQ if mentioned",
  "source": "where this was found"
}
Include only real companies. If a field is unknown use null.
Return 5-15 of the best, most specific results.`

const writeSystem = `You are a senior manufacturing procurement consultant writing a report for a client.
Given structured supplier data, write a professional Markdown sourcing report that includes:

1. **Executive Summary** — 2-3 sentences covering what was found
2. **Supplier Profiles** — One section per supplier with name, location, products,
   certifications, MOQ, website, and why they are relevant
3. **Comparison Table** — Markdown table: Supplier | Location | Products | Certifications | MOQ | Website
4. **Recommendations** — Top 3 picks with reasoning
5. **Next Steps** — How to proceed (RFQ, factory visit, sample order)

Be specific, factual, and professional. Use the data provided; do not invent details.
Format everything in clean GitHub-flavored Markdown.`

type purposeProfile struct {
	system      string
	maxTokens   int
	temperature float64
}

func (c *Client) profile(purpose provider.Purpose) (purposeProfile, error) {
	switch purpose {
	case provider.PurposeParse:
		return purposeProfile{system: parseSystem, maxTokens: 256, temperature: c.temperature}, nil
	case provider.PurposeExtract:
		return purposeProfile{system: extractSystem, maxTokens: 3000, temperature: c.temperature}, nil
	case provider.PurposeWrite:
		mt := c.maxTokens
		if mt <= 0 {
			mt = 4096
		}
		return purposeProfile{system: writeSystem, maxTokens: mt, temperature: 0.4}, nil
	default:
		return purposeProfile{}, fmt.Errorf("unknown purpose: %s", purpose)
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion for the given purpose. A 429 from the
// API (or a rate-limit error body) surfaces as provider.ErrQuotaExceeded so
// callers can fall back instead of aborting.
func (c *Client) Complete(ctx context.Context, purpose provider.Purpose, input string) (string, error) {
	prof, err := c.profile(purpose)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: prof.system},
			{Role: "user", Content: input},
		},
		Temperature: prof.temperature,
		MaxTokens:   prof.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode != http.StatusOK && isRateLimitBody(raw)) {
		return "", fmt.Errorf("groq %d: %w", resp.StatusCode, provider.ErrQuotaExceeded)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("groq API returned status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func isRateLimitBody(raw []byte) bool {
	s := strings.ToLower(string(raw))
	return strings.Contains(s, "rate_limit_exceeded") || strings.Contains(s, "rate limit reached")
}
