package groq_provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mfg-agent/mfgagent/provider"
)

func newTestClient(url string) *Client {
	return NewClient("test-key", "test-model", url, 0.3, 512, 5*time.Second)
}

func TestCompleteHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"content": " {\"product\": \"gears\", \"location\": \"Global\"} "}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	out, err := c.Complete(context.Background(), provider.PurposeParse, "find gear suppliers")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"product": "gears", "location": "Global"}` {
		t.Fatalf("output not trimmed: %q", out)
	}
}

func TestComplete429IsQuotaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"code": "rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), provider.PurposeParse, "x")
	if !errors.Is(err, provider.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestCompleteRateLimitBodyWithoutStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "Rate limit reached for model"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), provider.PurposeWrite, "x")
	if !errors.Is(err, provider.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded from body sniffing, got %v", err)
	}
}

func TestCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), provider.PurposeExtract, "x")
	if err == nil || errors.Is(err, provider.ErrQuotaExceeded) {
		t.Fatalf("500 must be a hard error, got %v", err)
	}
}

func TestCompleteUnknownPurpose(t *testing.T) {
	c := newTestClient("http://unused.example")
	if _, err := c.Complete(context.Background(), provider.Purpose("summon"), "x"); err == nil {
		t.Fatalf("expected error for unknown purpose")
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.Complete(context.Background(), provider.PurposeParse, "x"); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}
