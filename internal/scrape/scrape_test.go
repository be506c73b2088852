package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mfg-agent/mfgagent/internal/pipeline"
	"github.com/mfg-agent/mfgagent/models"
)

type stubAdapter struct {
	tag   string
	cands []models.RawCandidate
	err   error
	delay time.Duration
}

func (s *stubAdapter) Tag() string { return s.tag }

func (s *stubAdapter) Fetch(ctx context.Context, product, location string) ([]models.RawCandidate, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.cands, nil
}

func noopLog(level pipeline.Level, format string, args ...interface{}) {}

func TestGatherDedupAndOrder(t *testing.T) {
	a := &stubAdapter{tag: "serper", cands: []models.RawCandidate{
		{Name: "Acme Ltd", Location: "Pune"},
		{Name: "Bharat Forge", Location: "Mumbai"},
	}}
	b := &stubAdapter{tag: "duckduckgo", cands: []models.RawCandidate{
		{Name: " acme ltd ", Location: "pune"}, // duplicate modulo case and spacing
		{Name: "Tata Steel", Location: "Jamshedpur"},
	}}
	agg := NewAggregator([]Adapter{a, b}, time.Second, 2*time.Second)

	pool, sources := agg.Gather(context.Background(), "steel", "India", noopLog)
	if len(pool) != 3 {
		t.Fatalf("expected 3 deduped candidates, got %d: %+v", len(pool), pool)
	}
	if pool[0].Name != "Acme Ltd" || pool[2].Name != "Tata Steel" {
		t.Fatalf("registration order not preserved: %+v", pool)
	}
	if len(sources) != 2 || sources[0] != "serper" || sources[1] != "duckduckgo" {
		t.Fatalf("sources = %v", sources)
	}
	for _, c := range pool {
		if c.Source == "" {
			t.Fatalf("candidate missing source tag: %+v", c)
		}
	}
}

func TestGatherPartialFailure(t *testing.T) {
	ok := &stubAdapter{tag: "duckduckgo", cands: []models.RawCandidate{{Name: "Acme", Location: "Pune"}}}
	bad := &stubAdapter{tag: "serper", err: errors.New("api down")}
	agg := NewAggregator([]Adapter{bad, ok}, time.Second, 2*time.Second)

	var warned bool
	logf := func(level pipeline.Level, format string, args ...interface{}) {
		if level == pipeline.LevelWarn {
			warned = true
		}
	}
	pool, sources := agg.Gather(context.Background(), "steel", "India", logf)
	if len(pool) != 1 {
		t.Fatalf("expected surviving adapter's candidates, got %d", len(pool))
	}
	if len(sources) != 1 || sources[0] != "duckduckgo" {
		t.Fatalf("sources = %v", sources)
	}
	if !warned {
		t.Fatalf("adapter failure should be logged as warn")
	}
}

func TestGatherDeadline(t *testing.T) {
	slow := &stubAdapter{tag: "duckduckgo", delay: 5 * time.Second,
		cands: []models.RawCandidate{{Name: "Never", Location: "Arrives"}}}
	fast := &stubAdapter{tag: "serper", cands: []models.RawCandidate{{Name: "Acme", Location: "Pune"}}}
	agg := NewAggregator([]Adapter{slow, fast}, 10*time.Second, 200*time.Millisecond)

	start := time.Now()
	pool, _ := agg.Gather(context.Background(), "steel", "India", noopLog)
	if time.Since(start) > 2*time.Second {
		t.Fatalf("gather did not respect deadline")
	}
	if len(pool) != 1 || pool[0].Name != "Acme" {
		t.Fatalf("expected only the fast adapter's result, got %+v", pool)
	}
}

// hungAdapter ignores its context entirely, like a stuck DNS lookup.
type hungAdapter struct {
	tag   string
	block time.Duration
}

func (h *hungAdapter) Tag() string { return h.tag }

func (h *hungAdapter) Fetch(ctx context.Context, product, location string) ([]models.RawCandidate, error) {
	time.Sleep(h.block)
	return []models.RawCandidate{{Name: "Late", Location: "Arrival"}}, nil
}

func TestGatherAbandonsHungAdapter(t *testing.T) {
	hung := &hungAdapter{tag: "alibaba", block: 800 * time.Millisecond}
	fast := &stubAdapter{tag: "serper", cands: []models.RawCandidate{{Name: "Acme", Location: "Pune"}}}
	agg := NewAggregator([]Adapter{hung, fast}, 10*time.Second, 150*time.Millisecond)

	start := time.Now()
	pool, sources := agg.Gather(context.Background(), "steel", "Global", noopLog)
	if elapsed := time.Since(start); elapsed > 600*time.Millisecond {
		t.Fatalf("gather blocked %v waiting on an unresponsive adapter", elapsed)
	}
	if len(pool) != 1 || pool[0].Name != "Acme" {
		t.Fatalf("expected only the responsive adapter's result, got %+v", pool)
	}
	if len(sources) != 1 || sources[0] != "serper" {
		t.Fatalf("sources = %v", sources)
	}
	// let the straggler finish; its late result and logging must be dropped
	time.Sleep(time.Second)
}

func TestSelectAdaptersByRegion(t *testing.T) {
	tags := []string{"tavily", "serper", "duckduckgo", "indiamart", "alibaba", "made-in-china", "thomasnet", "europages"}
	var adapters []Adapter
	for _, tag := range tags {
		adapters = append(adapters, &stubAdapter{tag: tag})
	}
	agg := NewAggregator(adapters, time.Second, time.Second)

	cases := []struct {
		location string
		want     []string
	}{
		{"India", []string{"tavily", "serper", "duckduckgo", "indiamart"}},
		{"Shenzhen, China", []string{"tavily", "serper", "duckduckgo", "alibaba", "made-in-china"}},
		{"Germany", []string{"tavily", "serper", "duckduckgo", "europages"}},
		{"United States", []string{"tavily", "serper", "duckduckgo", "thomasnet"}},
		{"Global", tags},
	}
	for _, tc := range cases {
		got := agg.selectAdapters(tc.location)
		if len(got) != len(tc.want) {
			t.Fatalf("selectAdapters(%q) picked %d adapters, want %d", tc.location, len(got), len(tc.want))
		}
		for i, ad := range got {
			if ad.Tag() != tc.want[i] {
				t.Fatalf("selectAdapters(%q)[%d] = %s, want %s", tc.location, i, ad.Tag(), tc.want[i])
			}
		}
	}
}
