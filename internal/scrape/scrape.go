// Package scrape fans the sourcing query out to search APIs and B2B
// directory adapters and merges whatever they return before the deadline.
package scrape

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mfg-agent/mfgagent/internal/pipeline"
	"github.com/mfg-agent/mfgagent/models"
)

// Adapter is one candidate source. An empty result is success; errors are the
// adapter's to classify, the aggregator only logs them.
type Adapter interface {
	Tag() string
	Fetch(ctx context.Context, product, location string) ([]models.RawCandidate, error)
}

// search adapters run for every region; directories are routed by location
var searchTags = map[string]bool{
	"tavily":     true,
	"serper":     true,
	"duckduckgo": true,
}

// Aggregator runs the registered adapters concurrently and merges their
// candidates, deduplicated by (name, location), in adapter registration
// order.
type Aggregator struct {
	adapters       []Adapter
	adapterTimeout time.Duration
	deadline       time.Duration
}

// NewAggregator builds an aggregator over the given adapters. adapterTimeout
// bounds each adapter call, deadline bounds the whole gather.
func NewAggregator(adapters []Adapter, adapterTimeout, deadline time.Duration) *Aggregator {
	if adapterTimeout <= 0 {
		adapterTimeout = 12 * time.Second
	}
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	return &Aggregator{adapters: adapters, adapterTimeout: adapterTimeout, deadline: deadline}
}

// Tags lists the registered adapter tags in registration order.
func (a *Aggregator) Tags() []string {
	tags := make([]string, 0, len(a.adapters))
	for _, ad := range a.adapters {
		tags = append(tags, ad.Tag())
	}
	return tags
}

// Gather runs the adapters selected for location and returns the merged,
// deduplicated candidate pool plus the tags that contributed at least one
// candidate. Adapter failures are logged through logf and never abort the
// gather.
func (a *Aggregator) Gather(ctx context.Context, product, location string, logf func(level pipeline.Level, format string, args ...interface{})) ([]models.RawCandidate, []string) {
	selected := a.selectAdapters(location)
	if len(selected) == 0 {
		logf(pipeline.LevelWarn, "no sources configured")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.deadline)
	defer cancel()

	// adapters that ignore cancellation may outlive the gather; silence their
	// logging once we return so late events never reach a finished run
	var logMu sync.Mutex
	finished := false
	slog := func(level pipeline.Level, format string, args ...interface{}) {
		logMu.Lock()
		defer logMu.Unlock()
		if finished {
			return
		}
		logf(level, format, args...)
	}
	defer func() {
		logMu.Lock()
		finished = true
		logMu.Unlock()
	}()

	type slotResult struct {
		slot  int
		cands []models.RawCandidate
	}
	resCh := make(chan slotResult, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for i, ad := range selected {
		i, ad := i, ad
		g.Go(func() error {
			actx, acancel := context.WithTimeout(gctx, a.adapterTimeout)
			defer acancel()
			slog(pipeline.LevelInfo, "  querying %s...", ad.Tag())
			cands, err := ad.Fetch(actx, product, location)
			if err != nil {
				slog(pipeline.LevelWarn, "  %s failed: %v", ad.Tag(), err)
				cands = nil
			} else if len(cands) > 0 {
				slog(pipeline.LevelSuccess, "  %s: %d candidates", ad.Tag(), len(cands))
			}
			resCh <- slotResult{slot: i, cands: cands}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(resCh)
	}()

	// join with timeout: take whatever landed before the deadline, abandon
	// the rest without awaiting them
	results := make([][]models.RawCandidate, len(selected))
	arrived := make([]bool, len(selected))
drain:
	for {
		select {
		case r, ok := <-resCh:
			if !ok {
				break drain
			}
			results[r.slot] = r.cands
			arrived[r.slot] = true
		case <-ctx.Done():
			for {
				select {
				case r, ok := <-resCh:
					if ok {
						results[r.slot] = r.cands
						arrived[r.slot] = true
						continue
					}
				default:
				}
				break
			}
			for i, ad := range selected {
				if !arrived[i] {
					logf(pipeline.LevelWarn, "  %s did not finish before the deadline, discarding", ad.Tag())
				}
			}
			break drain
		}
	}

	seen := make(map[string]bool)
	var pool []models.RawCandidate
	var sources []string
	for i, ad := range selected {
		contributed := false
		for _, c := range results[i] {
			key := strings.ToLower(strings.TrimSpace(c.Name)) + "\x00" + strings.ToLower(strings.TrimSpace(c.Location))
			if c.Name != "" && seen[key] {
				continue
			}
			seen[key] = true
			if c.Source == "" {
				c.Source = ad.Tag()
			}
			pool = append(pool, c)
			contributed = true
		}
		if contributed {
			sources = append(sources, ad.Tag())
		}
	}
	return pool, sources
}

// selectAdapters keeps all search adapters and routes directories by the
// parsed location. An unrecognized region keeps every directory.
func (a *Aggregator) selectAdapters(location string) []Adapter {
	dirs := directoriesFor(location)
	var out []Adapter
	for _, ad := range a.adapters {
		if searchTags[ad.Tag()] || dirs[ad.Tag()] {
			out = append(out, ad)
		}
	}
	return out
}

var europeanRegions = []string{
	"europe", "germany", "france", "italy", "spain", "poland", "netherlands",
	"belgium", "sweden", "austria", "switzerland", "portugal", "czech",
	"denmark", "finland", "norway", "ireland", "hungary", "romania", "greece",
	"united kingdom", "uk", "england", "britain", "turkey",
}

func directoriesFor(location string) map[string]bool {
	loc := strings.ToLower(location)
	all := map[string]bool{
		"indiamart": true, "alibaba": true, "made-in-china": true,
		"thomasnet": true, "europages": true,
	}
	switch {
	case strings.Contains(loc, "india"):
		return map[string]bool{"indiamart": true}
	case strings.Contains(loc, "china"):
		return map[string]bool{"alibaba": true, "made-in-china": true}
	case strings.Contains(loc, "usa") || strings.Contains(loc, "united states") ||
		strings.Contains(loc, "america") || strings.Contains(loc, "canada"):
		return map[string]bool{"thomasnet": true}
	}
	for _, r := range europeanRegions {
		if strings.Contains(loc, r) {
			return map[string]bool{"europages": true}
		}
	}
	return all
}
