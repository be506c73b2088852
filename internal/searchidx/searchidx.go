// Package searchidx maintains an in-memory full-text index over extracted
// suppliers so /api/suppliers/search can answer without touching Postgres.
// The index is rebuildable from the store at any time; losing it on restart
// costs nothing but a warm-up.
package searchidx

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/mfg-agent/mfgagent/models"
)

// Hit is one search result.
type Hit struct {
	Supplier models.SupplierRecord `json:"supplier"`
	Score    float64               `json:"score"`
	Rank     int                   `json:"rank"`
}

// Index wraps a memory-only bleve index plus a metadata map for returning
// full records.
type Index struct {
	mu   sync.RWMutex
	idx  bleve.Index
	meta map[string]models.SupplierRecord
}

func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{idx: idx, meta: make(map[string]models.SupplierRecord)}, nil
}

// Add indexes the given suppliers. Records without an ID are skipped.
func (ix *Index) Add(recs []models.SupplierRecord) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	batch := ix.idx.NewBatch()
	for _, r := range recs {
		if r.ID == "" {
			continue
		}
		doc := map[string]interface{}{
			"name":        r.Name,
			"location":    r.Location,
			"products":    r.Products,
			"description": r.Description,
			"query":       r.Query,
		}
		if err := batch.Index(r.ID, doc); err != nil {
			return err
		}
		ix.meta[r.ID] = r
	}
	if err := ix.idx.Batch(batch); err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	return nil
}

// Search runs a query-string search and returns up to k hits owned by
// userID. Ownership is a post-filter, so the underlying search over-fetches.
func (ix *Index) Search(q, userID string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	res, err := ix.idx.Search(req)
	if err != nil {
		return nil, err
	}
	var out []Hit
	for _, hit := range res.Hits {
		rec, ok := ix.meta[hit.ID]
		if !ok || (userID != "" && rec.UserID != userID) {
			continue
		}
		out = append(out, Hit{Supplier: rec, Score: hit.Score, Rank: len(out) + 1})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// Remove drops all indexed suppliers belonging to a session.
func (ix *Index) Remove(sessionID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	batch := ix.idx.NewBatch()
	for id, rec := range ix.meta {
		if rec.SessionID == sessionID {
			batch.Delete(id)
			delete(ix.meta, id)
		}
	}
	return ix.idx.Batch(batch)
}
