package searchidx

import (
	"testing"

	"github.com/mfg-agent/mfgagent/models"
)

func seedIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = ix.Add([]models.SupplierRecord{
		{ID: "s1", SessionID: "MFG-1", UserID: "alice", Name: "Acme Hydraulics",
			Location: "Pune, India", Products: []string{"hydraulic pumps"}, Query: "pumps"},
		{ID: "s2", SessionID: "MFG-1", UserID: "alice", Name: "Bharat Forge",
			Location: "Mumbai, India", Products: []string{"forged crankshafts"}, Query: "forgings"},
		{ID: "s3", SessionID: "MFG-2", UserID: "bob", Name: "Shenzhen Hydraulics Co",
			Location: "Shenzhen, China", Products: []string{"hydraulic valves"}, Query: "valves"},
		{ID: "", Name: "Skipped, no id"},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return ix
}

func TestSearchFiltersByOwner(t *testing.T) {
	ix := seedIndex(t)

	hits, err := ix.Search("hydraulic", "alice", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit for alice, got %d: %+v", len(hits), hits)
	}
	if hits[0].Supplier.ID != "s1" {
		t.Fatalf("hit = %+v", hits[0])
	}
	if hits[0].Rank != 1 {
		t.Fatalf("rank = %d", hits[0].Rank)
	}
}

func TestSearchNoOwnerSeesAll(t *testing.T) {
	ix := seedIndex(t)
	hits, err := ix.Search("hydraulic", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits without owner filter, got %d", len(hits))
	}
}

func TestSearchLimit(t *testing.T) {
	ix := seedIndex(t)
	hits, err := ix.Search("india", "alice", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) > 1 {
		t.Fatalf("limit not enforced: %d hits", len(hits))
	}
}

func TestRemoveSession(t *testing.T) {
	ix := seedIndex(t)
	if err := ix.Remove("MFG-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	hits, err := ix.Search("hydraulic", "alice", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits after session removal, got %d", len(hits))
	}
	// other sessions untouched
	hits, _ = ix.Search("hydraulic", "bob", 10)
	if len(hits) != 1 {
		t.Fatalf("bob's suppliers should survive, got %d", len(hits))
	}
}
