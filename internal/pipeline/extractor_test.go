package pipeline

import (
	"testing"

	"github.com/mfg-agent/mfgagent/models"
)

func TestPassthroughSuppliers(t *testing.T) {
	s := NewSession("q", "user-1")
	s.Location = "India"
	s.Pool = []models.RawCandidate{
		{Name: "Acme", Location: "Pune", Source: "indiamart"},
		{Name: "", Location: "", Description: "scraped blob", Source: "duckduckgo"},
	}

	got := passthroughSuppliers(s)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Name != "Acme" || got[0].Location != "Pune" {
		t.Fatalf("first record mangled: %+v", got[0])
	}
	if got[1].Name != "Unknown" {
		t.Fatalf("empty name should default to Unknown, got %q", got[1].Name)
	}
	if got[1].Location != "India" {
		t.Fatalf("empty location should inherit session location, got %q", got[1].Location)
	}
	for _, r := range got {
		if r.ID == "" || r.SessionID != s.ID || r.UserID != "user-1" {
			t.Fatalf("record missing identity fields: %+v", r)
		}
	}
}

func TestStrCoercion(t *testing.T) {
	m := map[string]interface{}{
		"a": " text ",
		"b": float64(42),
		"c": nil,
		"d": true,
	}
	if got := str(m, "a"); got != "text" {
		t.Fatalf("str string = %q", got)
	}
	if got := str(m, "b"); got != "42" {
		t.Fatalf("str number = %q", got)
	}
	if got := str(m, "c"); got != "" {
		t.Fatalf("str nil = %q", got)
	}
	if got := str(m, "missing"); got != "" {
		t.Fatalf("str missing = %q", got)
	}
}

func TestStrSliceCoercion(t *testing.T) {
	m := map[string]interface{}{
		"list":  []interface{}{"ISO 9001", " CE ", ""},
		"comma": "a, b,  c",
		"nil":   nil,
	}
	if got := strSlice(m, "list"); len(got) != 2 || got[0] != "ISO 9001" || got[1] != "CE" {
		t.Fatalf("strSlice list = %v", got)
	}
	if got := strSlice(m, "comma"); len(got) != 3 || got[2] != "c" {
		t.Fatalf("strSlice comma = %v", got)
	}
	if got := strSlice(m, "nil"); got != nil {
		t.Fatalf("strSlice nil = %v", got)
	}
}
