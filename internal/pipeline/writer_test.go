package pipeline

import (
	"strings"
	"testing"

	"github.com/mfg-agent/mfgagent/models"
)

func TestTemplatedReport(t *testing.T) {
	s := NewSession("find gears", "user-1")
	s.Product = "industrial gears"
	s.Location = "Germany"
	s.Suppliers = []models.SupplierRecord{
		{
			Name:           "Zahnrad GmbH",
			Location:       "Stuttgart, Germany",
			Products:       []string{"spur gears", "helical gears"},
			Website:        "https://zahnrad.example",
			Contact:        "info@zahnrad.example",
			Certifications: []string{"ISO 9001"},
			MinOrder:       "500 units",
			Source:         "europages",
		},
		{Name: "Pipe | Co", Location: "Berlin", Source: "duckduckgo"},
	}

	report := templatedReport(s)

	for _, want := range []string{
		"# Supplier Sourcing Report: industrial gears",
		"**Suppliers found:** 2",
		"Zahnrad GmbH",
		"spur gears, helical gears",
		"ISO 9001",
		"500 units",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
	// pipes in names must not break the markdown table
	if strings.Contains(report, "| Pipe | Co |") {
		t.Fatalf("unescaped pipe in table cell:\n%s", report)
	}
	if !strings.Contains(report, "Pipe / Co") {
		t.Fatalf("expected escaped supplier name in report:\n%s", report)
	}
}

func TestCellEscaping(t *testing.T) {
	if got := cell(""); got != "-" {
		t.Fatalf("cell(\"\") = %q, want -", got)
	}
	if got := cell("a|b\nc"); got != "a/b c" {
		t.Fatalf("cell = %q", got)
	}
}
