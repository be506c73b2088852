package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mfg-agent/mfgagent/provider"
)

// write synthesizes the markdown sourcing report from the extracted
// suppliers. An empty supplier set short-circuits to a fixed message; quota
// exhaustion degrades to a templated table built from the records directly.
func (o *Orchestrator) write(ctx context.Context, s *Session, emit func(Event)) error {
	if len(s.Suppliers) == 0 {
		s.Report = "_No suppliers found. Try broadening your search._"
		emit(logEvent(LevelWarn, "no suppliers to report on"))
		return nil
	}
	emit(logEvent(LevelInfo, "writing sourcing report for %d suppliers...", len(s.Suppliers)))

	payload, err := json.Marshal(s.Suppliers)
	if err != nil {
		return fmt.Errorf("marshal suppliers: %w", err)
	}
	input := fmt.Sprintf("Product: %s\nLocation: %s\nSuppliers:\n%s", s.Product, s.Location, payload)

	report, err := o.provider.Complete(ctx, provider.PurposeWrite, input)
	if err != nil {
		if errors.Is(err, provider.ErrQuotaExceeded) {
			fallbacksEngaged.WithLabelValues(string(StageWriting)).Inc()
			emit(logEvent(LevelWarn, "LLM quota exhausted, generating templated report"))
			s.Report = templatedReport(s)
			return nil
		}
		return fmt.Errorf("write report: %w", err)
	}
	s.Report = strings.TrimSpace(report)
	if s.Report == "" {
		s.Report = templatedReport(s)
	}
	emit(logEvent(LevelSuccess, "report ready (%d chars)", len(s.Report)))
	return nil
}

// templatedReport renders the suppliers as a plain markdown document without
// model involvement.
func templatedReport(s *Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Supplier Sourcing Report: %s\n\n", s.Product)
	fmt.Fprintf(&b, "**Target region:** %s  \n", s.Location)
	fmt.Fprintf(&b, "**Suppliers found:** %d  \n", len(s.Suppliers))
	fmt.Fprintf(&b, "**Generated:** %s\n\n", time.Now().UTC().Format("2006-01-02 15:04 UTC"))
	b.WriteString("## Suppliers\n\n")
	b.WriteString("| # | Name | Location | Products | Website | Source |\n")
	b.WriteString("|---|------|----------|----------|---------|--------|\n")
	for i, sup := range s.Suppliers {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
			i+1, cell(sup.Name), cell(sup.Location), cell(strings.Join(sup.Products, ", ")),
			cell(sup.Website), cell(sup.Source))
	}
	b.WriteString("\n## Details\n\n")
	for i, sup := range s.Suppliers {
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, sup.Name)
		writeDetail(&b, "Location", sup.Location)
		writeDetail(&b, "Products", strings.Join(sup.Products, ", "))
		writeDetail(&b, "Contact", sup.Contact)
		writeDetail(&b, "Website", sup.Website)
		writeDetail(&b, "Certifications", strings.Join(sup.Certifications, ", "))
		writeDetail(&b, "Minimum order", sup.MinOrder)
		if sup.Description != "" {
			fmt.Fprintf(&b, "\n%s\n", sup.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("---\n_Report generated without model synthesis due to provider quota limits._\n")
	return b.String()
}

func writeDetail(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "- **%s:** %s\n", label, value)
}

// cell keeps supplier text from breaking the markdown table.
func cell(v string) string {
	v = strings.ReplaceAll(v, "|", "/")
	v = strings.ReplaceAll(v, "\n", " ")
	if v == "" {
		return "-"
	}
	return v
}
