package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mfg-agent/mfgagent/models"
	"github.com/mfg-agent/mfgagent/provider"
)

// extractInputLimit caps the candidate JSON handed to the model.
const extractInputLimit = 12000

// extract asks the LLM to clean, dedupe and rank the raw candidate pool into
// structured supplier records. Quota exhaustion degrades to a passthrough
// reshape of the raw pool so the report stage still has material.
func (o *Orchestrator) extract(ctx context.Context, s *Session, emit func(Event)) error {
	if len(s.Pool) == 0 {
		emit(logEvent(LevelWarn, "no candidates to extract"))
		s.Suppliers = nil
		emit(Event{Type: EventSuppliers, Data: []models.SupplierRecord{}})
		return nil
	}
	emit(logEvent(LevelInfo, "extracting structured data from %d candidates...", len(s.Pool)))

	payload, err := json.Marshal(s.Pool)
	if err != nil {
		return fmt.Errorf("marshal candidate pool: %w", err)
	}
	input := string(payload)
	if len(input) > extractInputLimit {
		input = input[:extractInputLimit]
	}
	input = fmt.Sprintf("Product: %s\nLocation: %s\nCandidates:\n%s", s.Product, s.Location, input)

	raw, err := o.provider.Complete(ctx, provider.PurposeExtract, input)
	if err != nil {
		if errors.Is(err, provider.ErrQuotaExceeded) {
			fallbacksEngaged.WithLabelValues(string(StageExtracting)).Inc()
			emit(logEvent(LevelWarn, "LLM quota exhausted, passing candidates through unrefined"))
			s.Suppliers = passthroughSuppliers(s)
			emit(logEvent(LevelInfo, "extracted %d suppliers (passthrough)", len(s.Suppliers)))
			emit(Event{Type: EventSuppliers, Data: s.Suppliers})
			return nil
		}
		return fmt.Errorf("extract suppliers: %w", err)
	}

	var items []map[string]interface{}
	if err := provider.ParseJSON(raw, &items); err != nil {
		return fmt.Errorf("parse extraction response: %w", err)
	}
	// the model is asked not to invent entries, but enforce the bound anyway
	if len(items) > len(s.Pool) {
		items = items[:len(s.Pool)]
	}

	knownTags := make(map[string]bool, len(o.gatherer.Tags()))
	for _, t := range o.gatherer.Tags() {
		knownTags[t] = true
	}

	suppliers := make([]models.SupplierRecord, 0, len(items))
	for _, item := range items {
		rec := models.SupplierRecord{
			ID:             uuid.NewString(),
			SessionID:      s.ID,
			UserID:         s.UserID,
			Query:          s.Query,
			Name:           str(item, "name"),
			Location:       str(item, "location"),
			Products:       strSlice(item, "products"),
			Website:        str(item, "website"),
			Contact:        str(item, "contact"),
			Description:    str(item, "description"),
			Certifications: strSlice(item, "certifications"),
			MinOrder:       str(item, "min_order"),
			Source:         str(item, "source"),
			CreatedAt:      time.Now().UTC(),
		}
		if rec.Name == "" {
			rec.Name = "Unknown"
		}
		if rec.Location == "" {
			rec.Location = s.Location
		}
		if !knownTags[rec.Source] {
			rec.Source = "search"
		}
		suppliers = append(suppliers, rec)
	}
	s.Suppliers = suppliers
	emit(logEvent(LevelSuccess, "extracted %d suppliers", len(suppliers)))
	emit(Event{Type: EventSuppliers, Data: suppliers})
	return nil
}

// passthroughSuppliers reshapes raw candidates into supplier records without
// model refinement.
func passthroughSuppliers(s *Session) []models.SupplierRecord {
	out := make([]models.SupplierRecord, 0, len(s.Pool))
	for _, c := range s.Pool {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = "Unknown"
		}
		loc := strings.TrimSpace(c.Location)
		if loc == "" {
			loc = s.Location
		}
		out = append(out, models.SupplierRecord{
			ID:             uuid.NewString(),
			SessionID:      s.ID,
			UserID:         s.UserID,
			Query:          s.Query,
			Name:           name,
			Location:       loc,
			Products:       c.Products,
			Website:        c.Website,
			Contact:        c.Contact,
			Description:    c.Description,
			Certifications: c.Certifications,
			MinOrder:       c.MinOrder,
			Source:         c.Source,
			CreatedAt:      time.Now().UTC(),
		})
	}
	return out
}

func str(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%v", v), ".0")
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

func strSlice(m map[string]interface{}, key string) []string {
	switch v := m[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if sv, ok := e.(string); ok && strings.TrimSpace(sv) != "" {
				out = append(out, strings.TrimSpace(sv))
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}
