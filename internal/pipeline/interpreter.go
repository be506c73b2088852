package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/mfg-agent/mfgagent/provider"
)

// parseQuery turns the free-text query into (product, location). The LLM does
// the real work; on quota exhaustion a keyword heuristic keeps the pipeline
// moving. Malformed LLM output is a hard error, not a fallback case.
func (o *Orchestrator) parseQuery(ctx context.Context, s *Session, emit func(Event)) error {
	emit(logEvent(LevelInfo, "interpreting query..."))

	raw, err := o.provider.Complete(ctx, provider.PurposeParse, s.Query)
	if err != nil {
		if errors.Is(err, provider.ErrQuotaExceeded) {
			fallbacksEngaged.WithLabelValues(string(StageParsing)).Inc()
			emit(logEvent(LevelWarn, "LLM quota exhausted, falling back to keyword parsing"))
			s.Product, s.Location = keywordParse(s.Query)
			emit(logEvent(LevelInfo, "parsed (keyword): product=%q location=%q", s.Product, s.Location))
			return nil
		}
		return fmt.Errorf("parse query: %w", err)
	}

	var parsed struct {
		Product  string `json:"product"`
		Location string `json:"location"`
	}
	if err := provider.ParseJSON(raw, &parsed); err != nil {
		return fmt.Errorf("parse query response: %w", err)
	}
	s.Product = strings.TrimSpace(parsed.Product)
	s.Location = strings.TrimSpace(parsed.Location)
	if s.Product == "" {
		s.Product = s.Query
	}
	if s.Location == "" {
		s.Location = "Global"
	}
	emit(logEvent(LevelInfo, "parsed: product=%q location=%q", s.Product, s.Location))
	return nil
}

var parseStopwords = map[string]bool{
	"find": true, "me": true, "top": true, "best": true, "suppliers": true,
	"supplier": true, "manufacturers": true, "manufacturer": true, "of": true,
	"in": true, "for": true, "from": true, "the": true, "a": true, "an": true,
	"need": true, "i": true, "want": true, "looking": true, "list": true,
	"get": true, "show": true, "please": true, "good": true, "with": true,
	"near": true, "and": true, "or": true, "to": true, "some": true,
}

// keywordParse is the no-LLM heuristic: the product is the query minus
// stopwords and any trailing capitalized location run; the location is that
// trailing run of capitalized tokens, defaulting to Global.
func keywordParse(query string) (product, location string) {
	fields := strings.Fields(strings.TrimSpace(query))
	if len(fields) == 0 {
		return query, "Global"
	}

	// a trailing run of capitalized words is read as the location,
	// e.g. "... in South Korea"
	locStart := len(fields)
	for i := len(fields) - 1; i >= 0; i-- {
		w := strings.TrimFunc(fields[i], unicode.IsPunct)
		if w == "" || !unicode.IsUpper([]rune(w)[0]) || parseStopwords[strings.ToLower(w)] {
			break
		}
		locStart = i
	}
	// the whole query capitalized means there is no location cue
	if locStart == 0 {
		locStart = len(fields)
	}

	var locWords []string
	for _, w := range fields[locStart:] {
		locWords = append(locWords, strings.TrimFunc(w, unicode.IsPunct))
	}
	location = strings.Join(locWords, " ")
	if location == "" {
		location = "Global"
	}

	var prodWords []string
	for _, w := range fields[:locStart] {
		w = strings.ToLower(strings.TrimFunc(w, unicode.IsPunct))
		if w == "" || parseStopwords[w] {
			continue
		}
		prodWords = append(prodWords, w)
	}
	product = strings.Join(prodWords, " ")
	if product == "" {
		product = strings.ToLower(strings.TrimSpace(query))
	}
	return product, location
}
