package provider

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
)

// Purpose selects a fixed prompt template for a completion.
type Purpose string

const (
	PurposeParse   Purpose = "parse"   // query → (product, location)
	PurposeExtract Purpose = "extract" // candidate pool → supplier list
	PurposeWrite   Purpose = "write"   // supplier list → narrative report
)

// ErrQuotaExceeded marks a rate-limit/quota failure from the upstream model.
// Stages treat it as recoverable and engage their fallback; every other error
// propagates. The gateway never retries internally, the quota window does not
// reset within a single run.
var ErrQuotaExceeded = errors.New("llm quota exceeded")

// Provider is the single capability boundary for all model completions.
// Implementations must be stateless between invocations and safe for
// concurrent use.
type Provider interface {
	Complete(ctx context.Context, purpose Purpose, input string) (string, error)
	Model() string
}

var (
	fenceRe = regexp.MustCompile("```(?:json)?|```")
	blobRe  = regexp.MustCompile(`(?s)(\[.*\]|\{.*\})`)
)

// ParseJSON strips markdown fences and unmarshals the first JSON object or
// array found in raw model output into v.
func ParseJSON(raw string, v interface{}) error {
	clean := fenceRe.ReplaceAllString(raw, "")
	if err := json.Unmarshal([]byte(clean), v); err == nil {
		return nil
	}
	m := blobRe.FindString(clean)
	if m == "" {
		return errors.New("no JSON object or array in model output")
	}
	return json.Unmarshal([]byte(m), v)
}
