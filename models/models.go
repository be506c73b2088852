package models

import "time"

// RawCandidate is a supplier lead as it comes off a single source adapter,
// before extraction has normalized it. Fields are best-effort; only Source is
// guaranteed to be set.
type RawCandidate struct {
	Name           string   `json:"name"`
	Location       string   `json:"location"`
	Products       []string `json:"products,omitempty"`
	Website        string   `json:"website,omitempty"`
	Contact        string   `json:"contact,omitempty"`
	Description    string   `json:"description,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	MinOrder       string   `json:"min_order,omitempty"`
	Source         string   `json:"source"`
}

// SupplierRecord is a normalized supplier produced by the extraction stage.
// Records are immutable once created; corrections produce a new record.
type SupplierRecord struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id,omitempty"`
	Query          string    `json:"query,omitempty"`
	Name           string    `json:"name"`
	Location       string    `json:"location"`
	Products       []string  `json:"products,omitempty"`
	Website        string    `json:"website,omitempty"`
	Contact        string    `json:"contact,omitempty"`
	Description    string    `json:"description,omitempty"`
	Certifications []string  `json:"certifications,omitempty"`
	MinOrder       string    `json:"min_order,omitempty"`
	Source         string    `json:"source"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// ReportRecord is the synthesized output of one session, created exactly once
// when the writing stage finishes (on either the model or the fallback path).
type ReportRecord struct {
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	Query          string    `json:"query"`
	Product        string    `json:"product"`
	Location       string    `json:"location"`
	ReportText     string    `json:"report_text"`
	SuppliersFound int       `json:"suppliers_found"`
	SourcesUsed    []string  `json:"sources_used"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryEntry is one row of a user's query history.
type HistoryEntry struct {
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}
