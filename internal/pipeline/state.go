package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mfg-agent/mfgagent/models"
)

// Stage is the orchestrator's state-machine position for a session.
type Stage string

const (
	StageInit       Stage = "INIT"
	StageParsing    Stage = "PARSING"
	StageScraping   Stage = "SCRAPING"
	StageExtracting Stage = "EXTRACTING"
	StageWriting    Stage = "WRITING"
	StageDone       Stage = "DONE"
	StageStopped    Stage = "STOPPED"
	StageError      Stage = "ERROR"
)

// Terminal reports whether no further transitions are allowed.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageStopped || s == StageError
}

// Session is the state of one pipeline run. All mutation happens on the
// orchestrator's run goroutine; the stage field is additionally read by the
// registry and guarded accordingly. Once a terminal stage is reached the
// session is immutable.
type Session struct {
	ID        string
	UserID    string
	Query     string
	StartedAt time.Time

	Product     string
	Location    string
	Pool        []models.RawCandidate
	Suppliers   []models.SupplierRecord
	SourcesUsed []string
	Report      string
	Elapsed     float64

	mu    sync.Mutex
	stage Stage
}

// NewSession creates a session in INIT for the given query and owner.
func NewSession(query, userID string) *Session {
	return &Session{
		ID:        "MFG-" + uuid.NewString(),
		UserID:    userID,
		Query:     query,
		StartedAt: time.Now().UTC(),
		stage:     StageInit,
	}
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// setStage transitions to st unless the session is already terminal.
// Returns false when the transition was refused, which is how a late result
// is prevented from overwriting STOPPED.
func (s *Session) setStage(st Stage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage.Terminal() {
		return false
	}
	s.stage = st
	return true
}
