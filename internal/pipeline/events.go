package pipeline

import (
	"fmt"
	"time"

	"github.com/mfg-agent/mfgagent/models"
)

// EventType discriminates progress events on a session's stream.
type EventType string

const (
	EventSession   EventType = "session"
	EventLog       EventType = "log"
	EventSuppliers EventType = "suppliers"
	EventDone      EventType = "done"
	EventStopped   EventType = "stopped"
)

// Level classifies log events for the consumer.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
	LevelAgent   Level = "agent"
	LevelSystem  Level = "system"
)

// DoneMeta accompanies the terminal done event.
type DoneMeta struct {
	SessionID      string   `json:"session_id"`
	ElapsedSeconds float64  `json:"elapsed_seconds"`
	SuppliersFound int      `json:"suppliers_found"`
	SourcesUsed    []string `json:"sources_used"`
}

// Event is one unit of the progress stream for a session. Exactly one session
// event opens every run; exactly one of done/stopped/error-log closes it.
type Event struct {
	Type      EventType               `json:"type"`
	SessionID string                  `json:"session_id,omitempty"`
	Level     Level                   `json:"level,omitempty"`
	Message   string                  `json:"message,omitempty"`
	TS        string                  `json:"ts,omitempty"`
	Data      []models.SupplierRecord `json:"data,omitempty"`
	Report    string                  `json:"report,omitempty"`
	Meta      *DoneMeta               `json:"meta,omitempty"`
}

func logEvent(level Level, format string, args ...interface{}) Event {
	return Event{
		Type:    EventLog,
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		TS:      time.Now().UTC().Format(time.RFC3339),
	}
}
