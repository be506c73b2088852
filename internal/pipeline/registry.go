package pipeline

import (
	"context"
	"sync"

	"github.com/mfg-agent/mfgagent/models"
)

// DefaultReportCapacity bounds the in-process report cache.
const DefaultReportCapacity = 50

type activeRun struct {
	sess   *Session
	cancel context.CancelFunc
}

// Registry is the process-wide mapping of active session id to its
// cancellation handle, plus a bounded cache of completed reports. It is the
// only mutable state shared across sessions and is passed explicitly to the
// components that need session lookup.
type Registry struct {
	mu       sync.Mutex
	active   map[string]*activeRun
	reports  map[string]models.ReportRecord
	order    []string // report insertion order, oldest first
	capacity int
}

// NewRegistry creates a registry whose report cache holds at most capacity
// entries (DefaultReportCapacity when <= 0), evicting the oldest-created.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultReportCapacity
	}
	return &Registry{
		active:   make(map[string]*activeRun),
		reports:  make(map[string]models.ReportRecord),
		capacity: capacity,
	}
}

func (r *Registry) add(s *Session, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[s.ID] = &activeRun{sess: s, cancel: cancel}
}

func (r *Registry) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.active[id]; ok {
		a.cancel()
		delete(r.active, id)
	}
}

// Stop sets the cancellation flag for an active session. Unknown or already
// terminal sessions are a no-op, not an error.
func (r *Registry) Stop(id string) bool {
	r.mu.Lock()
	a, ok := r.active[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	a.cancel()
	return true
}

// Active returns the running session for id, if any.
func (r *Registry) Active(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.active[id]
	if !ok {
		return nil, false
	}
	return a.sess, true
}

// ActiveCount returns the number of sessions currently running.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// StoreReport caches a completed report, evicting the oldest-created entry
// once capacity is exceeded.
func (r *Registry) StoreReport(rec models.ReportRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.reports[rec.SessionID]; !exists {
		if len(r.order) >= r.capacity {
			oldest := r.order[0]
			r.order = r.order[1:]
			delete(r.reports, oldest)
		}
		r.order = append(r.order, rec.SessionID)
	}
	r.reports[rec.SessionID] = rec
}

// Report returns a cached report by session id.
func (r *Registry) Report(id string) (models.ReportRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.reports[id]
	return rec, ok
}

// DeleteReport removes a cached report, if present.
func (r *Registry) DeleteReport(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reports[id]; !ok {
		return
	}
	delete(r.reports, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
