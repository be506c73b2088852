package pipeline

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/mfg-agent/mfgagent/models"
	"github.com/mfg-agent/mfgagent/provider"
)

// Gatherer is the scrape aggregator contract as the orchestrator sees it:
// run the selected adapters for (product, location), report per-source
// progress through logf, and return whatever arrived before the deadline.
// It never fails; adapter failures are logged, not propagated.
type Gatherer interface {
	Gather(ctx context.Context, product, location string, logf func(level Level, format string, args ...interface{})) ([]models.RawCandidate, []string)
	Tags() []string
}

// Orchestrator sequences the four stages for one session, owns session state
// and cancellation, and emits progress events. Each call to Start is an
// independent run; concurrent runs share only the provider and the registry.
type Orchestrator struct {
	provider provider.Provider
	gatherer Gatherer
	registry *Registry
	logger   *log.Logger
}

// NewOrchestrator wires the pipeline core.
func NewOrchestrator(p provider.Provider, g Gatherer, r *Registry, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	return &Orchestrator{provider: p, gatherer: g, registry: r, logger: logger}
}

// Registry exposes the session registry for the control surface.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Start launches one pipeline run and returns its event stream. The channel
// is closed when the run reaches a terminal state. Cancelling ctx, or calling
// Registry().Stop with the session id from the first event, stops the run at
// the next stage boundary.
func (o *Orchestrator) Start(ctx context.Context, query, userID string) <-chan Event {
	runCtx, cancel := context.WithCancel(ctx)
	sess := NewSession(query, userID)
	o.registry.add(sess, cancel)

	events := make(chan Event, 256)
	go o.run(runCtx, sess, events)
	return events
}

func (o *Orchestrator) run(ctx context.Context, s *Session, events chan<- Event) {
	defer close(events)
	defer o.registry.release(s.ID)

	emit := func(ev Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
			// consumer may be gone; deliver best-effort so terminal events
			// still land in the buffer
			select {
			case events <- ev:
			default:
			}
		}
	}

	start := time.Now()
	runsStarted.Inc()
	emit(Event{Type: EventSession, SessionID: s.ID})
	emit(logEvent(LevelSystem, "SESSION : %s", s.ID))
	emit(logEvent(LevelSystem, "QUERY   : %s", s.Query))
	emit(logEvent(LevelSystem, "MODEL   : %s", o.provider.Model()))

	type stageFn struct {
		stage Stage
		run   func(context.Context, *Session, func(Event)) error
	}
	stages := []stageFn{
		{StageParsing, o.parseQuery},
		{StageScraping, o.scrape},
		{StageExtracting, o.extract},
		{StageWriting, o.write},
	}

	for _, st := range stages {
		if ctx.Err() != nil {
			o.finishStopped(s, emit)
			return
		}
		s.setStage(st.stage)
		emit(logEvent(LevelAgent, "── %s ──", st.stage))
		if err := st.run(ctx, s, emit); err != nil {
			if errors.Is(err, context.Canceled) || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil) {
				o.finishStopped(s, emit)
				return
			}
			o.finishError(s, emit, err)
			return
		}
	}
	if ctx.Err() != nil {
		o.finishStopped(s, emit)
		return
	}

	s.Elapsed = math.Round(time.Since(start).Seconds()*10) / 10
	s.setStage(StageDone)
	runsCompleted.Inc()

	rec := models.ReportRecord{
		SessionID:      s.ID,
		UserID:         s.UserID,
		Query:          s.Query,
		Product:        s.Product,
		Location:       s.Location,
		ReportText:     s.Report,
		SuppliersFound: len(s.Suppliers),
		SourcesUsed:    s.SourcesUsed,
		ElapsedSeconds: s.Elapsed,
		CreatedAt:      time.Now().UTC(),
	}
	o.registry.StoreReport(rec)

	emit(logEvent(LevelSuccess, "pipeline complete in %.1fs", s.Elapsed))
	emit(Event{Type: EventDone, Report: s.Report, Meta: &DoneMeta{
		SessionID:      s.ID,
		ElapsedSeconds: s.Elapsed,
		SuppliersFound: len(s.Suppliers),
		SourcesUsed:    s.SourcesUsed,
	}})
	o.logger.Printf("session %s done in %.1fs (%d suppliers)", s.ID, s.Elapsed, len(s.Suppliers))
}

func (o *Orchestrator) finishStopped(s *Session, emit func(Event)) {
	if !s.setStage(StageStopped) {
		return
	}
	runsStopped.Inc()
	emit(logEvent(LevelWarn, "pipeline stopped by user."))
	emit(Event{Type: EventStopped})
	o.logger.Printf("session %s stopped", s.ID)
}

func (o *Orchestrator) finishError(s *Session, emit func(Event), err error) {
	if !s.setStage(StageError) {
		return
	}
	runsErrored.Inc()
	emit(logEvent(LevelError, "pipeline error: %v", err))
	o.logger.Printf("session %s failed: %v", s.ID, err)
}

// scrape runs the aggregator. Individual adapter failures are reported on the
// event stream by the gatherer itself; a cancelled context discards whatever
// the gatherer returned.
func (o *Orchestrator) scrape(ctx context.Context, s *Session, emit func(Event)) error {
	emit(logEvent(LevelInfo, "scraping: %s suppliers manufacturers %s", s.Product, s.Location))
	logf := func(level Level, format string, args ...interface{}) {
		emit(logEvent(level, format, args...))
	}
	pool, sources := o.gatherer.Gather(ctx, s.Product, s.Location, logf)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.Pool = pool
	s.SourcesUsed = sources
	emit(logEvent(LevelSuccess, "scraping complete: %d candidates from %d sources", len(pool), len(sources)))
	return nil
}
