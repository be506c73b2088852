package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mfgagent_runs_started_total",
		Help: "Pipeline runs started.",
	})
	runsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mfgagent_runs_completed_total",
		Help: "Pipeline runs that reached DONE.",
	})
	runsStopped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mfgagent_runs_stopped_total",
		Help: "Pipeline runs cancelled by the user.",
	})
	runsErrored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mfgagent_runs_errored_total",
		Help: "Pipeline runs that ended in ERROR.",
	})
	fallbacksEngaged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mfgagent_stage_fallbacks_total",
		Help: "Quota fallbacks engaged, by stage.",
	}, []string{"stage"})
)
