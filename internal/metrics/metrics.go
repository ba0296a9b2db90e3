package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	jobsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vidmesh_jobs_created_total",
			Help: "Total number of conversion jobs created.",
		},
	)

	jobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidmesh_jobs_finished_total",
			Help: "Total number of jobs reaching a terminal status, labeled by status and cause.",
		},
		[]string{"status", "cause"},
	)

	jobsDownloaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vidmesh_jobs_downloaded_total",
			Help: "Total number of artifacts downloaded and released.",
		},
	)

	dispatchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidmesh_dispatch_attempts_total",
			Help: "Dispatch attempts to the worker, labeled by outcome.",
		},
		[]string{"outcome"}, // 'accepted', 'retried', 'exhausted'
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			jobsCreated, jobsFinished, jobsDownloaded, dispatchAttempts,
		)
	})
}

func IncJobCreated() { jobsCreated.Inc() }

// IncJobFinished records a terminal transition. Cause distinguishes
// why a job failed ('callback', 'dispatch', 'invalid_result', 'sweep');
// completed jobs use cause 'callback'.
func IncJobFinished(status, cause string) {
	jobsFinished.WithLabelValues(status, cause).Inc()
}

func IncJobDownloaded() { jobsDownloaded.Inc() }

func IncDispatch(outcome string) {
	dispatchAttempts.WithLabelValues(outcome).Inc()
}
