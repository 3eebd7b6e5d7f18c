package grading

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "artdirector",
		Subsystem: "grading",
		Name:      "jobs_total",
		Help:      "Grading jobs by terminal outcome",
	}, []string{"outcome"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "artdirector",
		Subsystem: "grading",
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual grading stages",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	stagerPolls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "artdirector",
		Subsystem: "grading",
		Name:      "stager_polls_total",
		Help:      "Number of provider status polls issued by the remote file stager",
	})

	cleanupFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "artdirector",
		Subsystem: "grading",
		Name:      "cleanup_failures_total",
		Help:      "Best-effort cleanup failures by resource",
	}, []string{"resource"})
)
