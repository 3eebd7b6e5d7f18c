package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "artdirector",
		Subsystem: "ai",
		Name:      "inference_duration_seconds",
		Help:      "Duration of multimodal inference requests",
	}, []string{"provider", "model"})

	inferenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "artdirector",
		Subsystem: "ai",
		Name:      "inference_failures_total",
		Help:      "Number of multimodal inference failures",
	}, []string{"provider", "model"})
)
