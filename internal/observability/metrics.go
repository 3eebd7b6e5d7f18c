package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	uploadsRejectedTotal  *prometheus.CounterVec
	queueDeliveriesTotal  *prometheus.CounterVec
	statusEventsTotal     *prometheus.CounterVec
	sseClientsActive      prometheus.Gauge
	readURLCacheHitsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors shared by the API and workers.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artdirector_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "artdirector_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artdirector_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		uploadsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artdirector_uploads_rejected_total",
			Help: "Uploads rejected at intake by reason.",
		}, []string{"reason"})

		queueDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artdirector_queue_deliveries_total",
			Help: "Grading job deliveries by backend and result.",
		}, []string{"backend", "result"})

		statusEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artdirector_status_events_total",
			Help: "Terminal submission status events fanned out to subscribers.",
		}, []string{"status"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "artdirector_sse_clients_active",
			Help: "Currently connected submission status stream clients.",
		})

		readURLCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artdirector_read_url_cache_total",
			Help: "Read URL cache lookups by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			uploadsRejectedTotal,
			queueDeliveriesTotal,
			statusEventsTotal,
			sseClientsActive,
			readURLCacheHitsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// UploadsRejected exposes the intake rejection counter.
func UploadsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadsRejectedTotal
}

// QueueDeliveries exposes the job delivery counter.
func QueueDeliveries() *prometheus.CounterVec {
	RegisterMetrics()
	return queueDeliveriesTotal
}

// StatusEvents exposes the status fan-out counter.
func StatusEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return statusEventsTotal
}

// SSEClientsActive exposes the gauge of connected stream clients.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// ReadURLCache exposes the read URL cache counter.
func ReadURLCache() *prometheus.CounterVec {
	RegisterMetrics()
	return readURLCacheHitsTotal
}
