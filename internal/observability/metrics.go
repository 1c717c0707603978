package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fire_detect"

// Metrics holds the Prometheus counters, histograms, and gauges for the detection service.
type Metrics struct {
	JobsSubmitted   prometheus.Counter
	JobsCompleted   prometheus.Counter
	JobsFailed      prometheus.Counter
	InvalidRequests prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Per-job results.
	DetectionsPerJob   prometheus.Histogram
	ProcessingDuration prometheus.Histogram
	QueueWaitDuration  prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.JobsSubmitted,
		m.JobsCompleted,
		m.JobsFailed,
		m.InvalidRequests,
		m.PipelineRunning,
		m.DetectionsPerJob,
		m.ProcessingDuration,
		m.QueueWaitDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeEnabled,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Detection jobs accepted by the API.",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Detection jobs that produced a result.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Detection jobs that ended in the failed state.",
		}),
		InvalidRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_requests_total",
			Help:      "Submissions rejected for invalid parameters.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the processing pipeline is active, 0 when shut down.",
		}),
		DetectionsPerJob: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detections_per_job",
			Help:      "Number of detections in each completed result.",
			Buckets:   []float64{0, 1, 2, 3, 4},
		}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Time spent producing one detection result.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		QueueWaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_duration_seconds",
			Help:      "Time between submission and the start of processing.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when detection locations are reverse geocoded, 0 otherwise.",
		}),
	}
}
