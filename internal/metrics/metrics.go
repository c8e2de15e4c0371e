// Package metrics provides Prometheus metrics collection for the price predictor.
// It defines the pipeline, model, persistence and HTTP metrics exposed on the
// /metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the service.
type Metrics struct {
	// Prediction pipeline metrics
	PredictionsTotal   prometheus.Counter   // Total number of successful predictions
	CacheHits          prometheus.Counter   // Predictions served from the result cache
	CacheMisses        prometheus.Counter   // Predictions that required inference
	InferenceLatency   prometheus.Histogram // Inference latency in seconds
	InferenceFailures  prometheus.Counter   // Model errors during predict
	ValidationFailures prometheus.Counter   // Requests rejected by the feature validator
	PredictedPrice     prometheus.Histogram // Distribution of normalized prices

	// Model metrics
	ModelLoadDuration prometheus.Histogram // Time to load model and reference data
	ModelState        prometheus.Gauge     // 0 unloaded, 1 loading, 2 ready, 3 failed
	ModelUnavailable  prometheus.Counter   // Requests failed because the model could not load

	// Persistence metrics
	PersistSuccess    prometheus.Counter // Records written to the store
	PersistFailures   prometheus.Counter // Store writes that failed
	PersistDropped    prometheus.Counter // Records dropped because the queue was full
	PersistQueueDepth prometheus.Gauge   // Records waiting to be written

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec   // Requests by route, method and status
	HTTPDuration *prometheus.HistogramVec // Request duration by route
	RateLimited  prometheus.Counter       // Requests rejected by the rate limiter

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered

	gatherer prometheus.Gatherer
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	m := &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of successful price predictions",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_cache_hits_total",
			Help: "Total number of predictions served from the result cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_cache_misses_total",
			Help: "Total number of predictions that missed the result cache",
		}),
		InferenceLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "inference_latency_seconds",
			Help:    "Model inference latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		InferenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "inference_failures_total",
			Help: "Total number of model inference failures",
		}),
		ValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "validation_failures_total",
			Help: "Total number of requests rejected by feature validation",
		}),
		PredictedPrice: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "predicted_price",
			Help:    "Distribution of normalized predicted prices",
			Buckets: []float64{10000, 20000, 30000, 50000, 75000, 100000, 150000, 250000, 500000},
		}),
		ModelLoadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "model_load_duration_seconds",
			Help:    "Time taken to load the model and reference data",
			Buckets: prometheus.DefBuckets,
		}),
		ModelState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_state",
			Help: "Model loader state (0 unloaded, 1 loading, 2 ready, 3 failed)",
		}),
		ModelUnavailable: factory.NewCounter(prometheus.CounterOpts{
			Name: "model_unavailable_total",
			Help: "Total number of predictions failed because the model is unavailable",
		}),
		PersistSuccess: factory.NewCounter(prometheus.CounterOpts{
			Name: "persistence_success_total",
			Help: "Total number of prediction records persisted",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "persistence_failures_total",
			Help: "Total number of prediction records that failed to persist",
		}),
		PersistDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "persistence_dropped_total",
			Help: "Total number of prediction records dropped because the queue was full",
		}),
		PersistQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "persistence_queue_depth",
			Help: "Number of prediction records waiting to be persisted",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}

	if g, ok := registerer.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// GetErrorRate returns errors per successful prediction, or 0 before the first
// prediction. It reads the registry the metrics were created with.
func (m *Metrics) GetErrorRate() float64 {
	if m.gatherer == nil {
		return 0
	}

	var totalOps, totalErrors float64

	metricFamilies, err := m.gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "predictions_total":
			for _, metric := range mf.Metric {
				totalOps = metric.GetCounter().GetValue()
			}
		case "errors_total":
			for _, metric := range mf.Metric {
				totalErrors = metric.GetCounter().GetValue()
			}
		}
	}

	if totalOps == 0 {
		return 0
	}
	return totalErrors / totalOps
}
