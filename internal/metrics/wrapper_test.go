package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestWrapper(t *testing.T) (*Metrics, *MetricsWrapper) {
	t.Helper()
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)
	return m, NewWrapper(m)
}

func TestNewWrapper(t *testing.T) {
	m, wrapper := newTestWrapper(t)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != m {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_CounterOperations(t *testing.T) {
	m, wrapper := newTestWrapper(t)

	tests := []struct {
		name    string
		inc     func()
		counter prometheus.Counter
	}{
		{"predictions", wrapper.PredictionsInc, m.PredictionsTotal},
		{"cache hits", wrapper.CacheHitInc, m.CacheHits},
		{"cache misses", wrapper.CacheMissInc, m.CacheMisses},
		{"inference failures", wrapper.InferenceFailuresInc, m.InferenceFailures},
		{"validation failures", wrapper.ValidationFailuresInc, m.ValidationFailures},
		{"model unavailable", wrapper.ModelUnavailableInc, m.ModelUnavailable},
		{"persist success", wrapper.PersistSuccessInc, m.PersistSuccess},
		{"persist failures", wrapper.PersistFailuresInc, m.PersistFailures},
		{"persist dropped", wrapper.PersistDroppedInc, m.PersistDropped},
		{"rate limited", wrapper.RateLimitedInc, m.RateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v := testutil.ToFloat64(tt.counter); v != 0 {
				t.Errorf("Expected initial counter value 0, got %f", v)
			}
			tt.inc()
			tt.inc()
			if v := testutil.ToFloat64(tt.counter); v != 2 {
				t.Errorf("Expected counter value 2 after two increments, got %f", v)
			}
		})
	}
}

func TestMetricsWrapper_FailuresCountAsErrors(t *testing.T) {
	m, wrapper := newTestWrapper(t)

	wrapper.InferenceFailuresInc()
	wrapper.PersistFailuresInc()
	wrapper.ModelUnavailableInc()
	wrapper.ValidationFailuresInc()

	if v := testutil.ToFloat64(m.ErrorsTotal); v != 3 {
		t.Errorf("Expected 3 errors, got %f", v)
	}
}

func TestMetricsWrapper_GaugeOperations(t *testing.T) {
	m, wrapper := newTestWrapper(t)

	wrapper.ModelStateSet(2)
	if v := testutil.ToFloat64(m.ModelState); v != 2 {
		t.Errorf("Expected model state 2, got %f", v)
	}

	wrapper.PersistQueueSet(17)
	if v := testutil.ToFloat64(m.PersistQueueDepth); v != 17 {
		t.Errorf("Expected queue depth 17, got %f", v)
	}
	wrapper.PersistQueueSet(0)
	if v := testutil.ToFloat64(m.PersistQueueDepth); v != 0 {
		t.Errorf("Expected queue depth 0, got %f", v)
	}
}

func TestMetricsWrapper_HistogramOperations(t *testing.T) {
	m, wrapper := newTestWrapper(t)

	wrapper.InferenceLatencyObserve(0.002)
	wrapper.ModelLoadObserve(0.5)
	wrapper.PredictedPriceObserve(55578.05)

	if n := testutil.CollectAndCount(m.InferenceLatency); n != 1 {
		t.Errorf("Expected 1 inference latency series, got %d", n)
	}
	if n := testutil.CollectAndCount(m.PredictedPrice); n != 1 {
		t.Errorf("Expected 1 predicted price series, got %d", n)
	}
}

func TestMetricsWrapper_HTTPRequestObserve(t *testing.T) {
	m, wrapper := newTestWrapper(t)

	wrapper.HTTPRequestObserve("/predict", "POST", 200, 0.01)
	wrapper.HTTPRequestObserve("/predict", "POST", 200, 0.02)
	wrapper.HTTPRequestObserve("/predict", "POST", 422, 0.001)

	if v := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/predict", "POST", "200")); v != 2 {
		t.Errorf("Expected 2 successful requests, got %f", v)
	}
	if v := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/predict", "POST", "422")); v != 1 {
		t.Errorf("Expected 1 rejected request, got %f", v)
	}
}

func TestGetErrorRate(t *testing.T) {
	_, wrapper := newTestWrapper(t)

	if rate := wrapper.ErrorRate(); rate != 0 {
		t.Errorf("Expected error rate 0 before any prediction, got %f", rate)
	}

	for i := 0; i < 4; i++ {
		wrapper.PredictionsInc()
	}
	wrapper.InferenceFailuresInc()

	if rate := wrapper.ErrorRate(); rate != 0.25 {
		t.Errorf("Expected error rate 0.25, got %f", rate)
	}
}

func TestGetErrorRate_NoGatherer(t *testing.T) {
	m := NewWithRegistry(registererOnly{prometheus.NewRegistry()})
	if rate := m.GetErrorRate(); rate != 0 {
		t.Errorf("Expected 0 without a gatherer, got %f", rate)
	}
}

type registererOnly struct {
	r *prometheus.Registry
}

func (r registererOnly) Register(c prometheus.Collector) error  { return r.r.Register(c) }
func (r registererOnly) MustRegister(cs ...prometheus.Collector) { r.r.MustRegister(cs...) }
func (r registererOnly) Unregister(c prometheus.Collector) bool  { return r.r.Unregister(c) }
