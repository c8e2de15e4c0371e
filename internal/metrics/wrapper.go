package metrics

import "strconv"

// MetricsWrapper adapts Metrics to the narrow interfaces consumed by the
// model loader, the prediction pipeline and the HTTP layer.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc() {
	w.m.PredictionsTotal.Inc()
}

func (w *MetricsWrapper) CacheHitInc() {
	w.m.CacheHits.Inc()
}

func (w *MetricsWrapper) CacheMissInc() {
	w.m.CacheMisses.Inc()
}

func (w *MetricsWrapper) InferenceLatencyObserve(seconds float64) {
	w.m.InferenceLatency.Observe(seconds)
}

func (w *MetricsWrapper) InferenceFailuresInc() {
	w.m.InferenceFailures.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) ValidationFailuresInc() {
	w.m.ValidationFailures.Inc()
}

func (w *MetricsWrapper) PredictedPriceObserve(price float64) {
	w.m.PredictedPrice.Observe(price)
}

func (w *MetricsWrapper) ModelLoadObserve(seconds float64) {
	w.m.ModelLoadDuration.Observe(seconds)
}

func (w *MetricsWrapper) ModelStateSet(state float64) {
	w.m.ModelState.Set(state)
}

func (w *MetricsWrapper) ModelUnavailableInc() {
	w.m.ModelUnavailable.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) PersistSuccessInc() {
	w.m.PersistSuccess.Inc()
}

func (w *MetricsWrapper) PersistFailuresInc() {
	w.m.PersistFailures.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) PersistDroppedInc() {
	w.m.PersistDropped.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) PersistQueueSet(depth float64) {
	w.m.PersistQueueDepth.Set(depth)
}

func (w *MetricsWrapper) HTTPRequestObserve(route, method string, status int, seconds float64) {
	w.m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	w.m.HTTPDuration.WithLabelValues(route).Observe(seconds)
}

func (w *MetricsWrapper) RateLimitedInc() {
	w.m.RateLimited.Inc()
}

// ErrorRate exposes Metrics.GetErrorRate for health reporting.
func (w *MetricsWrapper) ErrorRate() float64 {
	return w.m.GetErrorRate()
}
