package prediction

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laptop-price-predictor/internal/cache"
	"laptop-price-predictor/internal/common"
	"laptop-price-predictor/internal/features"
	"laptop-price-predictor/internal/ml"
	"laptop-price-predictor/internal/pricing"
	"laptop-price-predictor/internal/storage"
	"laptop-price-predictor/internal/workers"
)

type fakeRegressor struct {
	calls atomic.Int32
	value float64
	err   error
	block chan struct{}
}

func (f *fakeRegressor) Predict(features.Vector) (float64, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.value, f.err
}

type fakeModels struct {
	model *ml.Model
	err   error
}

func (f fakeModels) Load(context.Context) (*ml.Model, error) {
	return f.model, f.err
}

type failingRepo struct {
	storage.Repository
	attempts atomic.Int32
}

func (r *failingRepo) Insert(context.Context, storage.Record) (string, error) {
	r.attempts.Add(1)
	return "", errors.New("database is down")
}

type mockMetrics struct {
	mu                 sync.Mutex
	predictions        int
	hits               int
	misses             int
	inferenceFailures  int
	validationFailures int
	unavailable        int
	persisted          int
	persistFailures    int
	dropped            int
}

func (m *mockMetrics) inc(field *int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*field++
}

func (m *mockMetrics) PredictionsInc()                 { m.inc(&m.predictions) }
func (m *mockMetrics) CacheHitInc()                    { m.inc(&m.hits) }
func (m *mockMetrics) CacheMissInc()                   { m.inc(&m.misses) }
func (m *mockMetrics) InferenceLatencyObserve(float64) {}
func (m *mockMetrics) InferenceFailuresInc()           { m.inc(&m.inferenceFailures) }
func (m *mockMetrics) ValidationFailuresInc()          { m.inc(&m.validationFailures) }
func (m *mockMetrics) ModelUnavailableInc()            { m.inc(&m.unavailable) }
func (m *mockMetrics) PredictedPriceObserve(float64)   {}
func (m *mockMetrics) PersistSuccessInc()              { m.inc(&m.persisted) }
func (m *mockMetrics) PersistFailuresInc()             { m.inc(&m.persistFailures) }
func (m *mockMetrics) PersistDroppedInc()              { m.inc(&m.dropped) }
func (m *mockMetrics) PersistQueueSet(float64)         {}

func (m *mockMetrics) get(field *int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *field
}

type harness struct {
	svc     *Service
	repo    storage.Repository
	pool    *workers.Pool
	metrics *mockMetrics
}

func newHarness(t *testing.T, models ModelProvider, repo storage.Repository) *harness {
	t.Helper()

	if repo == nil {
		var err error
		repo, err = storage.Open(common.StoreDriverBolt, t.TempDir(), "predictions")
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
	}

	pool := workers.NewPool("test", 2, 16)
	metrics := &mockMetrics{}
	persister := NewPersister(repo, 16, metrics, nil)
	t.Cleanup(func() {
		_ = persister.Shutdown(context.Background())
		_ = pool.Shutdown(context.Background())
	})

	svc := NewService(Dependencies{
		Models:           models,
		Cache:            cache.New[*Result](time.Minute),
		Pool:             pool,
		Repository:       repo,
		Persister:        persister,
		Metrics:          metrics,
		InferenceTimeout: 2 * time.Second,
	})
	return &harness{svc: svc, repo: repo, pool: pool, metrics: metrics}
}

func stubModels(reg ml.Regressor) fakeModels {
	return fakeModels{model: &ml.Model{Regressor: reg}}
}

func dellInput() map[string]any {
	return map[string]any{
		"company": "Dell", "type_name": "Notebook", "ram": 8, "weight": 2.0,
		"touchscreen": 0, "ips": 1, "ppi": 141.21, "cpu_brand": "Intel Core i5",
		"hdd": 0, "ssd": 256, "gpu_brand": "Intel", "os": "Windows",
	}
}

func TestPredict_EndToEndWithShippedModel(t *testing.T) {
	pool := workers.NewPool("loader", 1, 1)
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })
	loader := ml.NewLoader("../../models/laptop_price_model.json", "../../models/laptop_data.csv", pool, nil)

	h := newHarness(t, loader, nil)

	result, err := h.svc.Predict(context.Background(), dellInput())
	require.NoError(t, err)

	assert.NotEmpty(t, result.PredictionID)
	assert.GreaterOrEqual(t, result.PredictedPrice, 10000.0)
	assert.LessOrEqual(t, result.PredictedPrice, 500000.0)
	assert.True(t, strings.HasPrefix(result.PriceFormatted, pricing.CurrencySymbol))
	assert.Contains(t, result.PriceFormatted, ",")
	assert.Equal(t, "Dell", result.Features.Company)
	assert.Nil(t, result.Confidence)

	// persisted asynchronously under the same id
	require.Eventually(t, func() bool {
		_, err := h.svc.Get(context.Background(), result.PredictionID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	rec, err := h.svc.Get(context.Background(), result.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, result.PredictedPrice, rec.OutputPrediction)
	assert.Equal(t, result.PriceFormatted, rec.PriceFormatted)
	assert.Equal(t, result.Features, rec.InputFeatures)

	opts, err := h.svc.Options(context.Background())
	require.NoError(t, err)
	assert.Contains(t, opts[features.FieldCompany], "Dell")
}

func TestPredict_ValidationError(t *testing.T) {
	reg := &fakeRegressor{value: 10.9}
	h := newHarness(t, stubModels(reg), nil)

	in := dellInput()
	in["ram"] = 5
	in["company"] = "Nokia"

	_, err := h.svc.Predict(context.Background(), in)
	var verr *features.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 2)
	assert.Zero(t, reg.calls.Load())
	assert.Equal(t, 1, h.metrics.get(&h.metrics.validationFailures))
}

func TestPredict_CacheHitReturnsSameResult(t *testing.T) {
	reg := &fakeRegressor{value: 10.9}
	h := newHarness(t, stubModels(reg), nil)
	ctx := context.Background()

	first, err := h.svc.Predict(ctx, dellInput())
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(10.9), first.PredictedPrice, 1e-6)

	// same values, different construction order and numeric types
	reordered := map[string]any{}
	for k, v := range dellInput() {
		reordered[k] = v
	}
	reordered["ram"] = 8.0
	reordered["weight"] = 2

	second, err := h.svc.Predict(ctx, reordered)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), reg.calls.Load())
	assert.Equal(t, 1, h.metrics.get(&h.metrics.hits))
	assert.Equal(t, 1, h.metrics.get(&h.metrics.misses))

	// only the miss is persisted
	require.Eventually(t, func() bool {
		n, err := h.repo.Count(ctx)
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	snap := h.svc.Stats()
	assert.Equal(t, int64(2), snap.Predictions)
	assert.Equal(t, 0.5, snap.CacheHitRate)
}

func TestPredict_ClearCacheForcesInference(t *testing.T) {
	reg := &fakeRegressor{value: 10.9}
	h := newHarness(t, stubModels(reg), nil)
	ctx := context.Background()

	first, err := h.svc.Predict(ctx, dellInput())
	require.NoError(t, err)
	require.Equal(t, 1, h.svc.CacheSize())

	h.svc.ClearCache()
	assert.Equal(t, 0, h.svc.CacheSize())

	second, err := h.svc.Predict(ctx, dellInput())
	require.NoError(t, err)
	assert.Equal(t, int32(2), reg.calls.Load())
	assert.NotEqual(t, first.PredictionID, second.PredictionID)
	assert.Equal(t, first.PredictedPrice, second.PredictedPrice)
}

func TestPredict_ModelUnavailable(t *testing.T) {
	models := fakeModels{err: errors.Join(ml.ErrModelUnavailable, errors.New("file missing"))}
	h := newHarness(t, models, nil)

	_, err := h.svc.Predict(context.Background(), dellInput())
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, 1, h.metrics.get(&h.metrics.unavailable))
}

func TestPredict_InferenceErrorNotCached(t *testing.T) {
	reg := &fakeRegressor{err: errors.New("matrix mismatch")}
	h := newHarness(t, stubModels(reg), nil)

	_, err := h.svc.Predict(context.Background(), dellInput())
	require.ErrorIs(t, err, ErrInference)
	assert.Contains(t, err.Error(), "matrix mismatch")

	_, err = h.svc.Predict(context.Background(), dellInput())
	require.ErrorIs(t, err, ErrInference)
	assert.Equal(t, int32(2), reg.calls.Load())
	assert.Equal(t, 2, h.metrics.get(&h.metrics.inferenceFailures))
	assert.Equal(t, 0, h.svc.CacheSize())
}

func TestPredict_InferenceTimeout(t *testing.T) {
	reg := &fakeRegressor{value: 10.9, block: make(chan struct{})}
	h := newHarness(t, stubModels(reg), nil)
	h.svc.inferenceTimeout = 50 * time.Millisecond
	defer close(reg.block)

	_, err := h.svc.Predict(context.Background(), dellInput())
	assert.ErrorIs(t, err, ErrInference)
}

func TestPredict_PersistenceFailureIsSwallowed(t *testing.T) {
	repo := &failingRepo{}
	reg := &fakeRegressor{value: 10.9}
	h := newHarness(t, stubModels(reg), repo)

	result, err := h.svc.Predict(context.Background(), dellInput())
	require.NoError(t, err)
	assert.NotEmpty(t, result.PredictionID)

	require.Eventually(t, func() bool {
		return h.metrics.get(&h.metrics.persistFailures) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), repo.attempts.Load())
}

func TestPredict_CancelledRequestStillCachesResult(t *testing.T) {
	reg := &fakeRegressor{value: 10.9, block: make(chan struct{})}
	h := newHarness(t, stubModels(reg), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := h.svc.Predict(ctx, dellInput())
		errCh <- err
	}()

	require.Eventually(t, func() bool { return reg.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(reg.block)
	require.Eventually(t, func() bool { return h.svc.CacheSize() == 1 }, time.Second, 5*time.Millisecond)

	result, err := h.svc.Predict(context.Background(), dellInput())
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(10.9), result.PredictedPrice, 1e-6)
	assert.Equal(t, int32(1), reg.calls.Load())
}

func TestPredict_ConcurrentIdenticalRequests(t *testing.T) {
	reg := &fakeRegressor{value: 10.9}
	h := newHarness(t, stubModels(reg), nil)

	const n = 25
	results := make([]*Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := h.svc.Predict(context.Background(), dellInput())
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	final, err := h.svc.Predict(context.Background(), dellInput())
	require.NoError(t, err)
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, final.PredictedPrice, r.PredictedPrice)
	}
	assert.GreaterOrEqual(t, reg.calls.Load(), int32(1))
}

func TestPredict_ShuttingDown(t *testing.T) {
	reg := &fakeRegressor{value: 10.9}
	h := newHarness(t, stubModels(reg), nil)
	require.NoError(t, h.pool.Shutdown(context.Background()))

	_, err := h.svc.Predict(context.Background(), dellInput())
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestHistoryAndGet(t *testing.T) {
	reg := &fakeRegressor{value: 10.9}
	h := newHarness(t, stubModels(reg), nil)
	ctx := context.Background()

	in := dellInput()
	var ids []string
	for _, company := range []string{"Dell", "HP", "Acer"} {
		in["company"] = company
		r, err := h.svc.Predict(ctx, in)
		require.NoError(t, err)
		ids = append(ids, r.PredictionID)
	}

	require.Eventually(t, func() bool {
		recs, err := h.svc.History(ctx, 0)
		return err == nil && len(recs) == 3
	}, 2*time.Second, 10*time.Millisecond)

	recs, err := h.svc.History(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	got, err := h.svc.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "HP", got.InputFeatures.Company)

	_, err = h.svc.Get(ctx, "unknown")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPersister_DropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	repo := &blockingRepo{release: block}
	metrics := &mockMetrics{}
	p := NewPersister(repo, 1, metrics, nil)

	assert.True(t, p.Enqueue(storage.Record{PredictionID: "a"}))
	require.Eventually(t, func() bool { return repo.started.Load() }, time.Second, 5*time.Millisecond)
	assert.True(t, p.Enqueue(storage.Record{PredictionID: "b"}))
	assert.False(t, p.Enqueue(storage.Record{PredictionID: "c"}))
	assert.Equal(t, 1, metrics.get(&metrics.dropped))
	assert.Equal(t, 2, p.Pending())

	close(block)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, 2, metrics.get(&metrics.persisted))
}

func TestPersister_OnPersistedHook(t *testing.T) {
	repo, err := storage.Open(common.StoreDriverBolt, t.TempDir(), "predictions")
	require.NoError(t, err)
	defer repo.Close()

	seen := make(chan storage.Record, 1)
	p := NewPersister(repo, 4, nil, func(r storage.Record) { seen <- r })

	require.True(t, p.Enqueue(storage.Record{PredictionID: "hook", OutputPrediction: 12345}))
	select {
	case r := <-seen:
		assert.Equal(t, "hook", r.PredictionID)
	case <-time.After(2 * time.Second):
		t.Fatal("onPersisted was not called")
	}
	require.NoError(t, p.Shutdown(context.Background()))
}

type blockingRepo struct {
	storage.Repository
	release chan struct{}
	started atomic.Bool
}

func (r *blockingRepo) Insert(_ context.Context, rec storage.Record) (string, error) {
	r.started.Store(true)
	<-r.release
	return rec.PredictionID, nil
}

func TestPersistenceError(t *testing.T) {
	base := errors.New("disk full")
	err := &PersistenceError{PredictionID: "abc", Err: base}
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "persist prediction abc: disk full", err.Error())
}
