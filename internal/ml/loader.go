package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"laptop-price-predictor/internal/features"
	"laptop-price-predictor/internal/pricing"
	"laptop-price-predictor/internal/workers"
)

// ErrModelUnavailable is returned when the model cannot be loaded. The process
// cannot serve predictions until it is restarted with valid artifacts.
var ErrModelUnavailable = errors.New("model unavailable")

// State is the lifecycle state of a Loader.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MetricsInterface defines the metrics the loader reports.
type MetricsInterface interface {
	ModelLoadObserve(seconds float64)
	ModelStateSet(state float64)
}

// Model bundles the loaded artifacts. It is read-only and safe for concurrent use.
type Model struct {
	Regressor Regressor
	Reference *ReferenceData
	Metadata  ModelMetadata
	LoadedAt  time.Time
}

// Predict runs the regressor and maps its raw output through the model-layer
// price normalization.
func (m *Model) Predict(v features.Vector) (float64, error) {
	raw, err := m.Regressor.Predict(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("regressor returned %v", raw)
	}
	return pricing.ModelLayer.Normalize(raw), nil
}

// Loader loads the model and reference dataset once per process. Concurrent
// callers share the in-flight load. A failed load is terminal.
type Loader struct {
	modelPath string
	dataPath  string
	pool      *workers.Pool
	metrics   MetricsInterface

	group singleflight.Group
	state atomic.Int32
	model atomic.Pointer[Model]

	mu      sync.RWMutex
	loadErr error
}

// NewLoader creates a loader in the unloaded state. Loading runs on pool.
func NewLoader(modelPath, dataPath string, pool *workers.Pool, metrics MetricsInterface) *Loader {
	return &Loader{
		modelPath: modelPath,
		dataPath:  dataPath,
		pool:      pool,
		metrics:   metrics,
	}
}

// State returns the current lifecycle state.
func (l *Loader) State() State {
	return State(l.state.Load())
}

// Err returns the load failure, if any.
func (l *Loader) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loadErr
}

// Load returns the model, loading it on first use. It returns ctx.Err() if the
// caller gives up waiting; the load itself carries on for other callers.
func (l *Loader) Load(ctx context.Context) (*Model, error) {
	if m := l.model.Load(); m != nil {
		return m, nil
	}
	if err := l.Err(); err != nil {
		return nil, err
	}

	ch := l.group.DoChan("model", func() (interface{}, error) {
		return l.load()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Model), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) load() (*Model, error) {
	// a previous flight may have finished between the fast path and DoChan
	if m := l.model.Load(); m != nil {
		return m, nil
	}
	if err := l.Err(); err != nil {
		return nil, err
	}

	l.setState(StateLoading)
	log.Info().Str("model_path", l.modelPath).Str("data_path", l.dataPath).Msg("Loading ML model")
	start := time.Now()

	m, err := workers.Submit(context.Background(), l.pool, "model-load", l.readArtifacts)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		l.mu.Lock()
		l.loadErr = err
		l.mu.Unlock()
		l.setState(StateFailed)

		log.Error().Err(err).Str("model_path", l.modelPath).Msg("Failed to load model")
		return nil, err
	}

	elapsed := time.Since(start)
	if l.metrics != nil {
		l.metrics.ModelLoadObserve(elapsed.Seconds())
	}

	l.model.Store(m)
	l.setState(StateReady)

	log.Info().
		Str("version", m.Metadata.Version).
		Int("reference_rows", m.Reference.Rows()).
		Dur("duration", elapsed).
		Msg("ML model loaded successfully")
	return m, nil
}

// readArtifacts reads the model and the dataset in parallel.
func (l *Loader) readArtifacts() (*Model, error) {
	var (
		reg *LinearModel
		ref *ReferenceData
		g   errgroup.Group
	)

	g.Go(func() error {
		var err error
		reg, err = LoadLinearModel(l.modelPath)
		return err
	})
	g.Go(func() error {
		var err error
		ref, err = LoadReferenceData(l.dataPath)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Model{
		Regressor: reg,
		Reference: ref,
		Metadata:  reg.Metadata(),
		LoadedAt:  time.Now(),
	}, nil
}

func (l *Loader) setState(s State) {
	l.state.Store(int32(s))
	if l.metrics != nil {
		l.metrics.ModelStateSet(float64(s))
	}
}

// Info summarises the loader for the model info endpoint.
func (l *Loader) Info() map[string]interface{} {
	info := map[string]interface{}{
		"state":      l.State().String(),
		"model_path": l.modelPath,
		"data_path":  l.dataPath,
	}

	if m := l.model.Load(); m != nil {
		lo, hi := m.Reference.PriceRange()
		info["version"] = m.Metadata.Version
		info["trained_at"] = m.Metadata.TrainedAt
		info["target"] = m.Metadata.Target
		info["coefficients"] = m.Metadata.Coefficients
		info["reference_rows"] = m.Reference.Rows()
		info["reference_price_min"] = lo
		info["reference_price_max"] = hi
		info["loaded_at"] = m.LoadedAt
	}
	if err := l.Err(); err != nil {
		info["error"] = err.Error()
	}
	return info
}
