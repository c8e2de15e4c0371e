// Package prediction runs the request-scoped prediction pipeline:
//
//	validate -> cache lookup -> (hit: done) | (miss: infer -> normalize -> cache -> persist async -> done)
//
// Inference runs on the shared worker pool. Persistence is handed to a queue and
// never delays or fails the response.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"laptop-price-predictor/internal/cache"
	"laptop-price-predictor/internal/common"
	"laptop-price-predictor/internal/features"
	"laptop-price-predictor/internal/ml"
	"laptop-price-predictor/internal/pricing"
	"laptop-price-predictor/internal/storage"
	"laptop-price-predictor/internal/workers"
)

// MetricsInterface defines the metrics reported by the pipeline.
type MetricsInterface interface {
	PredictionsInc()
	CacheHitInc()
	CacheMissInc()
	InferenceLatencyObserve(seconds float64)
	InferenceFailuresInc()
	ValidationFailuresInc()
	ModelUnavailableInc()
	PredictedPriceObserve(price float64)
}

// ModelProvider returns the loaded model, loading it on first use.
type ModelProvider interface {
	Load(ctx context.Context) (*ml.Model, error)
}

// Result is the response of a prediction. It is immutable once built; cache
// hits return the same value, including its id.
type Result struct {
	PredictionID   string                 `json:"prediction_id"`
	PredictedPrice float64                `json:"predicted_price"`
	PriceFormatted string                 `json:"price_formatted"`
	Confidence     *float64               `json:"confidence,omitempty"`
	Features       features.FeatureRecord `json:"features"`
}

// Dependencies wires a Service.
type Dependencies struct {
	Models           ModelProvider
	Cache            *cache.Cache[*Result]
	Pool             *workers.Pool
	Repository       storage.Repository
	Persister        *Persister
	Metrics          MetricsInterface
	InferenceTimeout time.Duration
}

// Service owns the pipeline. All shared state is held here; handlers receive
// the service by reference.
type Service struct {
	models           ModelProvider
	cache            *cache.Cache[*Result]
	pool             *workers.Pool
	repo             storage.Repository
	persister        *Persister
	metrics          MetricsInterface
	stats            *Stats
	inferenceTimeout time.Duration
}

// NewService creates the pipeline service.
func NewService(deps Dependencies) *Service {
	timeout := deps.InferenceTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		models:           deps.Models,
		cache:            deps.Cache,
		pool:             deps.Pool,
		repo:             deps.Repository,
		persister:        deps.Persister,
		metrics:          deps.Metrics,
		stats:            newStats(),
		inferenceTimeout: timeout,
	}
}

// Predict validates raw, then returns a cached result or runs inference.
//
// Errors: *features.ValidationError for bad input, ErrModelUnavailable when the
// model cannot load, ErrInference when the model fails, ErrShuttingDown during
// shutdown, or ctx.Err() when the caller gives up. A cancelled caller's
// inference still completes and its result is cached.
func (s *Service) Predict(ctx context.Context, raw map[string]any) (*Result, error) {
	start := time.Now()

	rec, err := features.Validate(raw)
	if err != nil {
		s.stats.recordError()
		if s.metrics != nil {
			s.metrics.ValidationFailuresInc()
		}
		return nil, err
	}

	key := rec.Fingerprint()
	if cached, ok := s.cache.Get(key); ok {
		s.stats.recordHit(time.Since(start))
		if s.metrics != nil {
			s.metrics.CacheHitInc()
			s.metrics.PredictionsInc()
		}
		log.Info().Str("prediction_id", cached.PredictionID).Msg("Returning cached prediction")
		return cached, nil
	}
	s.stats.recordMiss()
	if s.metrics != nil {
		s.metrics.CacheMissInc()
	}

	result, err := s.infer(ctx, key, rec)
	if err != nil {
		s.stats.recordError()
		return nil, err
	}

	s.persister.Enqueue(storage.Record{
		PredictionID:     result.PredictionID,
		InputFeatures:    result.Features,
		OutputPrediction: result.PredictedPrice,
		PriceFormatted:   result.PriceFormatted,
		Timestamp:        time.Now().UTC(),
	})

	s.stats.recordPrediction(time.Since(start))
	if s.metrics != nil {
		s.metrics.PredictionsInc()
		s.metrics.PredictedPriceObserve(result.PredictedPrice)
	}
	return result, nil
}

func (s *Service) infer(ctx context.Context, key string, rec features.FeatureRecord) (*Result, error) {
	model, err := s.models.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrModelUnavailable) && s.metrics != nil {
			s.metrics.ModelUnavailableInc()
		}
		return nil, s.translatePoolErr(err)
	}

	log.Debug().Interface("features", rec).Msg("Making prediction")

	waitCtx, cancel := context.WithTimeout(ctx, s.inferenceTimeout)
	defer cancel()

	result, err := workers.Submit(waitCtx, s.pool, "inference", func() (*Result, error) {
		begin := time.Now()
		price, err := model.Predict(rec.Vector())
		if s.metrics != nil {
			s.metrics.InferenceLatencyObserve(time.Since(begin).Seconds())
		}
		if err != nil {
			if s.metrics != nil {
				s.metrics.InferenceFailuresInc()
			}
			return nil, fmt.Errorf("%w: %w", ErrInference, err)
		}

		price = pricing.ServiceLayer.Normalize(price)
		result := &Result{
			PredictionID:   uuid.NewString(),
			PredictedPrice: price,
			PriceFormatted: pricing.Format(price),
			Features:       rec,
		}
		s.cache.Set(key, result)
		return result, nil
	})
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: no result within %s", ErrInference, s.inferenceTimeout)
		}
		if errors.Is(err, ErrInference) {
			log.Error().Err(err).Msg("Prediction failed")
		}
		return nil, s.translatePoolErr(err)
	}
	return result, nil
}

func (s *Service) translatePoolErr(err error) error {
	if errors.Is(err, workers.ErrPoolClosed) {
		return fmt.Errorf("%w: %w", ErrShuttingDown, err)
	}
	return err
}

// History returns the most recent persisted predictions, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]storage.Record, error) {
	if limit <= 0 {
		limit = common.DefaultHistoryLimit
	}
	return s.repo.FindAll(ctx, limit, 0)
}

// Get returns one persisted prediction or storage.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*storage.Record, error) {
	return s.repo.FindByID(ctx, id)
}

// ClearCache drops every cached result.
func (s *Service) ClearCache() {
	s.cache.Clear()
	log.Info().Msg("Prediction cache cleared")
}

// Options returns the selectable values per categorical field as seen in the
// reference dataset.
func (s *Service) Options(ctx context.Context) (map[string][]string, error) {
	model, err := s.models.Load(ctx)
	if err != nil {
		return nil, err
	}
	return model.Reference.Options(), nil
}

// Stats returns pipeline counters.
func (s *Service) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// CacheSize returns the number of cached results.
func (s *Service) CacheSize() int {
	return s.cache.Len()
}

// PoolStatus describes the inference worker pool.
type PoolStatus struct {
	Size    int                    `json:"size"`
	Active  int                    `json:"active"`
	Queued  int                    `json:"queued"`
	Workers []workers.WorkerStatus `json:"workers"`
}

// PoolStatus returns a snapshot of the inference pool.
func (s *Service) PoolStatus() PoolStatus {
	return PoolStatus{
		Size:    s.pool.Size(),
		Active:  s.pool.ActiveCount(),
		Queued:  s.pool.QueueSize(),
		Workers: s.pool.WorkerStatus(),
	}
}
