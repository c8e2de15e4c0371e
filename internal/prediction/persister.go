package prediction

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"laptop-price-predictor/internal/storage"
	"laptop-price-predictor/internal/workers"
)

const persistTimeout = 10 * time.Second

// PersistMetrics is the subset of metrics reported by the Persister.
type PersistMetrics interface {
	PersistSuccessInc()
	PersistFailuresInc()
	PersistDroppedInc()
	PersistQueueSet(depth float64)
}

// Persister writes prediction records to the repository from a bounded queue
// drained by a single worker. Enqueue never blocks the caller.
type Persister struct {
	repo        storage.Repository
	queue       *workers.Pool
	metrics     PersistMetrics
	onPersisted func(storage.Record)
}

// NewPersister starts the persistence worker. onPersisted, if not nil, is called
// after every successful write.
func NewPersister(repo storage.Repository, queueSize int, metrics PersistMetrics, onPersisted func(storage.Record)) *Persister {
	return &Persister{
		repo:        repo,
		queue:       workers.NewPool("persistence", 1, queueSize),
		metrics:     metrics,
		onPersisted: onPersisted,
	}
}

// Enqueue hands rec to the persistence worker. It reports false when the queue
// is full or closed; the record is then dropped and the drop is logged.
func (p *Persister) Enqueue(rec storage.Record) bool {
	ok := p.queue.TryGo(workers.Task{
		Name: "persist:" + rec.PredictionID,
		Run:  func() { p.persist(rec) },
	})
	if !ok {
		log.Warn().Str("prediction_id", rec.PredictionID).Msg("Persistence queue full, dropping prediction record")
		if p.metrics != nil {
			p.metrics.PersistDroppedInc()
		}
	}
	p.reportDepth()
	return ok
}

func (p *Persister) persist(rec storage.Record) {
	defer p.reportDepth()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if _, err := p.repo.Insert(ctx, rec); err != nil {
		perr := &PersistenceError{PredictionID: rec.PredictionID, Err: err}
		log.Error().Err(perr).Msg("Error saving prediction")
		if p.metrics != nil {
			p.metrics.PersistFailuresInc()
		}
		return
	}

	log.Info().Str("prediction_id", rec.PredictionID).Msg("Prediction saved")
	if p.metrics != nil {
		p.metrics.PersistSuccessInc()
	}
	if p.onPersisted != nil {
		p.onPersisted(rec)
	}
}

func (p *Persister) reportDepth() {
	if p.metrics != nil {
		p.metrics.PersistQueueSet(float64(p.queue.QueueSize()))
	}
}

// Pending returns the number of records waiting to be written.
func (p *Persister) Pending() int {
	return p.queue.QueueSize() + p.queue.ActiveCount()
}

// Shutdown stops accepting records and waits for queued writes to finish.
func (p *Persister) Shutdown(ctx context.Context) error {
	return p.queue.Shutdown(ctx)
}
