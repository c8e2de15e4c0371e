// Package storage persists prediction records. Two engines are available:
// BoltDB (the default) and SQLite, both behind the Repository interface.
//
// Records are independent of the in-memory result cache; the prediction
// pipeline only inserts, while history and admin views read, filter, update,
// delete and aggregate.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/google/uuid"

	"laptop-price-predictor/internal/common"
	"laptop-price-predictor/internal/features"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("prediction not found")

// Record is a persisted prediction.
type Record struct {
	PredictionID     string                 `json:"prediction_id"`
	InputFeatures    features.FeatureRecord `json:"input_features"`
	OutputPrediction float64                `json:"output_prediction"`
	PriceFormatted   string                 `json:"price_formatted"`
	Timestamp        time.Time              `json:"timestamp"`
	UpdatedAt        *time.Time             `json:"updated_at,omitempty"`
}

// RecordUpdate lists the mutable fields of a record. Nil fields are left unchanged.
type RecordUpdate struct {
	InputFeatures    *features.FeatureRecord `json:"input_features,omitempty"`
	OutputPrediction *float64                `json:"output_prediction,omitempty"`
	PriceFormatted   *string                 `json:"price_formatted,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u RecordUpdate) Empty() bool {
	return u.InputFeatures == nil && u.OutputPrediction == nil && u.PriceFormatted == nil
}

func (u RecordUpdate) apply(r *Record, now time.Time) {
	if u.InputFeatures != nil {
		r.InputFeatures = *u.InputFeatures
	}
	if u.OutputPrediction != nil {
		r.OutputPrediction = *u.OutputPrediction
	}
	if u.PriceFormatted != nil {
		r.PriceFormatted = *u.PriceFormatted
	}
	r.UpdatedAt = &now
}

// CompanyStats aggregates predictions of one manufacturer.
type CompanyStats struct {
	Company  string  `json:"company"`
	Count    int     `json:"count"`
	AvgPrice float64 `json:"avg_price"`
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
}

// PriceStats aggregates every stored prediction. StdDevPrice is the population
// standard deviation.
type PriceStats struct {
	TotalPredictions int     `json:"total_predictions"`
	AvgPrice         float64 `json:"avg_price"`
	MinPrice         float64 `json:"min_price"`
	MaxPrice         float64 `json:"max_price"`
	StdDevPrice      float64 `json:"std_dev_price"`
}

// Repository is the durable store for prediction records. Listing methods
// return newest records first.
type Repository interface {
	Insert(ctx context.Context, rec Record) (string, error)
	FindByID(ctx context.Context, id string) (*Record, error)
	FindAll(ctx context.Context, limit, skip int) ([]Record, error)
	FindByCompany(ctx context.Context, company string, limit int) ([]Record, error)
	FindByPriceRange(ctx context.Context, minPrice, maxPrice float64, limit int) ([]Record, error)
	Update(ctx context.Context, id string, upd RecordUpdate) (*Record, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByCompany(ctx context.Context, company string) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Count(ctx context.Context) (int, error)
	CompanyStats(ctx context.Context) ([]CompanyStats, error)
	PriceStats(ctx context.Context) (PriceStats, error)
	Close() error
}

var collectionPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// Open creates the data directory if needed and opens the configured engine.
func Open(driver, dir, collection string) (Repository, error) {
	if !collectionPattern.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	switch driver {
	case common.StoreDriverBolt:
		return NewBoltStore(dir, collection)
	case common.StoreDriverSQLite:
		return NewSQLiteStore(dir, collection)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// prepareInsert fills in the id and timestamp when the caller left them empty.
func prepareInsert(rec *Record) {
	if rec.PredictionID == "" {
		rec.PredictionID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
}
