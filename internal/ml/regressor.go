// Package ml loads the trained price model and its reference dataset and runs
// inference against canonical feature vectors.
//
// The serialized model is a linear regressor over log-price stored as JSON:
//
//	{
//	  "version": "2024.1",
//	  "trained_at": "2024-03-01T00:00:00Z",
//	  "target": "log",
//	  "intercept": 9.2,
//	  "numeric": {"Ram": 0.03, "ppi": 0.003},
//	  "categorical": {"Company": {"Dell": 0.05}}
//	}
//
// Categorical values missing from the artifact contribute nothing, which makes
// them behave like the baseline category of a one-hot encoding.
package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"laptop-price-predictor/internal/features"
)

// Regressor maps a feature vector to a scalar. Implementations must be safe for
// concurrent use once constructed.
type Regressor interface {
	Predict(v features.Vector) (float64, error)
}

// ModelMetadata describes the loaded artifact.
type ModelMetadata struct {
	Version      string    `json:"version"`
	TrainedAt    time.Time `json:"trained_at"`
	Target       string    `json:"target"`
	Coefficients int       `json:"coefficients"`
}

// LinearModel is a read-only linear regressor.
type LinearModel struct {
	meta        ModelMetadata
	intercept   float64
	numeric     map[string]float64
	categorical map[string]map[string]float64
}

type linearArtifact struct {
	Version     string                        `json:"version"`
	TrainedAt   time.Time                     `json:"trained_at"`
	Target      string                        `json:"target"`
	Intercept   float64                       `json:"intercept"`
	Numeric     map[string]float64            `json:"numeric"`
	Categorical map[string]map[string]float64 `json:"categorical"`
}

var (
	numericColumns = map[string]bool{
		features.ColRAM: true, features.ColWeight: true, features.ColTouchscreen: true,
		features.ColIPS: true, features.ColPPI: true, features.ColHDD: true, features.ColSSD: true,
	}
	categoricalColumns = map[string]bool{
		features.ColCompany: true, features.ColTypeName: true, features.ColCPUBrand: true,
		features.ColGPUBrand: true, features.ColOS: true,
	}
)

// LoadLinearModel reads and checks a model artifact.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	var art linearArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}

	return newLinearModel(art)
}

func newLinearModel(art linearArtifact) (*LinearModel, error) {
	switch art.Target {
	case "", "log", "price":
	default:
		return nil, fmt.Errorf("unsupported model target %q", art.Target)
	}
	if math.IsNaN(art.Intercept) || math.IsInf(art.Intercept, 0) {
		return nil, errors.New("model intercept is not finite")
	}

	count := 0
	for col, w := range art.Numeric {
		if !numericColumns[col] {
			return nil, fmt.Errorf("unknown numeric column %q", col)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("coefficient for %q is not finite", col)
		}
		count++
	}
	for col, levels := range art.Categorical {
		if !categoricalColumns[col] {
			return nil, fmt.Errorf("unknown categorical column %q", col)
		}
		count += len(levels)
	}
	if count == 0 {
		return nil, errors.New("model has no coefficients")
	}

	target := art.Target
	if target == "" {
		target = "log"
	}

	return &LinearModel{
		meta: ModelMetadata{
			Version:      art.Version,
			TrainedAt:    art.TrainedAt,
			Target:       target,
			Coefficients: count,
		},
		intercept:   art.Intercept,
		numeric:     art.Numeric,
		categorical: art.Categorical,
	}, nil
}

// Predict returns the raw model output. For a log target this is log-price;
// price normalization is applied by the caller.
func (m *LinearModel) Predict(v features.Vector) (float64, error) {
	if len(v) == 0 {
		return 0, errors.New("empty feature vector")
	}

	sum := m.intercept
	for _, col := range v {
		if col.Categorical {
			sum += m.categorical[col.Name][col.Category]
			continue
		}
		if math.IsNaN(col.Value) || math.IsInf(col.Value, 0) {
			return 0, fmt.Errorf("column %q has non-finite value", col.Name)
		}
		sum += m.numeric[col.Name] * col.Value
	}

	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, errors.New("model produced a non-finite value")
	}
	return sum, nil
}

// Metadata returns a copy of the artifact description.
func (m *LinearModel) Metadata() ModelMetadata {
	return m.meta
}
