package prediction

import (
	"errors"
	"fmt"

	"laptop-price-predictor/internal/ml"
)

var (
	// ErrModelUnavailable means the model failed to load; predictions cannot be
	// served until the process is restarted with valid artifacts.
	ErrModelUnavailable = ml.ErrModelUnavailable

	// ErrInference means the model failed while predicting. It is not retried.
	ErrInference = errors.New("inference failed")

	// ErrShuttingDown is returned once the worker pool no longer accepts work.
	ErrShuttingDown = errors.New("prediction service is shutting down")
)

// PersistenceError records a failed write of a prediction. It is logged and
// counted, never returned to a prediction caller.
type PersistenceError struct {
	PredictionID string
	Err          error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist prediction %s: %v", e.PredictionID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
