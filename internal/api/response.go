package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"laptop-price-predictor/internal/features"
	"laptop-price-predictor/internal/prediction"
	"laptop-price-predictor/internal/storage"
)

// statusClientClosedRequest is reported when the caller went away before the
// result was ready.
const statusClientClosedRequest = 499

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Detail     string               `json:"detail"`
	Violations []features.Violation `json:"violations,omitempty"`
	RequestID  string               `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail, RequestID: requestIDFrom(r.Context())})
}

// writeServiceError maps pipeline and storage errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *features.ValidationError
		bad  badRequestError
	)
	switch {
	case errors.As(err, &bad):
		writeError(w, r, http.StatusBadRequest, bad.Error())
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Detail:     "invalid laptop features",
			Violations: verr.Violations,
			RequestID:  requestIDFrom(r.Context()),
		})
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Prediction not found")
	case errors.Is(err, prediction.ErrModelUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, prediction.ErrShuttingDown):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, prediction.ErrInference):
		writeError(w, r, http.StatusInternalServerError, "Prediction failed: "+err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, r, statusClientClosedRequest, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "request timed out")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, err.Error())
	}
}

// intQuery parses an integer query parameter. A missing parameter yields def;
// a malformed or out of range one is reported as an error detail.
func intQuery(r *http.Request, name string, def, lo, hi int) (int, string) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, ""
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, name + " must be an integer"
	}
	if n < lo || n > hi {
		return 0, name + " must be between " + strconv.Itoa(lo) + " and " + strconv.Itoa(hi)
	}
	return n, ""
}

func floatQuery(r *http.Request, name string, def float64) (float64, string) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, ""
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, name + " must be a number"
	}
	if f < 0 {
		return 0, name + " cannot be negative"
	}
	return f, ""
}
