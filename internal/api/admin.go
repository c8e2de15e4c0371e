package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"laptop-price-predictor/internal/features"
	"laptop-price-predictor/internal/storage"
)

const (
	adminListMaxLimit   = 1000
	adminFilterMaxLimit = 200
	adminFilterLimit    = 50
	defaultMaxPrice     = 1000000
	cleanupDefaultDays  = 30
	cleanupMaxDays      = 365
)

var updatableFields = map[string]bool{
	"input_features":    true,
	"output_prediction": true,
	"price_formatted":   true,
}

func (h *handler) adminList(w http.ResponseWriter, r *http.Request) {
	limit, msg := intQuery(r, "limit", 100, 1, adminListMaxLimit)
	if msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	skip, msg := intQuery(r, "skip", 0, 0, math.MaxInt32)
	if msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	records, err := h.repo.FindAll(r.Context(), limit, skip)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to retrieve predictions: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) adminGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.repo.FindByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) adminByCompany(w http.ResponseWriter, r *http.Request) {
	limit, msg := intQuery(r, "limit", adminFilterLimit, 1, adminFilterMaxLimit)
	if msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	records, err := h.repo.FindByCompany(r.Context(), mux.Vars(r)["company"], limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to retrieve predictions: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) adminByPriceRange(w http.ResponseWriter, r *http.Request) {
	minPrice, msg := floatQuery(r, "min_price", 0)
	if msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	maxPrice, msg := floatQuery(r, "max_price", defaultMaxPrice)
	if msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	if minPrice > maxPrice {
		writeError(w, r, http.StatusBadRequest, "min_price cannot be greater than max_price")
		return
	}
	limit, msg := intQuery(r, "limit", adminFilterLimit, 1, adminFilterMaxLimit)
	if msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	records, err := h.repo.FindByPriceRange(r.Context(), minPrice, maxPrice, limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to retrieve predictions: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) adminUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(body) == 0 {
		writeError(w, r, http.StatusBadRequest, "no fields to update")
		return
	}

	fields := make([]string, 0, len(body))
	for k := range body {
		if !updatableFields[k] {
			writeError(w, r, http.StatusBadRequest,
				"Only these fields can be updated: input_features, output_prediction, price_formatted")
			return
		}
		fields = append(fields, k)
	}
	sort.Strings(fields)

	upd, err := decodeUpdate(body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	rec, err := h.repo.Update(r.Context(), id, upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Info().Str("prediction_id", id).Strs("fields", fields).Msg("Prediction updated")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "Prediction updated successfully",
		"prediction_id":  id,
		"updated_fields": fields,
		"prediction":     rec,
	})
}

// badRequestError is a malformed request detail, answered with 400.
type badRequestError string

func (e badRequestError) Error() string { return string(e) }

// decodeUpdate converts an update body into a RecordUpdate. New input features
// go through the same validation as prediction requests.
func decodeUpdate(body map[string]json.RawMessage) (storage.RecordUpdate, error) {
	var upd storage.RecordUpdate

	if raw, ok := body["input_features"]; ok {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil || m == nil {
			return upd, badRequestError("input_features must be a JSON object")
		}
		rec, err := features.Validate(m)
		if err != nil {
			return upd, err
		}
		upd.InputFeatures = &rec
	}
	if raw, ok := body["output_prediction"]; ok {
		var price float64
		if err := json.Unmarshal(raw, &price); err != nil {
			return upd, badRequestError("output_prediction must be a number")
		}
		upd.OutputPrediction = &price
	}
	if raw, ok := body["price_formatted"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return upd, badRequestError("price_formatted must be a string")
		}
		upd.PriceFormatted = &s
	}
	return upd, nil
}

func (h *handler) adminDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	deleted, err := h.repo.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, r, http.StatusNotFound, "Prediction not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":       "Prediction deleted successfully",
		"prediction_id": id,
	})
}

func (h *handler) adminDeleteByCompany(w http.ResponseWriter, r *http.Request) {
	company := mux.Vars(r)["company"]
	n, err := h.repo.DeleteByCompany(r.Context(), company)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       fmt.Sprintf("Deleted %d predictions for company %s", n, company),
		"company":       company,
		"deleted_count": n,
	})
}

func (h *handler) adminCleanup(w http.ResponseWriter, r *http.Request) {
	days, msg := intQuery(r, "days_old", cleanupDefaultDays, 1, cleanupMaxDays)
	if msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	n, err := h.repo.DeleteOlderThan(r.Context(), cutoff)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	log.Info().Int("days_old", days).Int("deleted", n).Msg("Old predictions removed")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       fmt.Sprintf("Deleted %d predictions older than %d days", n, days),
		"days_old":      days,
		"cutoff":        cutoff,
		"deleted_count": n,
	})
}

func (h *handler) adminCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.repo.Count(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total_predictions": n})
}

func (h *handler) adminCompanyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.CompanyStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if stats == nil {
		stats = []storage.CompanyStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) adminPriceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.PriceStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
