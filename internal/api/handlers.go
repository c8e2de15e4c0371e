package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"laptop-price-predictor/internal/common"
)

func (h *handler) predict(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if raw == nil {
		writeError(w, r, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	result, err := h.svc.Predict(r.Context(), raw)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	limit := common.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > h.cfg.HistoryMaxLimit {
			writeError(w, r, http.StatusBadRequest, "Limit cannot exceed "+strconv.Itoa(h.cfg.HistoryMaxLimit))
			return
		}
		limit = n
	}

	records, err := h.svc.History(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) getPrediction(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) clearCache(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Prediction cache cleared successfully"})
}

// health is a liveness probe; it stays 200 whatever the model state.
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":      "healthy",
		"service":     common.ServiceName,
		"version":     common.ServiceVersion,
		"model_state": h.models.State().String(),
		"cache_size":  h.svc.CacheSize(),
		"stats":       h.svc.Stats(),
		"workers":     h.svc.PoolStatus(),
	}
	if h.metrics != nil {
		resp["error_rate"] = h.metrics.ErrorRate()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) options(w http.ResponseWriter, r *http.Request) {
	opts, err := h.svc.Options(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *handler) modelInfo(w http.ResponseWriter, r *http.Request) {
	info := h.models.Info()
	log.Debug().Interface("model_info", info).Msg("model info requested")
	writeJSON(w, http.StatusOK, info)
}
