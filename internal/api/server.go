// Package api exposes the prediction pipeline and the admin views of stored
// predictions over HTTP.
//
// Core routes are served at the root and under /api/v1/prediction:
//
//	POST   /predict
//	GET    /predictions?limit=N
//	GET    /predictions/{id}
//	DELETE /cache
//	GET    /health
//	GET    /options
//	GET    /model/info
//
// Admin routes live under /api/v1/admin.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"laptop-price-predictor/internal/common"
	"laptop-price-predictor/internal/ml"
	"laptop-price-predictor/internal/prediction"
	"laptop-price-predictor/internal/storage"
)

const maxBodyBytes = 1 << 20

// ModelInfo reports the model loader state.
type ModelInfo interface {
	State() ml.State
	Info() map[string]interface{}
}

// HTTPMetrics is the subset of metrics reported by the HTTP layer.
type HTTPMetrics interface {
	HTTPRequestObserve(route, method string, status int, seconds float64)
	RateLimitedInc()
	ErrorRate() float64
}

// Config holds the request limits of the HTTP layer.
type Config struct {
	RateLimitRPS    float64 // 0 disables rate limiting of /predict
	RateLimitBurst  int
	HistoryMaxLimit int
}

// Dependencies wires the router.
type Dependencies struct {
	Service        *prediction.Service
	Models         ModelInfo
	Repository     storage.Repository
	Metrics        HTTPMetrics
	MetricsHandler http.Handler // served at /metrics when set
	Config         Config
}

type handler struct {
	svc     *prediction.Service
	models  ModelInfo
	repo    storage.Repository
	metrics HTTPMetrics
	limiter *rate.Limiter
	cfg     Config
}

// NewRouter builds the router with every route registered. Callers may mount
// more routes, such as the dashboard, on the returned router.
func NewRouter(deps Dependencies) *mux.Router {
	h := &handler{
		svc:     deps.Service,
		models:  deps.Models,
		repo:    deps.Repository,
		metrics: deps.Metrics,
		cfg:     deps.Config,
	}
	if h.cfg.HistoryMaxLimit <= 0 {
		h.cfg.HistoryMaxLimit = common.DefaultHistoryMaxLimit
	}
	if h.cfg.RateLimitRPS > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(h.cfg.RateLimitRPS), h.cfg.RateLimitBurst)
	}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware, accessLogMiddleware(deps.Metrics))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	h.registerCore(r.PathPrefix(common.APIPrefix + "/prediction").Subrouter())
	h.registerAdmin(r.PathPrefix(common.APIPrefix + "/admin").Subrouter())
	h.registerCore(r)

	r.HandleFunc("/", h.root).Methods(http.MethodGet)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler).Methods(http.MethodGet)
	}
	return r
}

func (h *handler) registerCore(r *mux.Router) {
	r.HandleFunc("/predict", rateLimit(h.limiter, h.metrics, h.predict)).Methods(http.MethodPost)
	r.HandleFunc("/predictions", h.history).Methods(http.MethodGet)
	r.HandleFunc("/predictions/{id}", h.getPrediction).Methods(http.MethodGet)
	r.HandleFunc("/cache", h.clearCache).Methods(http.MethodDelete)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/options", h.options).Methods(http.MethodGet)
	r.HandleFunc("/model/info", h.modelInfo).Methods(http.MethodGet)
}

func (h *handler) registerAdmin(r *mux.Router) {
	// fixed paths first, {id} would otherwise shadow them
	r.HandleFunc("/predictions/price-range", h.adminByPriceRange).Methods(http.MethodGet)
	r.HandleFunc("/predictions/cleanup/old", h.adminCleanup).Methods(http.MethodDelete)
	r.HandleFunc("/predictions/company/{company}", h.adminByCompany).Methods(http.MethodGet)
	r.HandleFunc("/predictions/company/{company}", h.adminDeleteByCompany).Methods(http.MethodDelete)
	r.HandleFunc("/predictions", h.adminList).Methods(http.MethodGet)
	r.HandleFunc("/predictions/{id}", h.adminGet).Methods(http.MethodGet)
	r.HandleFunc("/predictions/{id}", h.adminUpdate).Methods(http.MethodPut)
	r.HandleFunc("/predictions/{id}", h.adminDelete).Methods(http.MethodDelete)
	r.HandleFunc("/stats/count", h.adminCount).Methods(http.MethodGet)
	r.HandleFunc("/stats/companies", h.adminCompanyStats).Methods(http.MethodGet)
	r.HandleFunc("/stats/price", h.adminPriceStats).Methods(http.MethodGet)
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      common.ServiceName + " API",
		"version":      common.ServiceVersion,
		"health_check": common.APIPrefix + "/prediction/health",
		"dashboard":    "/dashboard",
		"metrics":      "/metrics",
	})
}
