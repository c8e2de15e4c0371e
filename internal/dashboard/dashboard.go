// Package dashboard serves the admin dashboard: an HTML overview of stored
// predictions and a websocket feed of predictions as they are persisted.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"laptop-price-predictor/internal/common"
	"laptop-price-predictor/internal/prediction"
	"laptop-price-predictor/internal/pricing"
	"laptop-price-predictor/internal/storage"
)

const recentLimit = 20

// PipelineStats exposes the live counters of the prediction service.
type PipelineStats interface {
	Stats() prediction.StatsSnapshot
	CacheSize() int
}

// Summary is everything the dashboard page shows.
type Summary struct {
	Timestamp time.Time                `json:"timestamp"`
	Total     int                      `json:"total_predictions"`
	Price     storage.PriceStats       `json:"price"`
	Companies []storage.CompanyStats   `json:"companies"`
	Recent    []storage.Record         `json:"recent"`
	Pipeline  prediction.StatsSnapshot `json:"pipeline"`
	CacheSize int                      `json:"cache_size"`
	Clients   int                      `json:"clients"`
}

// Dashboard renders summaries of the repository and pipeline.
type Dashboard struct {
	repo     storage.Repository
	pipeline PipelineStats
	hub      *Hub
	tmpl     *template.Template
}

// New creates a dashboard. hub may be nil, in which case the live feed route
// is not registered.
func New(repo storage.Repository, pipeline PipelineStats, hub *Hub) *Dashboard {
	return &Dashboard{
		repo:     repo,
		pipeline: pipeline,
		hub:      hub,
		tmpl: template.Must(template.New("dashboard").Funcs(template.FuncMap{
			"price": pricing.Format,
			"when":  func(t time.Time) string { return t.Local().Format("2006-01-02 15:04:05") },
			"pct":   func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) },
		}).Parse(pageTemplate)),
	}
}

// Register mounts the dashboard routes on r.
func (d *Dashboard) Register(r *mux.Router) {
	r.HandleFunc("/dashboard", d.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/api/summary", d.handleSummary).Methods(http.MethodGet)
	if d.hub != nil {
		r.HandleFunc("/dashboard/ws", d.hub.ServeWS).Methods(http.MethodGet)
	}
}

// Summary collects the repository aggregates concurrently.
func (d *Dashboard) Summary(ctx context.Context) (Summary, error) {
	s := Summary{Timestamp: time.Now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		s.Total, err = d.repo.Count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		s.Price, err = d.repo.PriceStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		s.Companies, err = d.repo.CompanyStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		s.Recent, err = d.repo.FindAll(gctx, recentLimit, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	if d.pipeline != nil {
		s.Pipeline = d.pipeline.Stats()
		s.CacheSize = d.pipeline.CacheSize()
	}
	if d.hub != nil {
		s.Clients = d.hub.ClientCount()
	}
	return s, nil
}

func (d *Dashboard) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := d.Summary(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build dashboard summary")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := d.tmpl.Execute(w, pageData{
		Service: common.ServiceName,
		Admin:   common.APIPrefix + "/admin",
		Summary: summary,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to render dashboard")
	}
}

func (d *Dashboard) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := d.Summary(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build dashboard summary")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		log.Error().Err(err).Msg("Failed to encode dashboard summary")
	}
}

type pageData struct {
	Service string
	Admin   string
	Summary Summary
}
