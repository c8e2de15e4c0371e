package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"laptop-price-predictor/internal/api"
	"laptop-price-predictor/internal/cache"
	"laptop-price-predictor/internal/cfg"
	"laptop-price-predictor/internal/dashboard"
	"laptop-price-predictor/internal/logging"
	"laptop-price-predictor/internal/metrics"
	"laptop-price-predictor/internal/ml"
	"laptop-price-predictor/internal/prediction"
	"laptop-price-predictor/internal/storage"
	"laptop-price-predictor/internal/workers"
)

const startupLoadTimeout = 2 * time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the prediction HTTP service",
		Long: `Starts the HTTP API, the admin dashboard and the Prometheus endpoint.
Settings come from CONFIG_FILE (YAML) when set, otherwise from the environment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	c, err := cfg.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:   c.LogLevel,
		Console: c.IsDevelopment(),
		File:    c.LogFile,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	log.Info().Str("env", c.AppEnv).Str("store", c.StoreDriver).Msg("Starting Laptop Price Predictor API")

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	repo, err := initializeStorage(c)
	if err != nil {
		return err
	}
	defer repo.Close()

	pool := workers.NewPool("inference", c.Workers, c.Workers*16)
	loader := ml.NewLoader(c.ModelPath, c.DataPath, pool, mw)
	if c.EagerModelLoad {
		if err := initializeModel(loader); err != nil {
			_ = pool.Shutdown(context.Background())
			return err
		}
	}

	hub := dashboard.NewHub()
	hub.Start()
	defer hub.Stop()

	persister := prediction.NewPersister(repo, c.PersistQueueSize, mw, hub.Publish)
	svc := prediction.NewService(prediction.Dependencies{
		Models:           loader,
		Cache:            cache.New[*prediction.Result](c.CacheTTL),
		Pool:             pool,
		Repository:       repo,
		Persister:        persister,
		Metrics:          mw,
		InferenceTimeout: c.InferenceTimeout,
	})

	router := api.NewRouter(api.Dependencies{
		Service:        svc,
		Models:         loader,
		Repository:     repo,
		Metrics:        mw,
		MetricsHandler: promhttp.Handler(),
		Config: api.Config{
			RateLimitRPS:    c.RateLimitRPS,
			RateLimitBurst:  c.RateLimitBurst,
			HistoryMaxLimit: c.HistoryMaxLimit,
		},
	})
	dashboard.New(repo, svc, hub).Register(router)

	server := &http.Server{
		Addr:              c.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      c.InferenceTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	runErr := waitForShutdown(serverErr)

	ctx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()
	shutdown(ctx, server, pool, persister)

	return runErr
}

// initializeStorage opens the configured prediction store. Unlike the cache,
// the store is required: the history endpoints have nothing to serve without it.
func initializeStorage(c cfg.Settings) (storage.Repository, error) {
	repo, err := storage.Open(c.StoreDriver, c.StoreDir, c.CollectionName)
	if err != nil {
		return nil, fmt.Errorf("storage initialization failed: %w", err)
	}
	log.Info().Str("driver", c.StoreDriver).Str("dir", c.StoreDir).Str("collection", c.CollectionName).Msg("Storage ready")
	return repo, nil
}

// initializeModel loads the model before serving so that a broken artifact
// stops startup instead of failing the first request.
func initializeModel(loader *ml.Loader) error {
	ctx, cancel := context.WithTimeout(context.Background(), startupLoadTimeout)
	defer cancel()

	if _, err := loader.Load(ctx); err != nil {
		log.Error().Err(err).Msg("Startup initialization failed")
		return fmt.Errorf("model initialization failed: %w", err)
	}
	log.Info().Interface("model", loader.Info()).Msg("Model loaded")
	return nil
}

// waitForShutdown blocks until a shutdown signal arrives or the server fails.
func waitForShutdown(serverErr <-chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		return nil
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}
}

// shutdown stops intake first, then lets in-flight inference finish and the
// persistence queue drain.
func shutdown(ctx context.Context, server *http.Server, pool *workers.Pool, persister *prediction.Persister) {
	log.Info().Msg("shutting down gracefully...")

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown HTTP server")
	}
	if err := pool.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("inference pool did not drain in time")
	}

	pending := persister.Pending()
	if err := persister.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Int("pending", persister.Pending()).Msg("persistence queue did not drain in time")
		return
	}
	log.Info().Int("flushed", pending).Msg("persistence queue drained")
}
