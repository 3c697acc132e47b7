package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"smoking-predictor/internal/cfg"
	"smoking-predictor/internal/common"
	"smoking-predictor/internal/metrics"
	"smoking-predictor/internal/ml"
	"smoking-predictor/internal/storage"
	"smoking-predictor/internal/survey"
)

const (
	usageSnapshotInterval = time.Minute // how often feature usage is persisted
	driftCheckInterval    = time.Minute
)

// auditRecorder writes predictions to the store and counts failed writes.
type auditRecorder struct {
	store *storage.Store
	m     *metrics.MetricsWrapper
}

func (a *auditRecorder) RecordPrediction(requestID string, at time.Time, record survey.RawRecord, prediction int, probability float64, confidence string) error {
	err := a.store.RecordPrediction(requestID, at, record, prediction, probability, confidence)
	if err != nil {
		a.m.AuditWriteFailuresInc()
	}
	return err
}

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c.LogLevel, c.LogFormat)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize components
	m := metrics.New()
	mw := metrics.NewWrapper(m)

	handle := ml.NewArtifactHandle(ml.FileLoader(c.ModelPath), mw)
	if !c.LazyLoad {
		if err := handle.Preload(); err != nil {
			// Keep serving: /health and /predict report 503 until restart.
			log.Error().Err(err).Str("model_path", c.ModelPath).Msg("model unavailable at startup")
		}
	}

	predictor := ml.NewWithMetrics(handle, ml.PredictorConfig{
		Rank: ml.RankOptions{
			TopK:                c.TopK,
			FilterInsignificant: c.SignificanceFilter,
			Threshold:           c.SignificanceThreshold,
		},
		GlobalTopK: c.GlobalTopK,
	}, mw)

	usage := ml.NewFeatureUsage(c.UsagePath)
	predictor.SetUsageTracker(usage)

	drift := ml.NewDriftDetector(ml.DriftConfig{
		WindowSize:     c.DriftWindow,
		AlertThreshold: c.DriftAlertThreshold,
		AlertCooldown:  time.Hour,
		BaselinePath:   c.DriftBaselinePath,
	})
	predictor.SetDriftDetector(drift)

	store := initializeStorage(c)
	var recorder ml.PredictionRecorder
	if store != nil {
		defer store.Close()
		recorder = &auditRecorder{store: store, m: mw}
	}

	server := ml.NewModelServer(predictor, recorder, ml.ServerConfig{
		Port:           c.ListenPort,
		RequestTimeout: c.RequestTimeout,
		RateLimitRPS:   c.RateLimitRPS,
		RateLimitBurst: c.RateLimitBurst,
	})

	var wg sync.WaitGroup
	startMetricsServer(ctx, c, cancel, handle)
	startModelServer(&wg, server, cancel)
	startUsageSnapshots(ctx, &wg, usage, store)
	if drift != nil {
		startDriftChecks(ctx, &wg, drift, mw)
	}

	log.Info().
		Int("listen_port", c.ListenPort).
		Int("metrics_port", c.MetricsPort).
		Str("model_path", c.ModelPath).
		Bool("lazy_load", c.LazyLoad).
		Int("top_k", c.TopK).
		Bool("significance_filter", c.SignificanceFilter).
		Int("drift_window", c.DriftWindow).
		Msg("prediction service started")

	// Wait for shutdown signal
	waitForShutdown(ctx, cancel, &wg, server)

	if err := usage.Save(); err != nil {
		log.Warn().Err(err).Msg("failed to save feature usage")
	}
}

func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if strings.EqualFold(format, "console") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// initializeStorage initializes storage if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath != "" {
		store, err := storage.New(c.DataPath)
		if err != nil {
			log.Warn().Err(err).Msg("storage initialization failed, continuing without audit log")
			return nil
		}
		return store
	}
	return nil
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, c cfg.Settings, cancel context.CancelFunc, handle *ml.ArtifactHandle) {
	go func() {
		mux := http.NewServeMux()

		// Liveness only; model readiness is on the API port.
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			if handle.Loaded() {
				w.Write([]byte("OK"))
				return
			}
			w.Write([]byte("OK (model not loaded)"))
		})

		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
			cancel()
		}
	}()
}

// startModelServer serves the prediction API until Shutdown.
func startModelServer(wg *sync.WaitGroup, server *ml.ModelServer, cancel context.CancelFunc) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("model server failed")
			cancel()
		}
	}()
}

// startUsageSnapshots periodically persists feature usage to disk and, when
// an audit store is configured, to the store.
func startUsageSnapshots(ctx context.Context, wg *sync.WaitGroup, usage *ml.FeatureUsage, store *storage.Store) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(usageSnapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if err := usage.Save(); err != nil {
					log.Warn().Err(err).Msg("failed to save feature usage")
				}
				if store == nil {
					continue
				}
				if err := store.StoreUsageSnapshot(now, usage.Snapshot()); err != nil {
					log.Warn().Err(err).Msg("failed to store feature usage snapshot")
				}
			}
		}
	}()
}

// startDriftChecks publishes drift scores and logs alerts.
func startDriftChecks(ctx context.Context, wg *sync.WaitGroup, drift *ml.DriftDetector, mw *metrics.MetricsWrapper) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(driftCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				for sig, score := range drift.Status() {
					mw.DriftScoreSet(string(sig), score.PSI)
				}
				for _, alert := range drift.Detect(now) {
					log.Warn().
						Str("signal", string(alert.Signal)).
						Float64("psi", alert.PSI).
						Float64("threshold", alert.Threshold).
						Str("severity", alert.Severity).
						Msg("served population has drifted from baseline")
				}
			}
		}
	}()
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup, server *ml.ModelServer) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel() // Cancel context to stop all goroutines

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), common.DefaultShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown model server")
	}

	// Wait for all goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-shutdownCtx.Done():
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
