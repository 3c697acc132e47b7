package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"smoking-predictor/internal/survey"
)

// PredictionRecorder persists served predictions. Implementations must not
// block for long; failures are logged and never fail the request.
type PredictionRecorder interface {
	RecordPrediction(requestID string, at time.Time, record survey.RawRecord, prediction int, probability float64, confidence string) error
}

// ServerConfig controls the HTTP model server.
type ServerConfig struct {
	Port           int
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// DefaultServerConfig listens on 8000 with a 5s request timeout.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8000,
		RequestTimeout: 5 * time.Second,
		RateLimitRPS:   50,
		RateLimitBurst: 100,
	}
}

// ModelServer provides HTTP API for model predictions
type ModelServer struct {
	predictor *Predictor
	recorder  PredictionRecorder
	limiter   *rate.Limiter
	config    ServerConfig
	server    *http.Server
}

// PredictionResponse is the /predict body: the result plus a request ID.
type PredictionResponse struct {
	*PredictionResult
	RequestID string `json:"request_id"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Error       string `json:"error,omitempty"`
}

// DriftResponse is the /drift body.
type DriftResponse struct {
	Enabled       bool                       `json:"enabled"`
	BaselineReady bool                       `json:"baseline_ready"`
	Signals       map[DriftSignal]DriftScore `json:"signals,omitempty"`
}

// ErrorResponse is returned for every non-2xx status.
type ErrorResponse struct {
	Error     string   `json:"error"`
	Fields    []string `json:"fields,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// Caller-visible messages.
const (
	msgInternal    = "An internal error occurred"
	msgUnavailable = "Model is not available"
	msgNotJSON     = "Request must be JSON"
	msgRateLimited = "Too many requests"
)

// NewModelServer creates a new HTTP server for model serving. recorder may
// be nil.
func NewModelServer(predictor *Predictor, recorder PredictionRecorder, config ServerConfig) *ModelServer {
	ms := &ModelServer{
		predictor: predictor,
		recorder:  recorder,
		config:    config,
	}
	if config.RateLimitRPS > 0 {
		burst := config.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		ms.limiter = rate.NewLimiter(rate.Limit(config.RateLimitRPS), burst)
	}

	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      ms.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return ms
}

// Handler returns the routed handler, for embedding or httptest.
func (ms *ModelServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", ms.handlePredict)
	mux.HandleFunc("/global-importance", ms.handleGlobalImportance)
	mux.HandleFunc("/health", ms.handleHealth)
	mux.HandleFunc("/model/info", ms.handleModelInfo)
	mux.HandleFunc("/feature-usage", ms.handleFeatureUsage)
	mux.HandleFunc("/drift", ms.handleDrift)
	return ms.rateLimit(mux)
}

// Start begins serving HTTP requests
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func (ms *ModelServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ms.limiter != nil && r.URL.Path != "/health" && !ms.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: msgRateLimited})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	requestID := uuid.NewString()

	if !isJSON(r) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgNotJSON, RequestID: requestID})
		return
	}

	var payload map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil || payload == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgNotJSON, RequestID: requestID})
		return
	}
	if id, ok := payload["request_id"].(string); ok && id != "" {
		requestID = id
	}

	record, err := ms.predictor.ParseRecord(payload)
	if err != nil {
		ms.writeError(w, err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ms.timeout())
	defer cancel()

	result, err := ms.predictor.Predict(ctx, record)
	if err != nil {
		ms.writeError(w, err, requestID)
		return
	}

	if ms.recorder != nil {
		if err := ms.recorder.RecordPrediction(requestID, time.Now(), record, result.Prediction,
			result.SmokingProbability, string(result.Confidence)); err != nil {
			log.Warn().Err(err).Str("request_id", requestID).Msg("failed to record prediction")
		}
	}

	writeJSON(w, http.StatusOK, PredictionResponse{PredictionResult: result, RequestID: requestID})
}

func (ms *ModelServer) handleGlobalImportance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ms.timeout())
	defer cancel()

	features, err := ms.predictor.GlobalImportance(ctx)
	if err != nil {
		ms.writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, features)
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", ModelLoaded: true}
	status := http.StatusOK

	if err := ms.predictor.Ready(); err != nil {
		resp = HealthResponse{Status: "unavailable", Error: msgUnavailable}
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := ms.predictor.ModelInfo()
	if err != nil {
		ms.writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (ms *ModelServer) handleFeatureUsage(w http.ResponseWriter, r *http.Request) {
	usage := ms.predictor.UsageTracker()
	if usage == nil {
		writeJSON(w, http.StatusOK, map[string]FeatureUsageStats{})
		return
	}
	writeJSON(w, http.StatusOK, usage.Snapshot())
}

func (ms *ModelServer) handleDrift(w http.ResponseWriter, r *http.Request) {
	drift := ms.predictor.DriftDetector()
	if drift == nil {
		writeJSON(w, http.StatusOK, DriftResponse{})
		return
	}
	writeJSON(w, http.StatusOK, DriftResponse{
		Enabled:       true,
		BaselineReady: drift.BaselineReady(),
		Signals:       drift.Status(),
	})
}

func (ms *ModelServer) timeout() time.Duration {
	if ms.config.RequestTimeout <= 0 {
		return 5 * time.Second
	}
	return ms.config.RequestTimeout
}

// writeError maps err to a status. Only input errors carry their own message.
func (ms *ModelServer) writeError(w http.ResponseWriter, err error, requestID string) {
	var missing *survey.MissingFieldError
	var invalid *survey.InvalidFieldError

	switch {
	case errors.As(err, &missing):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: missing.Error(), Fields: missing.Fields, RequestID: requestID})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: invalid.Error(), Fields: []string{invalid.Field}, RequestID: requestID})
	case errors.Is(err, ErrModelUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: msgUnavailable, RequestID: requestID})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "request timed out", RequestID: requestID})
	default:
		if !errors.Is(err, ErrInternal) {
			log.Error().Err(err).Str("request_id", requestID).Msg("unexpected prediction error")
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: msgInternal, RequestID: requestID})
	}
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && (mt == "application/json" || strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+json"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}
