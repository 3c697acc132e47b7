package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"smoking-predictor/internal/cfg"
	"smoking-predictor/internal/client"
	"smoking-predictor/internal/ml"
	"smoking-predictor/internal/storage"
	"smoking-predictor/internal/survey"
)

func main() {
	// Parse command line arguments
	var (
		modelPath  = flag.String("model", "", "Path to the model artifact (default from config)")
		serverURL  = flag.String("server", "", "Query a running prediction service instead of loading the model")
		recordPath = flag.String("record", "", "JSON or YAML file holding one survey record")
		topK       = flag.Int("top-k", 0, "Number of contributions to explain (default from config)")
		noFilter   = flag.Bool("no-filter", false, "Keep contributions below the significance threshold")
		global     = flag.Bool("global", false, "Print the record-independent feature ranking")
		replay     = flag.Bool("replay", false, "Re-score audited predictions from the data directory")
		dataPath   = flag.String("data", "", "Audit log directory for -replay (default from config)")
		startDate  = flag.String("start", "", "Replay start date (YYYY-MM-DD)")
		endDate    = flag.String("end", "", "Replay end date (YYYY-MM-DD)")
		timeout    = flag.Duration("timeout", 5*time.Second, "Request timeout in -server mode")
		logLevel   = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	)
	fields := registerFieldFlags(flag.CommandLine)
	flag.Parse()

	// Setup logging
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Override config with command line arguments
	if *modelPath != "" {
		config.ModelPath = *modelPath
	}
	if *topK > 0 {
		config.TopK = *topK
		config.GlobalTopK = *topK
	}
	if *noFilter {
		config.SignificanceFilter = false
	}
	if *dataPath != "" {
		config.DataPath = *dataPath
	}

	ctx := context.Background()

	if *serverURL != "" {
		runRemote(ctx, client.New(*serverURL, *timeout), *global, *recordPath, fields)
		return
	}

	predictor := ml.NewWithMetrics(
		ml.NewArtifactHandle(ml.FileLoader(config.ModelPath), nil),
		ml.PredictorConfig{
			Rank: ml.RankOptions{
				TopK:                config.TopK,
				FilterInsignificant: config.SignificanceFilter,
				Threshold:           config.SignificanceThreshold,
			},
			GlobalTopK: config.GlobalTopK,
		},
		nil,
	)

	switch {
	case *global:
		features, err := predictor.GlobalImportance(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Global importance failed")
		}
		printJSON(features)

	case *replay:
		start, end := parseRange(*startDate, *endDate)
		if err := runReplay(ctx, predictor, config.DataPath, start, end); err != nil {
			log.Fatal().Err(err).Msg("Replay failed")
		}

	default:
		payload, err := loadPayload(*recordPath, fields)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read record")
		}
		record, err := predictor.ParseRecord(payload)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid record")
		}
		result, err := predictor.Predict(ctx, record)
		if err != nil {
			log.Fatal().Err(err).Msg("Prediction failed")
		}
		printJSON(result)
	}
}

func runRemote(ctx context.Context, c *client.Client, global bool, recordPath string, fields *fieldFlags) {
	if global {
		features, err := c.GlobalImportance(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Global importance failed")
		}
		printJSON(features)
		return
	}

	payload, err := loadPayload(recordPath, fields)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read record")
	}
	record, err := survey.NewValidator().Parse(payload)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid record")
	}

	resp, err := c.Predict(ctx, record, "")
	if err != nil {
		log.Fatal().Err(err).Msg("Prediction failed")
	}
	printJSON(resp)
}

// replayResult compares an audited prediction with the current model.
type replayResult struct {
	RequestID          string    `json:"request_id"`
	Timestamp          time.Time `json:"timestamp"`
	AuditedPrediction  int       `json:"audited_prediction"`
	AuditedProbability float64   `json:"audited_probability"`
	CurrentPrediction  int       `json:"current_prediction"`
	CurrentProbability float64   `json:"current_probability"`
	PredictionChanged  bool      `json:"prediction_changed"`
}

type replaySummary struct {
	Replayed int            `json:"replayed"`
	Changed  int            `json:"changed"`
	Failed   int            `json:"failed"`
	Results  []replayResult `json:"results"`
}

// runReplay re-scores every audited prediction in [start, end] with the
// current model and prints where the outcome differs.
func runReplay(ctx context.Context, predictor *ml.Predictor, dataPath string, start, end time.Time) error {
	if dataPath == "" {
		return fmt.Errorf("replay needs -data or DATA_PATH")
	}
	store, err := storage.New(dataPath)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer store.Close()

	audited, err := store.GetPredictionsInRange(start, end)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	summary := replaySummary{Results: make([]replayResult, 0, len(audited))}
	for _, rec := range audited {
		current, err := predictor.Predict(ctx, rec.Record)
		if err != nil {
			log.Warn().Err(err).Str("request_id", rec.RequestID).Msg("replay failed for record")
			summary.Failed++
			continue
		}

		r := replayResult{
			RequestID:          rec.RequestID,
			Timestamp:          rec.Timestamp,
			AuditedPrediction:  rec.Prediction,
			AuditedProbability: rec.Probability,
			CurrentPrediction:  current.Prediction,
			CurrentProbability: current.SmokingProbability,
			PredictionChanged:  rec.Prediction != current.Prediction,
		}
		summary.Replayed++
		if r.PredictionChanged {
			summary.Changed++
		}
		summary.Results = append(summary.Results, r)
	}

	log.Info().
		Int("replayed", summary.Replayed).
		Int("changed", summary.Changed).
		Int("failed", summary.Failed).
		Msg("Replay completed")

	printJSON(summary)
	return nil
}

func parseRange(startDate, endDate string) (time.Time, time.Time) {
	var startTime, endTime time.Time
	var err error

	if startDate != "" {
		startTime, err = time.Parse("2006-01-02", startDate)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid start date format")
		}
	} else {
		startTime = time.Now().AddDate(0, -1, 0) // Default: 1 month ago
	}

	if endDate != "" {
		endTime, err = time.Parse("2006-01-02", endDate)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid end date format")
		}
		endTime = endTime.Add(24*time.Hour - time.Nanosecond)
	} else {
		endTime = time.Now() // Default: now
	}

	return startTime, endTime
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}
