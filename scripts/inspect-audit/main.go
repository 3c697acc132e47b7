// Command inspect-audit summarises the prediction audit log and the latest
// feature usage snapshot in a data directory.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"smoking-predictor/internal/ml"
	"smoking-predictor/internal/storage"
)

func main() {
	var (
		dataPath = flag.String("data", "./data", "Data directory path")
		hours    = flag.Int("hours", 24, "Summarise predictions from the last N hours")
		top      = flag.Int("top", 5, "Number of most used features to list")
	)
	flag.Parse()

	fmt.Printf("Inspecting data in: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	total, err := store.Count()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count predictions")
	}
	fmt.Printf("\nAudited predictions: %d\n", total)

	end := time.Now()
	records, err := store.GetPredictionsInRange(end.Add(-time.Duration(*hours)*time.Hour), end)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read predictions")
	}
	printWindow(*hours, summarise(records))

	snap, ok, err := store.LatestUsageSnapshot()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read usage snapshot")
	}
	if !ok {
		fmt.Println("\nNo feature usage snapshots stored")
		return
	}

	var stats map[string]ml.FeatureUsageStats
	if err := json.Unmarshal(snap.Stats, &stats); err != nil {
		log.Fatal().Err(err).Msg("Failed to decode usage snapshot")
	}
	fmt.Printf("\nFeature usage at %s:\n", snap.Timestamp.Format(time.RFC3339))
	for _, s := range topUsage(stats, *top) {
		fmt.Printf("  %-40s appearances=%d avg=%.4f\n", s.Name, s.Appearances, s.AverageContribution)
	}
}

type windowSummary struct {
	Count           int
	Positives       int
	MeanProbability float64
	Tiers           map[string]int
}

func summarise(records []storage.PredictionRecord) windowSummary {
	s := windowSummary{Count: len(records), Tiers: make(map[string]int)}
	if len(records) == 0 {
		return s
	}
	var sum float64
	for _, r := range records {
		s.Positives += r.Prediction
		sum += r.Probability
		s.Tiers[r.Confidence]++
	}
	s.MeanProbability = sum / float64(len(records))
	return s
}

func printWindow(hours int, s windowSummary) {
	fmt.Printf("Last %dh: %d predictions, %d predicted smokers, mean probability %.3f\n",
		hours, s.Count, s.Positives, s.MeanProbability)
	for _, tier := range []string{string(ml.ConfidenceHigh), string(ml.ConfidenceMedium), string(ml.ConfidenceLow)} {
		fmt.Printf("  %-6s %d\n", tier, s.Tiers[tier])
	}
}

// topUsage orders features by appearances, then name.
func topUsage(stats map[string]ml.FeatureUsageStats, n int) []ml.FeatureUsageStats {
	out := make([]ml.FeatureUsageStats, 0, len(stats))
	for name, s := range stats {
		if s.Name == "" {
			s.Name = name
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Appearances != out[j].Appearances {
			return out[i].Appearances > out[j].Appearances
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
