package ml

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FeatureUsage tracks which features drive served predictions: how often
// each appears among the returned top contributions and a running average
// of its contribution.
type FeatureUsage struct {
	mu       sync.RWMutex
	stats    map[string]*FeatureUsageStats
	savePath string
}

// FeatureUsageStats contains statistics for a single feature
type FeatureUsageStats struct {
	Name                string    `json:"name"`
	Appearances         int64     `json:"appearances"`
	PositiveCount       int64     `json:"positive_count"`
	NegativeCount       int64     `json:"negative_count"`
	AverageContribution float64   `json:"average_contribution"`
	MinContribution     float64   `json:"min_contribution"`
	MaxContribution     float64   `json:"max_contribution"`
	LastUpdated         time.Time `json:"last_updated"`
}

// usageDecay is the weight of the newest observation in the running average.
const usageDecay = 0.1

// NewFeatureUsage creates a tracker, restoring a previous snapshot from
// savePath when one exists.
func NewFeatureUsage(savePath string) *FeatureUsage {
	u := &FeatureUsage{
		stats:    make(map[string]*FeatureUsageStats),
		savePath: savePath,
	}

	if savePath != "" {
		if err := u.Load(); err != nil {
			log.Warn().Err(err).Str("path", savePath).Msg("Failed to load feature usage data")
		}
	}

	return u
}

// Observe records the contributions returned for one prediction.
func (u *FeatureUsage) Observe(contribs []Contribution) {
	if u == nil || len(contribs) == 0 {
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	now := time.Now()
	for _, c := range contribs {
		name := c.Feature.String()
		stats, ok := u.stats[name]
		if !ok {
			stats = &FeatureUsageStats{
				Name:                name,
				AverageContribution: c.Value,
				MinContribution:     c.Value,
				MaxContribution:     c.Value,
			}
			u.stats[name] = stats
		} else {
			stats.AverageContribution = usageDecay*c.Value + (1-usageDecay)*stats.AverageContribution
			if c.Value < stats.MinContribution {
				stats.MinContribution = c.Value
			}
			if c.Value > stats.MaxContribution {
				stats.MaxContribution = c.Value
			}
		}

		stats.Appearances++
		if c.Direction() == DirectionPositive {
			stats.PositiveCount++
		} else {
			stats.NegativeCount++
		}
		stats.LastUpdated = now
	}
}

// Snapshot returns a copy of the current statistics.
func (u *FeatureUsage) Snapshot() map[string]FeatureUsageStats {
	u.mu.RLock()
	defer u.mu.RUnlock()

	result := make(map[string]FeatureUsageStats, len(u.stats))
	for name, stats := range u.stats {
		result[name] = *stats
	}
	return result
}

// TopFeatures returns up to n feature names ordered by appearances, then name.
func (u *FeatureUsage) TopFeatures(n int) []string {
	u.mu.RLock()
	defer u.mu.RUnlock()

	names := make([]string, 0, len(u.stats))
	for name := range u.stats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := u.stats[names[i]], u.stats[names[j]]
		if a.Appearances != b.Appearances {
			return a.Appearances > b.Appearances
		}
		return names[i] < names[j]
	})

	if n >= 0 && n < len(names) {
		names = names[:n]
	}
	return names
}

// Save writes the statistics to disk as JSON.
func (u *FeatureUsage) Save() error {
	if u.savePath == "" {
		return nil
	}

	u.mu.RLock()
	data, err := json.MarshalIndent(u.stats, "", "  ")
	u.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(u.savePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(u.savePath, data, 0o600)
}

// Load replaces the statistics with the snapshot on disk, if any.
func (u *FeatureUsage) Load() error {
	if u.savePath == "" {
		return nil
	}

	data, err := os.ReadFile(u.savePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, start fresh
		}
		return err
	}

	stats := make(map[string]*FeatureUsageStats)
	if err := json.Unmarshal(data, &stats); err != nil {
		return err
	}

	u.mu.Lock()
	u.stats = stats
	u.mu.Unlock()
	return nil
}

// Reset clears all statistics.
func (u *FeatureUsage) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.stats = make(map[string]*FeatureUsageStats)
}
