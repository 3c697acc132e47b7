// Command generate-traffic sends random survey records to a running
// prediction service, for smoke tests and for seeding the audit log.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"smoking-predictor/internal/client"
	"smoking-predictor/internal/survey"
)

type summary struct {
	mu        sync.Mutex
	sent      int
	failed    int
	positives int
	tiers     map[string]int
}

func (s *summary) record(prediction int, tier string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	if err != nil {
		s.failed++
		return
	}
	s.positives += prediction
	s.tiers[tier]++
}

func main() {
	var (
		server      = flag.String("server", "http://localhost:8000", "Prediction service URL")
		count       = flag.Int("n", 100, "Number of requests to send")
		rps         = flag.Float64("rps", 20, "Request rate limit")
		concurrency = flag.Int("concurrency", 4, "Concurrent workers")
		seed        = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()

	fmt.Printf("Sending %d random records to %s...\n", *count, *server)

	c := client.New(*server, 5*time.Second)
	limiter := rate.NewLimiter(rate.Limit(*rps), 1)
	rng := rand.New(rand.NewSource(*seed))

	// Records are drawn up front so the seed fully determines the traffic.
	records := make(chan survey.RawRecord, *count)
	for i := 0; i < *count; i++ {
		records <- randomRecord(rng)
	}
	close(records)

	ctx := context.Background()
	sum := &summary{tiers: make(map[string]int)}

	var wg sync.WaitGroup
	for i, n := 0, max(1, *concurrency); i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range records {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				resp, err := c.Predict(ctx, rec, uuid.NewString())
				if err != nil {
					log.Warn().Err(err).Msg("prediction request failed")
					sum.record(0, "", err)
					continue
				}
				sum.record(resp.Prediction, string(resp.Confidence), nil)
			}
		}()
	}
	wg.Wait()

	fmt.Printf("✓ Sent %d, failed %d, predicted smokers %d\n", sum.sent, sum.failed, sum.positives)
	tiers := make([]string, 0, len(sum.tiers))
	for t := range sum.tiers {
		tiers = append(tiers, t)
	}
	sort.Strings(tiers)
	for _, t := range tiers {
		fmt.Printf("  %-6s %d\n", t, sum.tiers[t])
	}
}

// randomRecord draws every answer uniformly from its valid values; age is
// uniform over 16..90.
func randomRecord(rng *rand.Rand) survey.RawRecord {
	pick := func(values []string) string { return values[rng.Intn(len(values))] }
	return survey.RawRecord{
		Age:                  16 + rng.Intn(75),
		Gender:               pick(survey.Genders),
		MaritalStatus:        pick(survey.MaritalStatuses),
		HighestQualification: pick(survey.Qualifications),
		Nationality:          pick(survey.Nationalities),
		Ethnicity:            pick(survey.Ethnicities),
		GrossIncome:          pick(survey.Incomes),
		Region:               pick(survey.Regions),
	}
}
