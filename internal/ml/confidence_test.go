package ml

import "testing"

func TestConfidence(t *testing.T) {
	tests := []struct {
		probability float64
		want        ConfidenceTier
	}{
		{0.5, ConfidenceLow},
		{0.6, ConfidenceLow},
		{0.4, ConfidenceLow},
		{0.601, ConfidenceMedium},
		{0.75, ConfidenceMedium},
		{0.25, ConfidenceMedium},
		{0.751, ConfidenceHigh},
		{0.9, ConfidenceHigh},
		{0.1, ConfidenceHigh},
		{0, ConfidenceHigh},
		{1, ConfidenceHigh},
	}

	for _, tc := range tests {
		if got := Confidence(tc.probability); got != tc.want {
			t.Errorf("Confidence(%v) = %s, want %s", tc.probability, got, tc.want)
		}
	}
}
