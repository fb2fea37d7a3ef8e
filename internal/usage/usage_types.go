package usage

import "time"

// UsageData is the root structure stored in persistence.
type UsageData struct {
	Version   string          `json:"version"`
	Aggregate AggregatedStats `json:"aggregate"`
}

// AggregatedStats holds counters broken down by various dimensions.
type AggregatedStats struct {
	Total   TokenCounts            `json:"total"`
	ByModel map[string]TokenCounts `json:"by_model"`
	ByStage map[string]TokenCounts `json:"by_stage"`
}

// TokenCounts holds input/output sums plus call count and latency.
type TokenCounts struct {
	Input     int64   `json:"input"`
	Output    int64   `json:"output"`
	Total     int64   `json:"total"`
	Calls     int64   `json:"calls"`
	LatencyMS int64   `json:"latency_ms"`
	Cost      float64 `json:"cost_est_usd,omitempty"`
}

func (tc *TokenCounts) add(input, output int, latency time.Duration, cost float64) {
	tc.Input += int64(input)
	tc.Output += int64(output)
	tc.Total += int64(input + output)
	tc.Calls++
	tc.LatencyMS += latency.Milliseconds()
	tc.Cost += cost
}
