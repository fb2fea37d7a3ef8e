package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"entityscout/internal/logging"
)

// modelPricing gives USD cost per million tokens. Unknown models fall
// back to defaultPricing.
type modelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

var pricingTable = map[string]modelPricing{
	"gpt-4o":           {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":      {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gemini-2.0-flash": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-1.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 5.00},
}

var defaultPricing = modelPricing{InputPerMillion: 0.50, OutputPerMillion: 1.50}

func priceFor(model string) modelPricing {
	if p, ok := pricingTable[model]; ok {
		return p
	}
	// Prefix match covers dated model revisions like gpt-4o-2024-11-20.
	for name, p := range pricingTable {
		if strings.HasPrefix(model, name) {
			return p
		}
	}
	return defaultPricing
}

// Tracker records token usage per pipeline stage and persists it to
// the workspace.
type Tracker struct {
	mu       sync.Mutex
	data     UsageData
	filePath string
	dirty    bool
}

// NewTracker creates a usage tracker persisting under workspacePath.
func NewTracker(workspacePath string) (*Tracker, error) {
	scoutDir := filepath.Join(workspacePath, ".scout")
	if err := os.MkdirAll(scoutDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .scout dir: %w", err)
	}

	t := &Tracker{
		filePath: filepath.Join(scoutDir, "usage.json"),
		data: UsageData{
			Version: "1.0",
			Aggregate: AggregatedStats{
				ByModel: make(map[string]TokenCounts),
				ByStage: make(map[string]TokenCounts),
			},
		},
	}

	if err := t.Load(); err != nil {
		logging.Usage("Starting with empty usage data: %v", err)
	}
	return t, nil
}

// Load reads the usage data from disk. A missing file is not an error.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &t.data); err != nil {
		return err
	}
	if t.data.Aggregate.ByModel == nil {
		t.data.Aggregate.ByModel = make(map[string]TokenCounts)
	}
	if t.data.Aggregate.ByStage == nil {
		t.data.Aggregate.ByStage = make(map[string]TokenCounts)
	}
	return nil
}

// Save writes the usage data to disk.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.filePath, data, 0644)
}

// Record adds one LLM call to the aggregates. Saves are debounced.
func (t *Tracker) Record(stage, model string, inputTokens, outputTokens int, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pricing := priceFor(model)
	cost := float64(inputTokens)/1e6*pricing.InputPerMillion +
		float64(outputTokens)/1e6*pricing.OutputPerMillion

	t.data.Aggregate.Total.add(inputTokens, outputTokens, latency, cost)
	addToMap(t.data.Aggregate.ByModel, model, inputTokens, outputTokens, latency, cost)
	addToMap(t.data.Aggregate.ByStage, stage, inputTokens, outputTokens, latency, cost)

	logging.Usage("stage=%s model=%s in=%d out=%d latency=%s", stage, model, inputTokens, outputTokens, latency)

	if !t.dirty {
		t.dirty = true
		time.AfterFunc(5*time.Second, func() {
			t.Save()
			t.mu.Lock()
			t.dirty = false
			t.mu.Unlock()
		})
	}
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByModel = copyCounts(stats.ByModel)
	stats.ByStage = copyCounts(stats.ByStage)
	return stats
}

// Report renders a human-readable usage summary.
func (t *Tracker) Report() string {
	stats := t.Stats()

	var sb strings.Builder
	sb.WriteString("Token Usage\n")
	fmt.Fprintf(&sb, "  total: %d in / %d out (%d calls, est $%.4f)\n",
		stats.Total.Input, stats.Total.Output, stats.Total.Calls, stats.Total.Cost)

	stages := make([]string, 0, len(stats.ByStage))
	for stage := range stats.ByStage {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	for _, stage := range stages {
		counts := stats.ByStage[stage]
		fmt.Fprintf(&sb, "  %-24s %8d in %8d out %5d calls\n",
			stage, counts.Input, counts.Output, counts.Calls)
	}
	return sb.String()
}

func copyCounts(src map[string]TokenCounts) map[string]TokenCounts {
	if src == nil {
		return nil
	}
	dst := make(map[string]TokenCounts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

func addToMap(m map[string]TokenCounts, key string, input, output int, latency time.Duration, cost float64) {
	entry := m[key]
	entry.add(input, output, latency, cost)
	m[key] = entry
}
