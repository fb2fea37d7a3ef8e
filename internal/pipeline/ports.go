package pipeline

import (
	"context"
	"time"
)

// InferencePort is the text-generation/scoring capability the engine calls.
// Implementations live in internal/inference; the engine only needs raw
// completions and parses structured output itself (see decode.go).
type InferencePort interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// DiscoveryPort turns a search phrase into candidate URLs with snippets.
type DiscoveryPort interface {
	Search(ctx context.Context, phrase string, maxResults int) ([]SearchHit, error)
}

// FetchPort retrieves page text for a URL. Implementations own the two-tier
// (primary + fallback) strategy and the word-count gate: a Document below
// minWords is never constructed. A nil Document with a non-nil error means
// the URL is dropped from this batch.
type FetchPort interface {
	Fetch(ctx context.Context, url string, minWords int) (*Document, error)
}

// PersistPort saves verified sources and extracted entities for a run.
// Save failures are tolerated: the controller logs them and moves on.
type PersistPort interface {
	SaveSources(ctx context.Context, runID string, sources []ScoredSource) ([]int64, error)
	SaveEntities(ctx context.Context, runID string, entities []Entity) error
}

// UsageSink receives one record per inference call, keyed by stage name.
// Injected rather than global so concurrent runs can share one accumulator.
type UsageSink interface {
	Record(stage, model string, inputTokens, outputTokens int, latency time.Duration)
}

// nopUsageSink is used when the caller does not care about usage accounting.
type nopUsageSink struct{}

func (nopUsageSink) Record(string, string, int, int, time.Duration) {}
