package pipeline

import (
	"context"
	"fmt"
	"time"

	"entityscout/internal/logging"

	"github.com/google/uuid"
)

// Config holds the engine's knobs. Thresholds mirror the runtime
// configuration surface: everything here can be overridden per run.
type Config struct {
	Model            string        // model identifier reported to the usage sink
	MaxRetries       int           // loop-back budget for the retry edge
	MinEntityTarget  int           // entities required before the router is satisfied
	MinCredibility   float64       // credibility gate for scored sources
	MinWordCount     int           // word gate for fetched documents
	MaxSearchResults int           // per-phrase discovery cap
	ConcurrentFetch  int64         // max in-flight fetches
	InferenceTimeout time.Duration // deadline per inference call
	SearchTimeout    time.Duration // deadline per discovery call
	FetchTimeout     time.Duration // deadline per page fetch
	PersistTimeout   time.Duration // deadline for the persist stage
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       2,
		MinEntityTarget:  3,
		MinCredibility:   0.6,
		MinWordCount:     200,
		MaxSearchResults: 10,
		ConcurrentFetch:  5,
		InferenceTimeout: 120 * time.Second,
		SearchTimeout:    30 * time.Second,
		FetchTimeout:     60 * time.Second,
		PersistTimeout:   30 * time.Second,
	}
}

// Deps are the collaborator ports. Inference, Discovery and Fetcher are
// required; Persister and Usage may be nil.
type Deps struct {
	Inference InferencePort
	Discovery DiscoveryPort
	Fetcher   FetchPort
	Persister PersistPort
	Usage     UsageSink
}

// Controller drives the stage graph to completion for one query at a time.
// Controllers are safe for concurrent Execute calls: each run owns its own
// State and the controller itself holds no per-run mutable fields.
type Controller struct {
	cfg       Config
	inference InferencePort
	discovery DiscoveryPort
	fetcher   FetchPort
	persister PersistPort
	usage     UsageSink
}

// NewController wires a controller from its dependencies.
func NewController(cfg Config, deps Deps) (*Controller, error) {
	if deps.Inference == nil {
		return nil, fmt.Errorf("inference port is required")
	}
	if deps.Discovery == nil {
		return nil, fmt.Errorf("discovery port is required")
	}
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("fetch port is required")
	}
	usage := deps.Usage
	if usage == nil {
		usage = nopUsageSink{}
	}
	if cfg.MinEntityTarget <= 0 {
		cfg.MinEntityTarget = DefaultConfig().MinEntityTarget
	}
	if cfg.ConcurrentFetch <= 0 {
		cfg.ConcurrentFetch = DefaultConfig().ConcurrentFetch
	}
	return &Controller{
		cfg:       cfg,
		inference: deps.Inference,
		discovery: deps.Discovery,
		fetcher:   deps.Fetcher,
		persister: deps.Persister,
		usage:     usage,
	}, nil
}

// Result is what every run hands back, whatever the terminal reason.
type Result struct {
	RunID    string
	Entities []Entity
	Reason   TerminalReason
	Passes   int
}

// Execute runs the pipeline for one query. The retry edge is an explicit
// bounded loop here rather than a graph cycle, so termination is visible:
// the expansion stage runs at most MaxRetries+1 times. Entity accumulation
// is the valuable side effect, so even a pipeline fault returns whatever
// has been merged so far.
func (c *Controller) Execute(ctx context.Context, query string) (result Result, err error) {
	st := NewState(query, c.cfg.MaxRetries)
	result.RunID = uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			logging.Pipeline("run %s: stage panic: %v", result.RunID, r)
			result.Entities = st.EntityList()
			result.Reason = ReasonPipelineFault
			err = fmt.Errorf("pipeline fault: %v", r)
		}
	}()

	logging.Pipeline("run %s: starting for query %q (max_retries=%d)", result.RunID, query, st.MaxRetries)

	for {
		result.Passes++

		if err := c.expandQuery(ctx, st); err != nil {
			return c.fault(st, &result, fmt.Errorf("expand_query: %w", err))
		}

		if err := c.discoverURLs(ctx, st); err != nil {
			return c.fault(st, &result, fmt.Errorf("discover_urls: %w", err))
		}
		if len(st.CandidateURLs) == 0 {
			logging.Pipeline("run %s: no URLs discovered, ending", result.RunID)
			return c.finish(st, &result, ReasonNoURLs)
		}

		if err := c.fetchPages(ctx, st); err != nil {
			return c.fault(st, &result, fmt.Errorf("fetch_pages: %w", err))
		}
		if len(st.FetchedDocs) == 0 {
			logging.Pipeline("run %s: no documents passed the fetch gate, ending", result.RunID)
			return c.finish(st, &result, ReasonNoDocs)
		}

		if err := c.verifySources(ctx, st); err != nil {
			return c.fault(st, &result, fmt.Errorf("verify_sources: %w", err))
		}
		if len(st.ScoredSources) == 0 {
			logging.Pipeline("run %s: all sources rejected, ending", result.RunID)
			return c.finish(st, &result, ReasonNoSources)
		}

		// Persistence failures never block extraction.
		c.persist(ctx, st, result.RunID)

		if err := c.extractEntities(ctx, st); err != nil {
			return c.fault(st, &result, fmt.Errorf("extract_and_aggregate: %w", err))
		}

		switch routeAfterExtract(len(st.Entities), st.RetryCount, st.MaxRetries, c.cfg.MinEntityTarget) {
		case decisionDone:
			logging.Pipeline("run %s: %d entities extracted, satisfied", result.RunID, len(st.Entities))
			c.persistEntities(ctx, st, result.RunID)
			return c.finish(st, &result, ReasonSatisfied)
		case decisionRetry:
			st.RetryCount++
			logging.Pipeline("run %s: only %d entities (need %d), retrying (%d/%d)",
				result.RunID, len(st.Entities), c.cfg.MinEntityTarget, st.RetryCount, st.MaxRetries)
		case decisionExhausted:
			logging.Pipeline("run %s: %d entities but retries exhausted, ending", result.RunID, len(st.Entities))
			c.persistEntities(ctx, st, result.RunID)
			return c.finish(st, &result, ReasonRetriesExhausted)
		}
	}
}

func (c *Controller) finish(st *State, result *Result, reason TerminalReason) (Result, error) {
	result.Entities = st.EntityList()
	result.Reason = reason
	return *result, nil
}

func (c *Controller) fault(st *State, result *Result, cause error) (Result, error) {
	logging.Pipeline("run %s: aborting: %v", result.RunID, cause)
	result.Entities = st.EntityList()
	result.Reason = ReasonPipelineFault
	return *result, cause
}

// persistEntities writes the final entity set. Best effort, like persist.
func (c *Controller) persistEntities(ctx context.Context, st *State, runID string) {
	if c.persister == nil || len(st.Entities) == 0 {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, c.cfg.PersistTimeout)
	defer cancel()
	if err := c.persister.SaveEntities(pctx, runID, st.EntityList()); err != nil {
		logging.Store("run %s: entity persist failed: %v", runID, err)
	}
}

// estimateTokens approximates token counts at ~4 characters per token for
// providers that do not report usage.
func estimateTokens(s string) int {
	return len(s) / 4
}
