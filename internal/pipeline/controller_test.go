package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM routes by system prompt so one mock covers all three
// inference stages. Expansion and extraction responses are consumed in
// order, one per pass / per source.
type scriptedLLM struct {
	mu               sync.Mutex
	expandResponses  []string
	verifyResponse   string
	extractResponses []string
	expandInputs     []string
	err              error
}

func (s *scriptedLLM) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	switch systemPrompt {
	case expandSystemPrompt:
		s.expandInputs = append(s.expandInputs, userPrompt)
		if len(s.expandResponses) == 0 {
			return `[{"query":"fallback phrase"}]`, nil
		}
		resp := s.expandResponses[0]
		s.expandResponses = s.expandResponses[1:]
		return resp, nil
	case verifySystemPrompt:
		return s.verifyResponse, nil
	case extractSystemPrompt:
		if len(s.extractResponses) == 0 {
			return `[]`, nil
		}
		resp := s.extractResponses[0]
		s.extractResponses = s.extractResponses[1:]
		return resp, nil
	}
	return "", fmt.Errorf("unexpected system prompt")
}

type stubDiscovery struct {
	hits []SearchHit
	err  error
}

func (s *stubDiscovery) Search(ctx context.Context, phrase string, maxResults int) ([]SearchHit, error) {
	return s.hits, s.err
}

type stubFetcher struct {
	docs map[string]*Document
}

func (s *stubFetcher) Fetch(ctx context.Context, url string, minWords int) (*Document, error) {
	if doc, ok := s.docs[url]; ok {
		return doc, nil
	}
	return nil, fmt.Errorf("fetch failed for %s", url)
}

type recordingPersister struct {
	mu          sync.Mutex
	sourceCalls int
	entityCalls int
	entities    []Entity
	err         error
}

func (p *recordingPersister) SaveSources(ctx context.Context, runID string, sources []ScoredSource) ([]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sourceCalls++
	if p.err != nil {
		return nil, p.err
	}
	ids := make([]int64, len(sources))
	return ids, nil
}

func (p *recordingPersister) SaveEntities(ctx context.Context, runID string, entities []Entity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entityCalls++
	p.entities = entities
	return p.err
}

type recordingSink struct {
	mu     sync.Mutex
	stages []string
}

func (r *recordingSink) Record(stage, model string, in, out int, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Model = "test-model"
	cfg.InferenceTimeout = time.Second
	cfg.SearchTimeout = time.Second
	cfg.FetchTimeout = time.Second
	cfg.PersistTimeout = time.Second
	return cfg
}

// longText passes the default 200-word gate.
func longText(word string) string {
	out := ""
	for i := 0; i < 250; i++ {
		out += word + " "
	}
	return out
}

func threeEntities() string {
	return `[{"name":"Alpha","priority_score":0.9},{"name":"Beta","priority_score":0.7},{"name":"Gamma","priority_score":0.5}]`
}

func newHappyDeps(llm *scriptedLLM) (Deps, *recordingPersister) {
	hits := []SearchHit{{URL: "https://docs.example.com/a", Title: "A"}}
	docs := map[string]*Document{
		"https://docs.example.com/a": {URL: "https://docs.example.com/a", Text: longText("alpha"), WordCount: 250},
	}
	persister := &recordingPersister{}
	return Deps{
		Inference: llm,
		Discovery: &stubDiscovery{hits: hits},
		Fetcher:   &stubFetcher{docs: docs},
		Persister: persister,
	}, persister
}

func TestExecuteSatisfiedFirstPass(t *testing.T) {
	llm := &scriptedLLM{
		expandResponses:  []string{`[{"query":"alpha tools","priority":"high"}]`},
		verifyResponse:   `{"credibility_score":0.8,"relevance_score":0.9}`,
		extractResponses: []string{threeEntities()},
	}
	deps, persister := newHappyDeps(llm)
	sink := &recordingSink{}
	deps.Usage = sink

	ctrl, err := NewController(testConfig(), deps)
	require.NoError(t, err)

	result, err := ctrl.Execute(context.Background(), "alpha research")
	require.NoError(t, err)

	assert.Equal(t, ReasonSatisfied, result.Reason)
	assert.Equal(t, 1, result.Passes)
	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Entities, 3)
	assert.Equal(t, "Alpha", result.Entities[0].Name, "ordered by priority score")

	assert.Equal(t, 1, persister.sourceCalls)
	assert.Equal(t, 1, persister.entityCalls)

	assert.Contains(t, sink.stages, "expand_query")
	assert.Contains(t, sink.stages, "verify_sources")
	assert.Contains(t, sink.stages, "extract_and_aggregate")
}

func TestExecuteRetryThenSatisfied(t *testing.T) {
	llm := &scriptedLLM{
		expandResponses: []string{
			`[{"query":"narrow phrase"}]`,
			`[{"query":"broader phrase"}]`,
		},
		verifyResponse: `{"credibility_score":0.8,"relevance_score":0.9}`,
		extractResponses: []string{
			`[{"name":"Alpha","priority_score":0.9}]`, // pass 1: under target
			threeEntities(),                           // pass 2: enough
		},
	}
	deps, _ := newHappyDeps(llm)

	ctrl, err := NewController(testConfig(), deps)
	require.NoError(t, err)

	result, err := ctrl.Execute(context.Background(), "alpha research")
	require.NoError(t, err)

	assert.Equal(t, ReasonSatisfied, result.Reason)
	assert.Equal(t, 2, result.Passes)
	assert.Len(t, result.Entities, 3, "entities accumulate across passes")

	require.Len(t, llm.expandInputs, 2)
	assert.NotContains(t, llm.expandInputs[0], "[RETRY NOTE:")
	assert.Contains(t, llm.expandInputs[1], "[RETRY NOTE:", "retry passes carry the note")
}

func TestExecuteRetriesExhausted(t *testing.T) {
	llm := &scriptedLLM{
		expandResponses: []string{
			`[{"query":"p1"}]`, `[{"query":"p2"}]`, `[{"query":"p3"}]`,
		},
		verifyResponse: `{"credibility_score":0.8,"relevance_score":0.9}`,
		extractResponses: []string{
			`[{"name":"Alpha"}]`, `[{"name":"Alpha"}]`, `[{"name":"Alpha"}]`,
		},
	}
	deps, persister := newHappyDeps(llm)

	cfg := testConfig()
	cfg.MaxRetries = 2
	ctrl, err := NewController(cfg, deps)
	require.NoError(t, err)

	result, err := ctrl.Execute(context.Background(), "alpha research")
	require.NoError(t, err)

	assert.Equal(t, ReasonRetriesExhausted, result.Reason)
	assert.Equal(t, 3, result.Passes, "expansion runs at most MaxRetries+1 times")
	assert.Len(t, result.Entities, 1, "partial results are still returned")
	assert.Equal(t, 1, persister.entityCalls, "partial entities are still persisted")
}

func TestExecuteNoURLs(t *testing.T) {
	llm := &scriptedLLM{expandResponses: []string{`[{"query":"p"}]`}}
	deps, _ := newHappyDeps(llm)
	deps.Discovery = &stubDiscovery{hits: nil}

	ctrl, err := NewController(testConfig(), deps)
	require.NoError(t, err)

	result, err := ctrl.Execute(context.Background(), "obscure query")
	require.NoError(t, err)
	assert.Equal(t, ReasonNoURLs, result.Reason)
	assert.Empty(t, result.Entities)
	assert.Equal(t, 1, result.Passes)
}

func TestExecuteNoDocs(t *testing.T) {
	llm := &scriptedLLM{expandResponses: []string{`[{"query":"p"}]`}}
	deps, _ := newHappyDeps(llm)
	deps.Fetcher = &stubFetcher{docs: nil} // everything fails the fetch

	ctrl, err := NewController(testConfig(), deps)
	require.NoError(t, err)

	result, err := ctrl.Execute(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, ReasonNoDocs, result.Reason)
}

func TestExecuteNoSources(t *testing.T) {
	llm := &scriptedLLM{
		expandResponses: []string{`[{"query":"p"}]`},
		verifyResponse:  `{"credibility_score":0.2,"relevance_score":0.9}`,
	}
	deps, _ := newHappyDeps(llm)

	ctrl, err := NewController(testConfig(), deps)
	require.NoError(t, err)

	result, err := ctrl.Execute(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, ReasonNoSources, result.Reason)
}

func TestExecuteExpansionTransportFault(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("connection refused")}
	deps, _ := newHappyDeps(llm)

	ctrl, err := NewController(testConfig(), deps)
	require.NoError(t, err)

	result, err := ctrl.Execute(context.Background(), "query")
	require.Error(t, err)
	assert.Equal(t, ReasonPipelineFault, result.Reason)
}

func TestExecutePersistFailureTolerated(t *testing.T) {
	llm := &scriptedLLM{
		expandResponses:  []string{`[{"query":"p"}]`},
		verifyResponse:   `{"credibility_score":0.8,"relevance_score":0.9}`,
		extractResponses: []string{threeEntities()},
	}
	deps, persister := newHappyDeps(llm)
	persister.err = errors.New("disk full")

	ctrl, err := NewController(testConfig(), deps)
	require.NoError(t, err)

	result, err := ctrl.Execute(context.Background(), "query")
	require.NoError(t, err, "persistence failures never fail the run")
	assert.Equal(t, ReasonSatisfied, result.Reason)
	assert.Len(t, result.Entities, 3)
}

func TestExecutePanicReturnsPartialResults(t *testing.T) {
	llm := &scriptedLLM{
		expandResponses: []string{`[{"query":"p1"}]`, `[{"query":"p2"}]`},
		verifyResponse:  `{"credibility_score":0.8,"relevance_score":0.9}`,
		extractResponses: []string{
			`[{"name":"Alpha","priority_score":0.9}]`, // pass 1 merges one entity
		},
	}
	deps, _ := newHappyDeps(llm)

	// First pass succeeds and routes to retry; second pass panics in
	// discovery.
	discovered := false
	deps.Discovery = discoveryFunc(func(ctx context.Context, phrase string, max int) ([]SearchHit, error) {
		if discovered {
			panic("stage blew up")
		}
		discovered = true
		return []SearchHit{{URL: "https://docs.example.com/a"}}, nil
	})
	ctrl, err := NewController(testConfig(), deps)
	require.NoError(t, err)

	result, err := ctrl.Execute(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline fault")
	assert.Equal(t, ReasonPipelineFault, result.Reason)
	assert.Len(t, result.Entities, 1, "entities merged before the fault survive")
}

type discoveryFunc func(ctx context.Context, phrase string, maxResults int) ([]SearchHit, error)

func (f discoveryFunc) Search(ctx context.Context, phrase string, maxResults int) ([]SearchHit, error) {
	return f(ctx, phrase, maxResults)
}

func TestExecuteMalformedExpansionFallsBack(t *testing.T) {
	llm := &scriptedLLM{
		expandResponses:  []string{`sure! here are some queries for you`},
		verifyResponse:   `{"credibility_score":0.8,"relevance_score":0.9}`,
		extractResponses: []string{threeEntities()},
	}
	deps, _ := newHappyDeps(llm)

	ctrl, err := NewController(testConfig(), deps)
	require.NoError(t, err)

	result, err := ctrl.Execute(context.Background(), "alpha research")
	require.NoError(t, err, "malformed expansion falls back to the raw query")
	assert.Equal(t, ReasonSatisfied, result.Reason)
}

func TestNewControllerValidation(t *testing.T) {
	llm := &scriptedLLM{}
	deps, _ := newHappyDeps(llm)

	missing := deps
	missing.Inference = nil
	_, err := NewController(testConfig(), missing)
	assert.Error(t, err)

	missing = deps
	missing.Discovery = nil
	_, err = NewController(testConfig(), missing)
	assert.Error(t, err)

	missing = deps
	missing.Fetcher = nil
	_, err = NewController(testConfig(), missing)
	assert.Error(t, err)

	// Persister and usage sink are optional.
	optional := deps
	optional.Persister = nil
	optional.Usage = nil
	_, err = NewController(testConfig(), optional)
	assert.NoError(t, err)
}

func TestVerifySourcesBoostBeforeGate(t *testing.T) {
	llm := &scriptedLLM{verifyResponse: `{"credibility_score":0.5,"relevance_score":0.7}`}
	deps, _ := newHappyDeps(llm)
	ctrl, err := NewController(testConfig(), deps)
	require.NoError(t, err)

	st := NewState("q", 2)
	st.FetchedDocs = []Document{
		{URL: "https://www.nasa.gov/report", Text: "trusted text"},
		{URL: "https://random-blog.net/post", Text: "untrusted text"},
	}

	require.NoError(t, ctrl.verifySources(context.Background(), st))

	// 0.5 + 0.15 boost = 0.65, which clears the 0.6 gate; the untrusted
	// doc at 0.5 does not.
	require.Len(t, st.ScoredSources, 1)
	got := st.ScoredSources[0]
	assert.Equal(t, "https://www.nasa.gov/report", got.URL)
	assert.True(t, got.Trusted)
	assert.Equal(t, 0.65, got.Credibility)
	assert.Equal(t, 0.7, got.Relevance)
}

func TestVerifySourcesFallbackScores(t *testing.T) {
	llm := &scriptedLLM{}
	deps, _ := newHappyDeps(llm)
	ctrl, err := NewController(testConfig(), deps)
	require.NoError(t, err)

	// Scoring calls fail outright; trusted falls back high, untrusted low.
	llm.err = errors.New("model unavailable")

	st := NewState("q", 2)
	st.FetchedDocs = []Document{
		{URL: "https://www.nasa.gov/report", Text: "t"},
		{URL: "https://random-blog.net/post", Text: "u"},
	}
	require.NoError(t, ctrl.verifySources(context.Background(), st))

	require.Len(t, st.ScoredSources, 1)
	assert.Equal(t, "https://www.nasa.gov/report", st.ScoredSources[0].URL)
	assert.Equal(t, 0.95, st.ScoredSources[0].Credibility, "0.8 fallback + 0.15 boost")
}

func TestFetchPagesDropsFailuresAndGates(t *testing.T) {
	llm := &scriptedLLM{verifyResponse: `{"credibility_score":0.8,"relevance_score":0.9}`}
	deps, _ := newHappyDeps(llm)

	// Ten candidates, three with fetchable substance.
	docs := map[string]*Document{}
	var candidates []SearchHit
	for i := 0; i < 10; i++ {
		url := fmt.Sprintf("https://site-%d.example/page", i)
		candidates = append(candidates, SearchHit{URL: url})
		if i < 3 {
			docs[url] = &Document{URL: url, Text: longText("w"), WordCount: 250}
		}
	}
	deps.Fetcher = &stubFetcher{docs: docs}

	ctrl, err := NewController(testConfig(), deps)
	require.NoError(t, err)

	st := NewState("q", 2)
	st.CandidateURLs = candidates
	require.NoError(t, ctrl.fetchPages(context.Background(), st))
	assert.Len(t, st.FetchedDocs, 3, "failed fetches are dropped, not fatal")

	require.NoError(t, ctrl.verifySources(context.Background(), st))
	assert.Len(t, st.ScoredSources, 3, "all surviving docs clear the credibility gate")
}

func TestDiscoverURLsDeduplicates(t *testing.T) {
	llm := &scriptedLLM{}
	deps, _ := newHappyDeps(llm)
	deps.Discovery = &stubDiscovery{hits: []SearchHit{
		{URL: "https://a.example"},
		{URL: "https://a.example"},
		{URL: "https://b.example"},
		{URL: ""},
	}}
	ctrl, err := NewController(testConfig(), deps)
	require.NoError(t, err)

	st := NewState("q", 2)
	st.SearchPhrases = []SearchPhrase{{Phrase: "one"}, {Phrase: "two"}}
	require.NoError(t, ctrl.discoverURLs(context.Background(), st))

	assert.Len(t, st.CandidateURLs, 2, "duplicate and empty URLs are dropped across phrases")
}
