// Package pipeline implements the research pipeline execution engine:
// a fixed stage graph (expand -> discover -> fetch -> verify -> persist ->
// extract) driven by a run controller with a bounded retry loop, plus the
// entity aggregation that merges partial extraction results across sources.
package pipeline

import (
	"sort"
	"strings"
)

// Priority ranks a search phrase by how central it is to the user's intent.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// SearchPhrase is one web-search string produced by query expansion.
type SearchPhrase struct {
	Phrase      string   `json:"query"`
	Topic       string   `json:"topic"`
	Preferences []string `json:"preferences"`
	Priority    Priority `json:"priority"`
}

// SearchHit is a single candidate returned by the discovery port.
type SearchHit struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Document is a fetched page that passed the word-count quality gate.
// The fetch port never constructs a Document below the configured minimum.
type Document struct {
	URL         string `json:"url"`
	Text        string `json:"text"`
	WordCount   int    `json:"word_count"`
	FetchMethod string `json:"fetch_method"`
}

// ScoredSource is a document that passed the credibility gate.
type ScoredSource struct {
	URL         string  `json:"url"`
	Text        string  `json:"text"`
	Credibility float64 `json:"credibility_score"`
	Relevance   float64 `json:"relevance_score"`
	Trusted     bool    `json:"is_trusted"`
}

// Entity is a deduplicated, progressively merged record representing one
// real-world subject of the research query. Created on first sighting of a
// normalized name, mutated in place by every later sighting, never deleted
// within a run.
type Entity struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Metrics       map[string]string `json:"metrics"`
	SourceURLs    []string          `json:"source_urls"`
	PriorityScore float64           `json:"priority_score"`
}

// State is threaded through every stage of one run. It is owned exclusively
// by the controller for the duration of that run; stages never observe it
// mutated concurrently. List fields hold the current iteration's output and
// are replaced each pass; Entities accumulates across retry iterations.
type State struct {
	Query string

	SearchPhrases []SearchPhrase
	CandidateURLs []SearchHit
	FetchedDocs   []Document
	ScoredSources []ScoredSource
	Entities      map[string]*Entity

	RetryCount int
	MaxRetries int
}

// NewState returns a run state for the given query.
func NewState(query string, maxRetries int) *State {
	return &State{
		Query:      query,
		Entities:   make(map[string]*Entity),
		MaxRetries: maxRetries,
	}
}

// EntityList flattens the entity map, highest priority score first and
// alphabetical within equal scores so output is stable.
func (s *State) EntityList() []Entity {
	out := make([]Entity, 0, len(s.Entities))
	for _, e := range s.Entities {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PriorityScore != out[j].PriorityScore {
			return out[i].PriorityScore > out[j].PriorityScore
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
