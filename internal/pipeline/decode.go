package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Model output arrives in several shapes depending on mood: a bare array,
// an object wrapping the array, or a single object. Everything is
// normalized here, at the port boundary, before it enters State.

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// rawEntity mirrors the extraction schema before aggregation. The score is
// a pointer so a missing field can default to 0.5 rather than 0.
type rawEntity struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Metrics       map[string]string `json:"metrics"`
	PriorityScore *float64          `json:"priority_score"`
}

func (r rawEntity) score() float64 {
	if r.PriorityScore == nil {
		return 0.5
	}
	return clamp01(*r.PriorityScore)
}

// decodeEntityPayload normalizes extraction output to a flat entity slice.
// Decode attempts, in order: array, object with an "entities" key, single
// object. An empty array is a valid result, not an error.
func decodeEntityPayload(raw string) ([]rawEntity, error) {
	cleaned := stripFences(raw)

	var list []rawEntity
	if err := json.Unmarshal([]byte(cleaned), &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Entities []rawEntity `json:"entities"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err == nil && len(wrapped.Entities) > 0 {
		return wrapped.Entities, nil
	}

	var single rawEntity
	if err := json.Unmarshal([]byte(cleaned), &single); err == nil && single.Name != "" {
		return []rawEntity{single}, nil
	}

	return nil, fmt.Errorf("entity payload does not decode as array, wrapper, or object")
}

// decodePhrasePayload normalizes query-expansion output to search phrases.
// Same variant order as entities: array, object with a "queries" key,
// single object.
func decodePhrasePayload(raw string) ([]SearchPhrase, error) {
	cleaned := stripFences(raw)

	var list []SearchPhrase
	if err := json.Unmarshal([]byte(cleaned), &list); err == nil && len(list) > 0 {
		return list, nil
	}

	var wrapped struct {
		Queries []SearchPhrase `json:"queries"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err == nil && len(wrapped.Queries) > 0 {
		return wrapped.Queries, nil
	}

	var single SearchPhrase
	if err := json.Unmarshal([]byte(cleaned), &single); err == nil && single.Phrase != "" {
		return []SearchPhrase{single}, nil
	}

	return nil, fmt.Errorf("phrase payload does not decode as array, wrapper, or object")
}

// sourceScores is the verification schema.
type sourceScores struct {
	Credibility float64 `json:"credibility_score"`
	Relevance   float64 `json:"relevance_score"`
}

// decodeScores parses a verification response. Scores are clamped to [0,1]
// so a misbehaving model cannot push values past the gate's domain.
func decodeScores(raw string) (sourceScores, error) {
	cleaned := stripFences(raw)

	var scores sourceScores
	if err := json.Unmarshal([]byte(cleaned), &scores); err != nil {
		return sourceScores{}, fmt.Errorf("score payload does not decode: %w", err)
	}
	scores.Credibility = clamp01(scores.Credibility)
	scores.Relevance = clamp01(scores.Relevance)
	return scores, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
