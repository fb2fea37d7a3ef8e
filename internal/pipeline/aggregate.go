package pipeline

import "strings"

// NormalizeName is the aggregation key: lowercase, surrounding space
// trimmed. Records whose normalized name is empty never enter the map.
func NormalizeName(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

// MergeEntity folds an incoming extraction record into the entity map in
// place. The rules are chosen so that re-merging an identical record is a
// no-op, because retries may re-process overlapping sources:
//
//   - priority score: max of the two
//   - description: longer string wins, ties keep the existing one
//   - source URLs: appended once, first-appearance order preserved
//   - metrics: insert when absent; when present, concatenate with " | "
//     only if the incoming value is not already a substring of the
//     existing value
func MergeEntity(entities map[string]*Entity, incoming Entity, sourceURL string) {
	key := NormalizeName(incoming.Name)
	if key == "" {
		return
	}

	existing, ok := entities[key]
	if !ok {
		e := incoming
		if e.Metrics == nil {
			e.Metrics = make(map[string]string)
		} else {
			// Copy so later merges never alias the caller's map.
			m := make(map[string]string, len(e.Metrics))
			for k, v := range e.Metrics {
				m[k] = v
			}
			e.Metrics = m
		}
		e.SourceURLs = nil
		if sourceURL != "" {
			e.SourceURLs = []string{sourceURL}
		}
		entities[key] = &e
		return
	}

	if incoming.PriorityScore > existing.PriorityScore {
		existing.PriorityScore = incoming.PriorityScore
	}
	if len(incoming.Description) > len(existing.Description) {
		existing.Description = incoming.Description
	}
	if sourceURL != "" && !containsString(existing.SourceURLs, sourceURL) {
		existing.SourceURLs = append(existing.SourceURLs, sourceURL)
	}
	for k, v := range incoming.Metrics {
		current, present := existing.Metrics[k]
		switch {
		case !present:
			existing.Metrics[k] = v
		case strings.Contains(current, v):
			// Already represented; skipping prevents unbounded
			// duplication when retries re-see the same source.
		default:
			existing.Metrics[k] = current + " | " + v
		}
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
