package pipeline

import (
	"context"

	"entityscout/internal/logging"
)

// discoverURLs runs every search phrase through the discovery port and
// collects unique candidate URLs. A phrase whose search fails is skipped;
// an empty candidate set is a planned termination handled by the
// controller, not an error here. Deduplication is by exact URL string.
func (c *Controller) discoverURLs(ctx context.Context, st *State) error {
	seen := make(map[string]bool)
	var hits []SearchHit

	for _, phrase := range st.SearchPhrases {
		if err := ctx.Err(); err != nil {
			return err
		}

		sctx, cancel := context.WithTimeout(ctx, c.cfg.SearchTimeout)
		results, err := c.discovery.Search(sctx, phrase.Phrase, c.cfg.MaxSearchResults)
		cancel()
		if err != nil {
			logging.Discovery("search failed for %q: %v", phrase.Phrase, err)
			continue
		}

		for _, hit := range results {
			if hit.URL == "" || seen[hit.URL] {
				continue
			}
			seen[hit.URL] = true
			hit.Snippet = truncate(hit.Snippet, snippetLimit)
			hits = append(hits, hit)
		}
	}

	st.CandidateURLs = hits
	logging.Discovery("found %d unique URLs from %d phrases", len(hits), len(st.SearchPhrases))
	return nil
}
