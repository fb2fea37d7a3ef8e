package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"entityscout/internal/logging"
)

// Precompiled cleaners for page text headed into the extraction prompt.
var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	htmlEntityPattern = regexp.MustCompile(`&[a-zA-Z]+;`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// cleanText strips leftover HTML artifacts and collapses whitespace.
func cleanText(text string) string {
	text = htmlTagPattern.ReplaceAllString(text, " ")
	text = htmlEntityPattern.ReplaceAllString(text, " ")
	return whitespacePattern.ReplaceAllString(text, " ")
}

// extractEntities runs extraction over every scored source of this pass
// and merges the results into the cross-iteration entity map. Sources are
// processed in slice order so merge application is deterministic for a
// given batch. A failed extraction for one source skips that source only.
func (c *Controller) extractEntities(ctx context.Context, st *State) error {
	merged := 0

	for _, src := range st.ScoredSources {
		if err := ctx.Err(); err != nil {
			return err
		}

		records, err := c.extractFromSource(ctx, st.Query, src)
		if err != nil {
			logging.Extractor("extraction failed for %s: %v", src.URL, err)
			continue
		}

		for _, rec := range records {
			entity := Entity{
				Name:          rec.Name,
				Description:   rec.Description,
				Metrics:       rec.Metrics,
				PriorityScore: rec.score(),
			}
			MergeEntity(st.Entities, entity, src.URL)
			merged++
		}
	}

	logging.Extractor("merged %d records into %d distinct entities", merged, len(st.Entities))
	return nil
}

func (c *Controller) extractFromSource(ctx context.Context, query string, src ScoredSource) ([]rawEntity, error) {
	content := truncate(cleanText(src.Text), extractContentLimit)
	userMsg := fmt.Sprintf("User query: %s\n\nDocument Content (truncated to %d chars):\n%s",
		query, extractContentLimit, content)

	ictx, cancel := context.WithTimeout(ctx, c.cfg.InferenceTimeout)
	defer cancel()

	start := time.Now()
	raw, err := c.inference.CompleteWithSystem(ictx, extractSystemPrompt, userMsg)
	if err != nil {
		return nil, err
	}
	c.usage.Record("extract_and_aggregate", c.cfg.Model,
		estimateTokens(extractSystemPrompt+userMsg), estimateTokens(raw), time.Since(start))

	records, err := decodeEntityPayload(raw)
	if err != nil {
		return nil, err
	}
	return records, nil
}
