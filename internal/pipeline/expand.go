package pipeline

import (
	"context"
	"time"

	"entityscout/internal/logging"
)

// expandQuery turns the user query into 3-5 diverse search phrases. On a
// retry pass the prompt carries a note that the previous pass
// under-delivered; the state itself is untouched by that note.
//
// A malformed model response falls back to a single generic phrase built
// from the raw query, so this stage only fails on transport errors.
func (c *Controller) expandQuery(ctx context.Context, st *State) error {
	userMsg := st.Query
	if st.RetryCount > 0 {
		userMsg += retryNote
	}

	ictx, cancel := context.WithTimeout(ctx, c.cfg.InferenceTimeout)
	defer cancel()

	start := time.Now()
	raw, err := c.inference.CompleteWithSystem(ictx, expandSystemPrompt, userMsg)
	if err != nil {
		return err
	}
	c.usage.Record("expand_query", c.cfg.Model,
		estimateTokens(expandSystemPrompt+userMsg), estimateTokens(raw), time.Since(start))

	phrases, err := decodePhrasePayload(raw)
	if err != nil {
		logging.Pipeline("expand_query: malformed response, falling back to generic phrase: %v", err)
		phrases = []SearchPhrase{{
			Phrase:   st.Query,
			Topic:    st.Query,
			Priority: PriorityHigh,
		}}
	}

	for i := range phrases {
		switch phrases[i].Priority {
		case PriorityLow, PriorityMedium, PriorityHigh:
		default:
			phrases[i].Priority = PriorityMedium
		}
	}

	st.SearchPhrases = phrases
	logging.Pipeline("expand_query: generated %d search phrases", len(phrases))
	for _, p := range phrases {
		logging.PipelineDebug("  -> %q (priority=%s)", p.Phrase, p.Priority)
	}
	return nil
}
