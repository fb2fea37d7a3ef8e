package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"entityscout/internal/logging"
)

// verifySources scores each fetched document for credibility and relevance
// and keeps only those at or above the credibility gate. A failed or
// malformed scoring call falls back to conservative defaults split by
// trust rather than aborting; the trusted-domain boost is applied before
// the gate check either way.
func (c *Controller) verifySources(ctx context.Context, st *State) error {
	verified := make([]ScoredSource, 0, len(st.FetchedDocs))

	for _, doc := range st.FetchedDocs {
		if err := ctx.Err(); err != nil {
			return err
		}

		trusted := isTrustedDomain(doc.URL)
		cred, rel := c.scoreSource(ctx, st.Query, doc, trusted)

		if trusted {
			cred = math.Min(1.0, cred+trustedDomainBoost)
		}
		if cred < c.cfg.MinCredibility {
			logging.Verifier("rejected %s (credibility=%.3f < %.2f)", doc.URL, cred, c.cfg.MinCredibility)
			continue
		}

		verified = append(verified, ScoredSource{
			URL:         doc.URL,
			Text:        doc.Text,
			Credibility: round3(cred),
			Relevance:   round3(rel),
			Trusted:     trusted,
		})
	}

	st.ScoredSources = verified
	logging.Verifier("%d of %d docs passed (min_credibility=%.2f)",
		len(verified), len(st.FetchedDocs), c.cfg.MinCredibility)
	return nil
}

// scoreSource asks the model for scores, falling back to defaults on any
// failure. Trusted hosts default higher because the registry already
// vouches for them.
func (c *Controller) scoreSource(ctx context.Context, query string, doc Document, trusted bool) (cred, rel float64) {
	userMsg := fmt.Sprintf("User query: %s\nURL: %s\n\nContent (truncated):\n%s",
		query, doc.URL, truncate(doc.Text, verifyContentLimit))

	ictx, cancel := context.WithTimeout(ctx, c.cfg.InferenceTimeout)
	defer cancel()

	start := time.Now()
	raw, err := c.inference.CompleteWithSystem(ictx, verifySystemPrompt, userMsg)
	if err != nil {
		logging.Verifier("scoring failed for %s: %v", doc.URL, err)
		return fallbackScores(trusted)
	}
	c.usage.Record("verify_sources", c.cfg.Model,
		estimateTokens(verifySystemPrompt+userMsg), estimateTokens(raw), time.Since(start))

	scores, err := decodeScores(raw)
	if err != nil {
		logging.Verifier("malformed scores for %s: %v", doc.URL, err)
		return fallbackScores(trusted)
	}
	return scores.Credibility, scores.Relevance
}

func fallbackScores(trusted bool) (cred, rel float64) {
	if trusted {
		return 0.8, 0.5
	}
	return 0.4, 0.5
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
