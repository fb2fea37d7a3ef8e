package pipeline

import (
	"context"

	"entityscout/internal/logging"
)

// persist writes the current pass's scored sources through the persist
// port. Persistence is fire-and-forget tolerant: a failure is logged and
// the pipeline moves on, because losing the audit copy must never cost the
// extraction work that follows.
func (c *Controller) persist(ctx context.Context, st *State, runID string) {
	if c.persister == nil || len(st.ScoredSources) == 0 {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, c.cfg.PersistTimeout)
	defer cancel()

	ids, err := c.persister.SaveSources(pctx, runID, st.ScoredSources)
	if err != nil {
		logging.Store("run %s: source persist failed: %v", runID, err)
		return
	}
	logging.Store("run %s: persisted %d sources", runID, len(ids))
}
