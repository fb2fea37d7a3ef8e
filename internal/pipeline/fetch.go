package pipeline

import (
	"context"
	"sync"

	"entityscout/internal/logging"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// fetchPages fetches every candidate URL with at most ConcurrentFetch in
// flight. Individual failures (transport errors, word-gate rejections) are
// dropped silently; they never abort the batch, and nothing is retried
// here: retrying is the pipeline loop's job, not the fetch stage's.
// Completion order decides output order, so downstream stages must not
// depend on it.
func (c *Controller) fetchPages(ctx context.Context, st *State) error {
	sem := semaphore.NewWeighted(c.cfg.ConcurrentFetch)
	eg, egCtx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	docs := make([]Document, 0, len(st.CandidateURLs))

	for _, candidate := range st.CandidateURLs {
		url := candidate.URL
		eg.Go(func() error {
			if err := sem.Acquire(egCtx, 1); err != nil {
				// Run cancelled; not a per-URL failure.
				return err
			}
			defer sem.Release(1)

			fctx, cancel := context.WithTimeout(egCtx, c.cfg.FetchTimeout)
			defer cancel()

			doc, err := c.fetcher.Fetch(fctx, url, c.cfg.MinWordCount)
			if err != nil {
				logging.CrawlerDebug("dropped %s: %v", url, err)
				return nil
			}

			mu.Lock()
			docs = append(docs, *doc)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	st.FetchedDocs = docs
	logging.Crawler("fetched %d pages of %d attempted (min_words=%d)",
		len(docs), len(st.CandidateURLs), c.cfg.MinWordCount)
	return nil
}
