package pipeline

// TerminalReason explains why a run stopped. Callers always receive one;
// the engine never surfaces a bare panic.
type TerminalReason string

const (
	ReasonSatisfied        TerminalReason = "satisfied"
	ReasonNoURLs           TerminalReason = "no_urls"
	ReasonNoDocs           TerminalReason = "no_docs"
	ReasonNoSources        TerminalReason = "no_sources"
	ReasonRetriesExhausted TerminalReason = "retries_exhausted"
	ReasonPipelineFault    TerminalReason = "pipeline_fault"
)

// routeDecision is the router's verdict after the extraction stage.
type routeDecision int

const (
	decisionDone routeDecision = iota
	decisionRetry
	decisionExhausted
)

// routeAfterExtract is evaluated once per pass through the extraction stage.
// It is a pure function of the entity count and the retry budget; the
// controller owns the counter increment so the loop bound stays explicit.
func routeAfterExtract(entityCount, retryCount, maxRetries, minEntityTarget int) routeDecision {
	if entityCount >= minEntityTarget {
		return decisionDone
	}
	if retryCount < maxRetries {
		return decisionRetry
	}
	return decisionExhausted
}
