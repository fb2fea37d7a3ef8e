package pipeline

import "testing"

func TestRouteAfterExtract(t *testing.T) {
	tests := []struct {
		name        string
		entityCount int
		retryCount  int
		maxRetries  int
		target      int
		want        routeDecision
	}{
		{"target met exactly", 3, 0, 2, 3, decisionDone},
		{"target exceeded", 7, 0, 2, 3, decisionDone},
		{"target met on last retry", 3, 2, 2, 3, decisionDone},
		{"short with budget left", 2, 0, 2, 3, decisionRetry},
		{"short at final retry", 2, 1, 2, 3, decisionRetry},
		{"short and exhausted", 2, 2, 2, 3, decisionExhausted},
		{"zero entities exhausted", 0, 2, 2, 3, decisionExhausted},
		{"zero retry budget", 1, 0, 0, 3, decisionExhausted},
		{"target of one", 1, 0, 2, 1, decisionDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := routeAfterExtract(tt.entityCount, tt.retryCount, tt.maxRetries, tt.target)
			if got != tt.want {
				t.Errorf("routeAfterExtract(%d, %d, %d, %d) = %v, want %v",
					tt.entityCount, tt.retryCount, tt.maxRetries, tt.target, got, tt.want)
			}
		})
	}
}
