package coordinator

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// observe records one finished request
func observe(op string, outcome Outcome, tally Tally, start time.Time) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`qkv_coordinator_requests_total{op=%q,outcome=%q}`, op, outcome)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`qkv_coordinator_request_duration_seconds{op=%q}`, op)).UpdateDuration(start)
	if tally.Error > 0 {
		metrics.GetOrCreateCounter(fmt.Sprintf(`qkv_coordinator_node_errors_total{op=%q}`, op)).Add(tally.Error)
	}
}

// observeNodeError counts a failed call to a single node
func observeNodeError(nodeID string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`qkv_coordinator_node_failures_total{node=%q}`, nodeID)).Inc()
}
