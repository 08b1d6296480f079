/*
Package metrics provides Prometheus metrics collection and exposition for
the orchestrator.

Metrics are registered at package init and exposed via an HTTP handler for
scraping. Categories: poll-loop throughput (tasks claimed/processed),
pipeline stage latency (scoring, batching, decision, retrieval), worker
pool utilization and outcomes, escalation case counts, and pattern index
size/confidence.

# Usage

	import "github.com/qaorchestrator/core/pkg/metrics"

	metrics.TasksClaimedTotal.Add(float64(len(tasks)))

	timer := metrics.NewTimer()
	score := scorer.Score(batch, churn)
	timer.ObserveDuration(metrics.ScoringDuration)

	http.Handle("/metrics", metrics.Handler())

Label cardinality is kept low: channel (fast/heavy/human), kind
(fast-inproc/heavy-spawned), state, and outcome are all bounded enums.
Never label with task or worker ids.
*/
package metrics
