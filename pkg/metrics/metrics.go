package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Poll loop metrics
	TasksClaimedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qa_tasks_claimed_total",
			Help: "Total number of tasks claimed from the task queue",
		},
	)

	TasksProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_tasks_processed_total",
			Help: "Total number of tasks processed by routing channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	PollCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qa_poll_cycle_duration_seconds",
			Help:    "Time taken for one poll-claim-score-dispatch cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Pipeline stage metrics (ComplexityScorer / BatchOptimizer / DecisionEngine)
	ScoringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qa_scoring_duration_seconds",
			Help:    "Time taken to score a batch's complexity",
			Buckets: prometheus.DefBuckets,
		},
	)

	BatchingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qa_batching_duration_seconds",
			Help:    "Time taken to partition a task's violations into batches",
			Buckets: prometheus.DefBuckets,
		},
	)

	DecisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qa_decision_duration_seconds",
			Help:    "Time taken to route a batch to a channel",
			Buckets: prometheus.DefBuckets,
		},
	)

	RetrievalQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qa_retrieval_query_duration_seconds",
			Help:    "Time taken to query the pattern index for a batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	BatchesByChannel = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_batches_routed_total",
			Help: "Total number of batches routed, by channel",
		},
		[]string{"channel"},
	)

	// Worker pool metrics
	WorkerPoolUtilization = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qa_worker_pool_utilization",
			Help: "Fraction of pool capacity currently in use, by pool kind",
		},
		[]string{"kind"},
	)

	WorkersActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qa_workers_active",
			Help: "Number of non-terminal WorkerHandles, by kind and state",
		},
		[]string{"kind", "state"},
	)

	WorkerOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_worker_outcomes_total",
			Help: "Total number of worker completions, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	HeavySpawnFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qa_heavy_spawn_failures_total",
			Help: "Total number of heavy worker process launch failures",
		},
	)

	BreakerOpenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qa_breaker_open_total",
			Help: "Total number of dispatches rejected because the heavy-pool circuit breaker was open",
		},
	)

	// Escalation metrics
	EscalationsOpenedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qa_escalations_opened_total",
			Help: "Total number of escalation cases opened",
		},
	)

	EscalationsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qa_escalations_by_state",
			Help: "Current number of escalation cases, by state",
		},
		[]string{"state"},
	)

	// Pattern index metrics
	PatternIndexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qa_pattern_index_entries",
			Help: "Number of entries currently loaded in the pattern index",
		},
	)

	RetrievalConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qa_retrieval_confidence",
			Help:    "Distribution of RetrievalContext confidence scores",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)
)

func init() {
	prometheus.MustRegister(TasksClaimedTotal)
	prometheus.MustRegister(TasksProcessedTotal)
	prometheus.MustRegister(PollCycleDuration)
	prometheus.MustRegister(ScoringDuration)
	prometheus.MustRegister(BatchingDuration)
	prometheus.MustRegister(DecisionDuration)
	prometheus.MustRegister(RetrievalQueryDuration)
	prometheus.MustRegister(BatchesByChannel)
	prometheus.MustRegister(WorkerPoolUtilization)
	prometheus.MustRegister(WorkersActive)
	prometheus.MustRegister(WorkerOutcomesTotal)
	prometheus.MustRegister(HeavySpawnFailuresTotal)
	prometheus.MustRegister(BreakerOpenTotal)
	prometheus.MustRegister(EscalationsOpenedTotal)
	prometheus.MustRegister(EscalationsByState)
	prometheus.MustRegister(PatternIndexSize)
	prometheus.MustRegister(RetrievalConfidence)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
