package metrics

import (
	"time"

	"github.com/qaorchestrator/core/pkg/qatypes"
)

// WorkerSource exposes the current set of WorkerHandles, satisfied by
// *worker.Supervisor.
type WorkerSource interface {
	Handles() []qatypes.WorkerHandle
}

// EscalationSource exposes case counts by state, satisfied by
// *escalation.Manager.
type EscalationSource interface {
	Stats() (map[qatypes.EscalationState]int, error)
}

// PatternIndexSource exposes corpus size, satisfied by *patternindex.Index.
type PatternIndexSource interface {
	Stats() (count int, version string)
}

// PoolCapacity carries the configured pool sizes used to compute
// utilization fractions; the Supervisor does not expose its Config
// directly, so the capacities are passed to NewCollector.
type PoolCapacity struct {
	FastPoolSize  int
	HeavyPoolSize int
}

// Collector periodically samples orchestrator components into gauges,
// the same poll/collect loop shape the teacher used for cluster state,
// retargeted to pipeline state.
type Collector struct {
	workers     WorkerSource
	escalations EscalationSource
	patterns    PatternIndexSource
	capacity    PoolCapacity
	stopCh      chan struct{}
}

// NewCollector creates a Collector. Any source may be nil, in which case
// its metrics are simply never updated.
func NewCollector(workers WorkerSource, escalations EscalationSource, patterns PatternIndexSource, capacity PoolCapacity) *Collector {
	return &Collector{
		workers:     workers,
		escalations: escalations,
		patterns:    patterns,
		capacity:    capacity,
		stopCh:      make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectWorkerMetrics()
	c.collectEscalationMetrics()
	c.collectPatternIndexMetrics()
}

func (c *Collector) collectWorkerMetrics() {
	if c.workers == nil {
		return
	}

	handles := c.workers.Handles()

	counts := make(map[[2]string]int)
	activeFast, activeHeavy := 0, 0
	for _, h := range handles {
		if !h.State.IsTerminal() {
			counts[[2]string{string(h.Kind), string(h.State)}]++
			switch h.Kind {
			case qatypes.WorkerKindFastInproc:
				activeFast++
			case qatypes.WorkerKindHeavySpawned:
				activeHeavy++
			}
		}
	}

	for key, n := range counts {
		WorkersActive.WithLabelValues(key[0], key[1]).Set(float64(n))
	}

	if c.capacity.FastPoolSize > 0 {
		WorkerPoolUtilization.WithLabelValues(string(qatypes.WorkerKindFastInproc)).
			Set(float64(activeFast) / float64(c.capacity.FastPoolSize))
	}
	if c.capacity.HeavyPoolSize > 0 {
		WorkerPoolUtilization.WithLabelValues(string(qatypes.WorkerKindHeavySpawned)).
			Set(float64(activeHeavy) / float64(c.capacity.HeavyPoolSize))
	}
}

func (c *Collector) collectEscalationMetrics() {
	if c.escalations == nil {
		return
	}

	stats, err := c.escalations.Stats()
	if err != nil {
		return
	}
	for state, n := range stats {
		EscalationsByState.WithLabelValues(string(state)).Set(float64(n))
	}
}

func (c *Collector) collectPatternIndexMetrics() {
	if c.patterns == nil {
		return
	}
	count, _ := c.patterns.Stats()
	PatternIndexSize.Set(float64(count))
}
