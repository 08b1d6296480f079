package metrics

import (
	"testing"

	"github.com/qaorchestrator/core/pkg/qatypes"
)

type stubWorkerSource struct{ handles []qatypes.WorkerHandle }

func (s stubWorkerSource) Handles() []qatypes.WorkerHandle { return s.handles }

type stubEscalationSource struct{ stats map[qatypes.EscalationState]int }

func (s stubEscalationSource) Stats() (map[qatypes.EscalationState]int, error) { return s.stats, nil }

type stubPatternIndexSource struct{ count int }

func (s stubPatternIndexSource) Stats() (int, string) { return s.count, "v1" }

func TestCollector_CollectDoesNotPanicWithNilSources(t *testing.T) {
	c := NewCollector(nil, nil, nil, PoolCapacity{})
	c.collect()
}

func TestCollector_CollectReadsAllSources(t *testing.T) {
	workers := stubWorkerSource{handles: []qatypes.WorkerHandle{
		{Kind: qatypes.WorkerKindFastInproc, State: qatypes.WorkerRunning},
		{Kind: qatypes.WorkerKindHeavySpawned, State: qatypes.WorkerCompleted},
	}}
	escalations := stubEscalationSource{stats: map[qatypes.EscalationState]int{qatypes.EscalationPending: 2}}
	patterns := stubPatternIndexSource{count: 42}

	c := NewCollector(workers, escalations, patterns, PoolCapacity{FastPoolSize: 3, HeavyPoolSize: 2})
	c.collect() // exercises every collectX method without panicking
}
