package daemon

import (
	"time"

	"github.com/qaorchestrator/core/pkg/qatypes"
)

// Snapshot is the Daemon's read-only observability surface (spec.md §6):
// current WorkerHandles, aggregate counters, and EscalationManager stats.
// The dashboard that would consume this never mutates core state.
type Snapshot struct {
	Workers        []qatypes.WorkerHandle           `json:"workers"`
	TasksProcessed int64                             `json:"tasks_processed"`
	PerChannel     map[qatypes.Channel]int64          `json:"per_channel"`
	SuccessRate    float64                            `json:"success_rate"`
	Escalations    map[qatypes.EscalationState]int    `json:"escalations"`
	GeneratedAt    time.Time                          `json:"generated_at"`
}

// Snapshot samples the current state of every component the Daemon owns.
func (d *Daemon) Snapshot() Snapshot {
	processed, successes, perChannel := d.counters.read()

	var successRate float64
	if processed > 0 {
		successRate = float64(successes) / float64(processed)
	}

	escStats, err := d.deps.Escalations.Stats()
	if err != nil {
		escStats = map[qatypes.EscalationState]int{}
	}

	return Snapshot{
		Workers:        d.deps.Supervisor.Handles(),
		TasksProcessed: processed,
		PerChannel:     perChannel,
		SuccessRate:    successRate,
		Escalations:    escStats,
		GeneratedAt:    time.Now(),
	}
}
