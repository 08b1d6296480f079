package workerregistry

import (
	"time"

	"github.com/qaorchestrator/core/pkg/log"
)

// LogRegistry satisfies WorkerRegistry by logging at debug level only.
// Appropriate when no external registry is deployed: the orchestrator
// never depends on registry state for correctness (spec.md §6).
type LogRegistry struct{}

// NewLogRegistry creates a LogRegistry.
func NewLogRegistry() LogRegistry { return LogRegistry{} }

func (LogRegistry) Register(workerID string, metadata map[string]string) error {
	log.WithComponent("worker-registry").Debug().
		Str("worker_id", workerID).
		Interface("metadata", metadata).
		Msg("worker registered")
	return nil
}

func (LogRegistry) Heartbeat(workerID string, ts time.Time) error {
	log.WithComponent("worker-registry").Debug().
		Str("worker_id", workerID).
		Time("ts", ts).
		Msg("worker heartbeat")
	return nil
}

func (LogRegistry) Unregister(workerID string) error {
	log.WithComponent("worker-registry").Debug().
		Str("worker_id", workerID).
		Msg("worker unregistered")
	return nil
}
