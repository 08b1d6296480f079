package worker

import (
	"time"

	"github.com/qaorchestrator/core/pkg/qatypes"
)

// LifecycleEvent is one state transition of a WorkerHandle, delivered via
// PollEvents in lifecycle order (starting -> running -> terminal) per
// worker, per spec.md §5's ordering guarantees.
type LifecycleEvent struct {
	WorkerID      string              `json:"worker_id"`
	Kind          qatypes.WorkerKind  `json:"kind"`
	BatchRef      string              `json:"batch_ref"`
	State         qatypes.WorkerState `json:"state"`
	Timestamp     time.Time           `json:"timestamp"`
	Detail        string              `json:"detail,omitempty"`
	ExitCode      int                 `json:"exit_code,omitempty"`
	CorrelationID string              `json:"correlation_id"`
}

// EventCorrelationID implements eventbus's correlated interface so Publish
// can lift CorrelationID onto the envelope without an import cycle.
func (e LifecycleEvent) EventCorrelationID() string {
	return e.CorrelationID
}

// eventsBuffer bounds the poll_events backlog; a slow consumer drops the
// oldest events rather than blocking the supervisor's own goroutines.
const eventsBuffer = 256

func (s *Supervisor) emit(ev LifecycleEvent) {
	select {
	case s.events <- ev:
	default:
		// Backlog full: drop oldest, keep most recent lifecycle state.
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- ev:
		default:
		}
	}
}

// PollEvents returns the channel lifecycle events are delivered on. The
// channel is closed when Shutdown returns: after in-flight workers drain,
// or once Shutdown's ctx or its grace period expires, whichever is first.
func (s *Supervisor) PollEvents() <-chan LifecycleEvent {
	return s.events
}
