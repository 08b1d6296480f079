package qatypes

import (
	"os"
	"time"
)

// WorkerKind distinguishes in-process fast workers from spawned heavy
// workers. Human channel dispatches an EscalationCase instead of a
// WorkerHandle, but the human kind is reserved here for completeness of the
// lifecycle model described in spec.md §9 ("tagged variants").
type WorkerKind string

const (
	WorkerKindFastInproc   WorkerKind = "fast-inproc"
	WorkerKindHeavySpawned WorkerKind = "heavy-spawned"
	WorkerKindHuman        WorkerKind = "human"
)

// WorkerState is the lifecycle state of a WorkerHandle.
type WorkerState string

const (
	WorkerStarting  WorkerState = "starting"
	WorkerRunning   WorkerState = "running"
	WorkerCompleted WorkerState = "completed"
	WorkerFailed    WorkerState = "failed"
	WorkerTimedOut  WorkerState = "timed-out"
	WorkerCancelled WorkerState = "cancelled"
)

// IsTerminal reports whether the state is one of the four terminal states.
func (s WorkerState) IsTerminal() bool {
	switch s {
	case WorkerCompleted, WorkerFailed, WorkerTimedOut, WorkerCancelled:
		return true
	default:
		return false
	}
}

// WorkerHandle tracks a dispatched unit of work through its lifecycle.
type WorkerHandle struct {
	WorkerID  string
	Kind      WorkerKind
	BatchRef  string
	State     WorkerState
	StartedAt time.Time
	LastHeartbeatAt time.Time
	FinishedAt      time.Time

	RequireSignOff bool

	// CorrelationID ties every event-bus event for this worker's lifetime
	// back to one another and, for heavy-spawned workers, to the spawned
	// process via the QA_CORRELATION_ID env var. Set at dispatch time for
	// both channels.
	CorrelationID string

	// Heavy-spawned workers only.
	Process            *os.Process
	EnvHandoff          map[string]string
	HeartbeatPath       string
	DeadlineEpochS      int64
	SoftStopSentAt      time.Time
	HardKillSentAt      time.Time

	// ExitCode is the spawned process's exit code for a WorkerFailed heavy
	// handle (spec.md §6: 1=failed-retryable, 2=failed-fatal). Zero for
	// fast in-process workers and for heavy workers that did not fail.
	ExitCode int
}

// Elapsed returns the wall-clock duration since the handle started.
func (h WorkerHandle) Elapsed(now time.Time) time.Duration {
	return now.Sub(h.StartedAt)
}
