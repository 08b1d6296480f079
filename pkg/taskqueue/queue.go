package taskqueue

import (
	"context"
	"errors"
	"time"

	"github.com/qaorchestrator/core/pkg/qatypes"
)

// ErrUnknownOrNotLeased is returned by ExtendLease when taskID is not
// currently held under a lease by any claimant.
var ErrUnknownOrNotLeased = errors.New("taskqueue: task is unknown or not currently leased")

// Outcome classifies why a task was marked done.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeEscalated Outcome = "escalated"
)

// TaskQueue is the external task queue contract (spec.md §6). Implementers
// must provide atomic claim-with-lease semantics: two concurrent
// claim_next calls must never return the same task id. Delivery is
// at-least-once; mark_done must be idempotent on the caller's side, which
// the orchestrator's scheduler achieves by tracking already-dispatched
// task ids locally.
type TaskQueue interface {
	// ClaimNext claims up to maxN unclaimed tasks, leasing each for
	// leaseDuration.
	ClaimNext(ctx context.Context, maxN int, leaseDuration time.Duration) ([]qatypes.Task, error)

	// ExtendLease extends taskID's lease to a fixed 5 minutes from now
	// (defaultLeaseExtension in both adapters). The daemon does not call it.
	ExtendLease(ctx context.Context, taskID string) error

	// MarkDone marks taskID complete with the given outcome.
	MarkDone(ctx context.Context, taskID string, outcome Outcome) error

	// MarkFailed marks taskID failed with reason, making it eligible for
	// redelivery per the queue's own retry policy.
	MarkFailed(ctx context.Context, taskID string, reason string) error
}
