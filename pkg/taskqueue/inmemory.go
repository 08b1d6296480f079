package taskqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/qaorchestrator/core/pkg/qatypes"
)

type entryState int

const (
	stateUnclaimed entryState = iota
	stateLeased
	stateDone
)

type entry struct {
	task  qatypes.Task
	state entryState
}

// InMemoryQueue is the default/test TaskQueue adapter: a mutex-guarded
// map simulating claim-with-lease semantics, including redelivery of
// tasks whose lease has expired without a MarkDone/MarkFailed.
type InMemoryQueue struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
}

// NewInMemoryQueue creates an empty queue.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{entries: make(map[string]*entry)}
}

// Enqueue adds a task in the unclaimed state. Intended for tests and
// local/example wiring, not part of the TaskQueue interface.
func (q *InMemoryQueue) Enqueue(t qatypes.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.entries[t.ID]; !exists {
		q.order = append(q.order, t.ID)
	}
	q.entries[t.ID] = &entry{task: t, state: stateUnclaimed}
}

func (q *InMemoryQueue) ClaimNext(_ context.Context, maxN int, leaseDuration time.Duration) ([]qatypes.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var claimed []qatypes.Task

	for _, id := range q.order {
		if len(claimed) >= maxN {
			break
		}
		e := q.entries[id]
		if e == nil {
			continue
		}
		eligible := e.state == stateUnclaimed || (e.state == stateLeased && now.After(e.task.LeaseUntil))
		if !eligible {
			continue
		}

		if e.state == stateLeased {
			e.task.Attempt++
		}
		e.state = stateLeased
		e.task.LeaseUntil = now.Add(leaseDuration)
		claimed = append(claimed, e.task)
	}

	sort.Slice(claimed, func(i, j int) bool { return claimed[i].ID < claimed[j].ID })
	return claimed, nil
}

func (q *InMemoryQueue) ExtendLease(_ context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[taskID]
	if !ok || e.state != stateLeased {
		return ErrUnknownOrNotLeased
	}
	e.task.LeaseUntil = time.Now().Add(defaultLeaseExtension)
	return nil
}

func (q *InMemoryQueue) MarkDone(_ context.Context, taskID string, _ Outcome) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[taskID]
	if !ok {
		return nil // idempotent: unknown id treated as already-done
	}
	e.state = stateDone
	return nil
}

// MarkFailed releases taskID back to the unclaimed state so the next
// ClaimNext can redeliver it, matching RedisQueue.MarkFailed's
// leave-in-pending-set behavior.
func (q *InMemoryQueue) MarkFailed(_ context.Context, taskID string, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[taskID]
	if !ok {
		return nil
	}
	e.state = stateUnclaimed
	return nil
}

// defaultLeaseExtension is used when ExtendLease has no caller-supplied
// duration; the interface only carries a task id by design (spec.md §6).
const defaultLeaseExtension = 5 * time.Minute
