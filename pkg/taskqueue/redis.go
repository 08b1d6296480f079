package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/qaorchestrator/core/pkg/qatypes"
)

const (
	keyPrefix  = "qa:taskqueue:"
	pendingKey = keyPrefix + "pending"
)

func taskKey(id string) string { return keyPrefix + "task:" + id }
func leaseKey(id string) string { return keyPrefix + "lease:" + id }

// RedisQueue is a claim-with-lease TaskQueue backed by go-redis. Claiming
// is made atomic per task via SET NX PX on a per-task lease key: only the
// first claimant to win the SETNX holds the lease until it expires or is
// released by MarkDone/MarkFailed.
type RedisQueue struct {
	client    *redis.Client
	claimant  string
}

// NewRedisQueue wraps an existing go-redis client.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, claimant: uuid.NewString()}
}

// Enqueue adds a task to the pending set. Intended for tests and
// producer-side wiring, not part of the TaskQueue interface.
func (q *RedisQueue) Enqueue(ctx context.Context, t qatypes.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("taskqueue: marshal task: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, taskKey(t.ID), data, 0)
	pipe.ZAdd(ctx, pendingKey, redis.Z{Score: float64(time.Now().UnixNano()), Member: t.ID})
	_, err = pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) ClaimNext(ctx context.Context, maxN int, leaseDuration time.Duration) ([]qatypes.Task, error) {
	ids, err := q.client.ZRange(ctx, pendingKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("taskqueue: list pending: %w", err)
	}

	var claimed []qatypes.Task
	for _, id := range ids {
		if len(claimed) >= maxN {
			break
		}

		ok, err := q.client.SetNX(ctx, leaseKey(id), q.claimant, leaseDuration).Result()
		if err != nil {
			return claimed, fmt.Errorf("taskqueue: claim %s: %w", id, err)
		}
		if !ok {
			continue // already leased by another claimant
		}

		data, err := q.client.Get(ctx, taskKey(id)).Bytes()
		if err != nil {
			// Task vanished between listing and claim; release the lease
			// and move on rather than failing the whole claim round.
			q.client.Del(ctx, leaseKey(id))
			continue
		}

		var task qatypes.Task
		if err := json.Unmarshal(data, &task); err != nil {
			q.client.Del(ctx, leaseKey(id))
			continue
		}

		task.Attempt++
		task.LeaseUntil = time.Now().Add(leaseDuration)
		if data, err := json.Marshal(task); err == nil {
			q.client.Set(ctx, taskKey(id), data, 0)
		}

		claimed = append(claimed, task)
	}

	return claimed, nil
}

func (q *RedisQueue) ExtendLease(ctx context.Context, taskID string) error {
	ok, err := q.client.Expire(ctx, leaseKey(taskID), defaultLeaseExtension).Result()
	if err != nil {
		return fmt.Errorf("taskqueue: extend lease %s: %w", taskID, err)
	}
	if !ok {
		return ErrUnknownOrNotLeased
	}
	return nil
}

func (q *RedisQueue) MarkDone(ctx context.Context, taskID string, _ Outcome) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, pendingKey, taskID)
	pipe.Del(ctx, taskKey(taskID))
	pipe.Del(ctx, leaseKey(taskID))
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("taskqueue: mark done %s: %w", taskID, err)
	}
	return nil
}

// MarkFailed releases the lease without removing the task from the
// pending set, making it eligible for redelivery on the next ClaimNext.
func (q *RedisQueue) MarkFailed(ctx context.Context, taskID string, _ string) error {
	if err := q.client.Del(ctx, leaseKey(taskID)).Err(); err != nil {
		return fmt.Errorf("taskqueue: mark failed %s: %w", taskID, err)
	}
	return nil
}
