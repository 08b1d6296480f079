package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaorchestrator/core/pkg/qatypes"
)

func newTestRedisQueue(t *testing.T) *RedisQueue {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisQueue(client)
}

func TestRedisQueue_ClaimNextReturnsEnqueuedTask(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, qatypes.Task{ID: "a"}))

	claimed, err := q.ClaimNext(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "a", claimed[0].ID)
	assert.Equal(t, 1, claimed[0].Attempt)
}

func TestRedisQueue_ClaimNextDoesNotReclaimLiveLease(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, qatypes.Task{ID: "a"}))

	first, err := q.ClaimNext(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := q.ClaimNext(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestRedisQueue_MarkDoneRemovesFromPending(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, qatypes.Task{ID: "a"}))

	_, err := q.ClaimNext(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.NoError(t, q.MarkDone(ctx, "a", OutcomeSucceeded))

	claimed, err := q.ClaimNext(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestRedisQueue_MarkFailedAllowsRedelivery(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, qatypes.Task{ID: "a"}))

	_, err := q.ClaimNext(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.NoError(t, q.MarkFailed(ctx, "a", "worker crashed"))

	claimed, err := q.ClaimNext(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
}

func TestRedisQueue_ExtendLeaseRejectsUnleasedTask(t *testing.T) {
	q := newTestRedisQueue(t)
	err := q.ExtendLease(context.Background(), "never-claimed")
	assert.ErrorIs(t, err, ErrUnknownOrNotLeased)
}
