package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaorchestrator/core/pkg/eventbus"
	"github.com/qaorchestrator/core/pkg/qatypes"
)

var errStubExecution = errors.New("stub executor failure")

type stubExecutor struct {
	delay   time.Duration
	fail    bool
	started chan struct{}
}

func (s *stubExecutor) Execute(ctx context.Context, batch qatypes.Batch, retrieval qatypes.RetrievalContext) error {
	if s.started != nil {
		close(s.started)
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.fail {
		return errStubExecution
	}
	return nil
}

func fastDecision(id string) qatypes.RoutingDecision {
	return qatypes.RoutingDecision{
		Channel: qatypes.ChannelFast,
		Batch:   qatypes.Batch{ID: id},
	}
}

func TestDispatchFast_CompletesSuccessfully(t *testing.T) {
	cfg := DefaultConfig()
	sup := NewSupervisor(cfg, &stubExecutor{}, eventbus.NewInMemoryBroker())

	handle, err := sup.Dispatch(context.Background(), fastDecision("b1"))
	require.NoError(t, err)
	assert.Equal(t, qatypes.WorkerKindFastInproc, handle.Kind)

	require.Eventually(t, func() bool {
		for _, h := range sup.Handles() {
			if h.WorkerID == handle.WorkerID {
				return h.State == qatypes.WorkerCompleted
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestDispatchFast_FailurePropagatesState(t *testing.T) {
	cfg := DefaultConfig()
	sup := NewSupervisor(cfg, &stubExecutor{fail: true}, eventbus.NewInMemoryBroker())

	handle, err := sup.Dispatch(context.Background(), fastDecision("b1"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, h := range sup.Handles() {
			if h.WorkerID == handle.WorkerID {
				return h.State == qatypes.WorkerFailed
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestDispatchFast_PoolCapNeverExceeded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FastPoolSize = 2
	started := make(chan struct{}, 10)
	release := make(chan struct{})

	exec := &blockingExecutor{started: started, release: release}
	sup := NewSupervisor(cfg, exec, eventbus.NewInMemoryBroker())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 2; i++ {
		_, err := sup.Dispatch(ctx, fastDecision("b"))
		require.NoError(t, err)
	}

	admitCtx, admitCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer admitCancel()
	_, err := sup.Dispatch(admitCtx, fastDecision("b3"))
	assert.ErrorIs(t, err, context.DeadlineExceeded, "third dispatch must block until a slot frees")

	close(release)
}

type blockingExecutor struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingExecutor) Execute(ctx context.Context, batch qatypes.Batch, retrieval qatypes.RetrievalContext) error {
	select {
	case b.started <- struct{}{}:
	default:
	}
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func TestCancel_FastWorkerTransitionsToCancelled(t *testing.T) {
	cfg := DefaultConfig()
	release := make(chan struct{})
	exec := &blockingExecutor{started: make(chan struct{}, 1), release: release}
	sup := NewSupervisor(cfg, exec, eventbus.NewInMemoryBroker())
	defer close(release)

	handle, err := sup.Dispatch(context.Background(), fastDecision("b1"))
	require.NoError(t, err)

	require.NoError(t, sup.Cancel(handle.WorkerID))

	require.Eventually(t, func() bool {
		for _, h := range sup.Handles() {
			if h.WorkerID == handle.WorkerID {
				return h.State == qatypes.WorkerCancelled
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestCancel_UnknownWorkerReturnsError(t *testing.T) {
	sup := NewSupervisor(DefaultConfig(), &stubExecutor{}, eventbus.NewInMemoryBroker())
	assert.Error(t, sup.Cancel("does-not-exist"))
}

func TestShutdown_IsIdempotent(t *testing.T) {
	sup := NewSupervisor(DefaultConfig(), &stubExecutor{}, eventbus.NewInMemoryBroker())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, sup.Shutdown(ctx))
	require.NoError(t, sup.Shutdown(ctx))
}

func TestDispatch_RejectsAfterShutdown(t *testing.T) {
	sup := NewSupervisor(DefaultConfig(), &stubExecutor{}, eventbus.NewInMemoryBroker())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sup.Shutdown(ctx))

	_, err := sup.Dispatch(context.Background(), fastDecision("b1"))
	assert.ErrorIs(t, err, ErrShuttingDown)
}
