package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/qaorchestrator/core/pkg/eventbus"
	"github.com/qaorchestrator/core/pkg/log"
	"github.com/qaorchestrator/core/pkg/qatypes"
)

// ErrBreakerOpen is returned by Dispatch when the heavy-pool circuit
// breaker is open. Callers must treat this as a routing outcome, not a
// transient failure: convert the decision directly to an EscalationCase
// with reason qatypes.ReasonBreakerOpen rather than retrying.
var ErrBreakerOpen = errors.New("worker: heavy pool circuit breaker is open")

// ErrShuttingDown is returned by Dispatch once Shutdown has begun.
var ErrShuttingDown = errors.New("worker: supervisor is shutting down")

// FastExecutor performs (or delegates) the fix for a Batch in-process. It
// must respect ctx cancellation promptly: the fast pool is cooperatively
// scheduled and never forcibly preempted.
type FastExecutor interface {
	Execute(ctx context.Context, batch qatypes.Batch, retrieval qatypes.RetrievalContext) error
}

// Supervisor is the WorkerSupervisor: it owns the fast and heavy pools and
// is the sole mutator of WorkerHandle state (spec.md §9's single-owner
// invariant).
type Supervisor struct {
	cfg      Config
	executor FastExecutor
	bus      eventbus.EventBus
	breaker  *gobreaker.CircuitBreaker

	fastSem  chan struct{}
	heavySem chan struct{}

	mu      sync.RWMutex
	handles map[string]*qatypes.WorkerHandle
	cancels map[string]context.CancelFunc

	events chan LifecycleEvent

	shutdownOnce sync.Once
	shuttingDown chan struct{}
	rootCtx      context.Context
	rootCancel   context.CancelFunc
	wg           sync.WaitGroup
}

// NewSupervisor creates a Supervisor. executor handles FAST batches;
// HEAVY batches are spawned via cfg.StartupScript.
func NewSupervisor(cfg Config, executor FastExecutor, bus eventbus.EventBus) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "heavy-worker-spawn",
		MaxRequests: 1,
		Interval:    cfg.BreakerWindow,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
	})

	s := &Supervisor{
		cfg:          cfg,
		executor:     executor,
		bus:          bus,
		breaker:      breaker,
		fastSem:      make(chan struct{}, cfg.FastPoolSize),
		heavySem:     make(chan struct{}, cfg.HeavyPoolSize),
		handles:      make(map[string]*qatypes.WorkerHandle),
		cancels:      make(map[string]context.CancelFunc),
		events:       make(chan LifecycleEvent, eventsBuffer),
		shuttingDown: make(chan struct{}),
		rootCtx:      ctx,
		rootCancel:   cancel,
	}

	s.wg.Add(1)
	go s.healthSweepLoop()

	return s
}

// Dispatch admits decision's batch into the appropriate pool and returns
// its WorkerHandle. For FAST, admission blocks cooperatively (never spins)
// until a pool slot frees or ctx is cancelled. For HEAVY, a breaker-open
// pool returns ErrBreakerOpen immediately without blocking.
func (s *Supervisor) Dispatch(ctx context.Context, decision qatypes.RoutingDecision) (*qatypes.WorkerHandle, error) {
	select {
	case <-s.shuttingDown:
		return nil, ErrShuttingDown
	default:
	}

	switch decision.Channel {
	case qatypes.ChannelFast:
		return s.dispatchFast(ctx, decision)
	case qatypes.ChannelHeavy:
		return s.dispatchHeavy(ctx, decision)
	default:
		return nil, errors.New("worker: dispatch called with non-worker channel " + string(decision.Channel))
	}
}

func (s *Supervisor) dispatchFast(ctx context.Context, decision qatypes.RoutingDecision) (*qatypes.WorkerHandle, error) {
	select {
	case s.fastSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.shuttingDown:
		return nil, ErrShuttingDown
	}

	workerID := uuid.NewString()
	taskCtx, cancel := context.WithTimeout(s.rootCtx, s.cfg.FastTimeout)

	handle := &qatypes.WorkerHandle{
		WorkerID:      workerID,
		Kind:          qatypes.WorkerKindFastInproc,
		BatchRef:      decision.Batch.ID,
		State:         qatypes.WorkerStarting,
		StartedAt:     time.Now(),
		CorrelationID: uuid.NewString(),
	}
	s.registerHandle(handle, cancel)
	s.transition(handle, qatypes.WorkerRunning, "")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.fastSem }()
		defer cancel()

		err := s.executor.Execute(taskCtx, decision.Batch, decision.Retrieval)

		s.mu.Lock()
		defer s.mu.Unlock()
		h := s.handles[workerID]
		if h == nil || h.State.IsTerminal() {
			// Already transitioned externally (e.g. Cancel or the health
			// sweep's timeout); the executor's own outcome is moot.
			return
		}
		switch {
		case taskCtx.Err() != nil && err != nil:
			h.State = qatypes.WorkerTimedOut
		case err != nil:
			h.State = qatypes.WorkerFailed
		default:
			h.State = qatypes.WorkerCompleted
		}
		h.FinishedAt = time.Now()
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		s.emitLocked(h, detail)
	}()

	return handle, nil
}

func (s *Supervisor) registerHandle(h *qatypes.WorkerHandle, cancel context.CancelFunc) {
	s.mu.Lock()
	s.handles[h.WorkerID] = h
	s.cancels[h.WorkerID] = cancel

	active := 0
	for _, other := range s.handles {
		if other.Kind == h.Kind && !other.State.IsTerminal() {
			active++
		}
	}
	s.mu.Unlock()

	s.checkPoolInvariant(h.Kind, active)
}

// poolCap returns the configured slot count for kind.
func (s *Supervisor) poolCap(kind qatypes.WorkerKind) int {
	if kind == qatypes.WorkerKindHeavySpawned {
		return s.cfg.HeavyPoolSize
	}
	return s.cfg.FastPoolSize
}

// checkPoolInvariant publishes qa.monitor.invariant_violation if active
// exceeds the pool's configured capacity. The admission semaphores should
// make this unreachable; this is a coerce-don't-crash backstop, not the
// primary admission control (spec.md §7).
func (s *Supervisor) checkPoolInvariant(kind qatypes.WorkerKind, active int) {
	capacity := s.poolCap(kind)
	if capacity <= 0 || active <= capacity {
		return
	}
	log.WithComponent("worker-supervisor").Warn().
		Str("kind", string(kind)).Int("active", active).Int("cap", capacity).
		Msg("pool capacity invariant violated, coercing rather than crashing")
	if s.bus != nil {
		s.bus.Publish("qa.monitor.invariant_violation", map[string]any{
			"kind":   string(kind),
			"active": active,
			"cap":    capacity,
		})
	}
}

// transition mutates a handle's state under lock and emits the event.
func (s *Supervisor) transition(h *qatypes.WorkerHandle, state qatypes.WorkerState, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.State = state
	if state.IsTerminal() {
		h.FinishedAt = time.Now()
	}
	s.emitLocked(h, detail)
}

// emitLocked must be called with s.mu held.
func (s *Supervisor) emitLocked(h *qatypes.WorkerHandle, detail string) {
	s.emit(LifecycleEvent{
		WorkerID:      h.WorkerID,
		Kind:          h.Kind,
		BatchRef:      h.BatchRef,
		State:         h.State,
		Timestamp:     time.Now(),
		Detail:        detail,
		ExitCode:      h.ExitCode,
		CorrelationID: h.CorrelationID,
	})
}

// Cancel requests cancellation of a non-terminal WorkerHandle. Fast workers
// observe ctx cancellation at their next checkpoint; heavy workers receive
// an immediate soft-stop signal.
func (s *Supervisor) Cancel(workerID string) error {
	s.mu.Lock()
	h, ok := s.handles[workerID]
	cancel := s.cancels[workerID]
	s.mu.Unlock()

	if !ok {
		return errors.New("worker: unknown worker id " + workerID)
	}
	if h.State.IsTerminal() {
		return nil
	}

	if h.Kind == qatypes.WorkerKindFastInproc {
		if cancel != nil {
			cancel()
		}
		s.transition(h, qatypes.WorkerCancelled, "cancelled by caller")
		return nil
	}

	return s.softStopHeavy(h, "cancelled by caller")
}

// Handles returns a point-in-time copy of all tracked handles, for the
// daemon's snapshot endpoint.
func (s *Supervisor) Handles() []qatypes.WorkerHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]qatypes.WorkerHandle, 0, len(s.handles))
	for _, h := range s.handles {
		out = append(out, *h)
	}
	return out
}

// Shutdown cancels all in-flight work with a grace period and stops
// accepting new dispatches. Idempotent: subsequent calls are no-ops.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.shuttingDown)

		s.mu.RLock()
		heavy := make([]*qatypes.WorkerHandle, 0)
		for _, h := range s.handles {
			if h.Kind == qatypes.WorkerKindHeavySpawned && !h.State.IsTerminal() {
				heavy = append(heavy, h)
			}
		}
		s.mu.RUnlock()

		for _, h := range heavy {
			_ = s.softStopHeavy(h, "supervisor shutdown")
		}

		s.rootCancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			shutdownErr = ctx.Err()
		case <-time.After(s.cfg.SoftStopGrace + s.cfg.HealthSweepInterval):
			log.WithComponent("worker").Warn().Msg("shutdown grace period elapsed with workers still draining")
		}

		close(s.events)
	})
	return shutdownErr
}
