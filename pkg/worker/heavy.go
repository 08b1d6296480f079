package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/qaorchestrator/core/pkg/log"
	"github.com/qaorchestrator/core/pkg/qatypes"
)

// env var names handed off to a spawned heavy worker (spec.md §6).
const (
	envWorkerID      = "QA_WORKER_ID"
	envMode          = "QA_MODE"
	envTaskJSON      = "QA_TASK_JSON"
	envRAGJSON       = "QA_RAG_JSON"
	envCorrelationID = "QA_CORRELATION_ID"
	envHeartbeatPath = "QA_HEARTBEAT_PATH"
	envDeadlineEpoch = "QA_DEADLINE_EPOCH_S"
)

func (s *Supervisor) dispatchHeavy(ctx context.Context, decision qatypes.RoutingDecision) (*qatypes.WorkerHandle, error) {
	select {
	case s.heavySem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.shuttingDown:
		return nil, ErrShuttingDown
	}

	workerID := uuid.NewString()
	correlationID := uuid.NewString()
	deadline := time.Now().Add(s.cfg.HeavyTimeout)
	heartbeatPath := filepath.Join(s.cfg.HeartbeatDir, workerID+".heartbeat")

	env, err := buildEnvHandoff(workerID, correlationID, heartbeatPath, deadline, decision)
	if err != nil {
		<-s.heavySem
		return nil, fmt.Errorf("worker: build env handoff: %w", err)
	}

	handle := &qatypes.WorkerHandle{
		WorkerID:       workerID,
		Kind:           qatypes.WorkerKindHeavySpawned,
		BatchRef:       decision.Batch.ID,
		State:          qatypes.WorkerStarting,
		StartedAt:      time.Now(),
		RequireSignOff: decision.RequireSignOff,
		EnvHandoff:     env,
		HeartbeatPath:  heartbeatPath,
		CorrelationID:  correlationID,
		DeadlineEpochS: deadline.Unix(),
	}

	proc, err := s.spawnViaBreaker(envSlice(env))
	if err != nil {
		<-s.heavySem
		if errors.Is(err, ErrBreakerOpen) {
			return nil, ErrBreakerOpen
		}
		return nil, err
	}

	handle.Process = proc
	s.registerHandle(handle, nil)
	s.transition(handle, qatypes.WorkerRunning, "")

	s.wg.Add(1)
	go s.awaitHeavyExit(handle, proc)

	return handle, nil
}

// spawnViaBreaker launches the configured startup script. Only a launch
// failure (script missing or non-executable) counts against the breaker;
// a process that starts and later misbehaves is the health sweep's concern,
// not the breaker's.
func (s *Supervisor) spawnViaBreaker(env []string) (*os.Process, error) {
	result, err := s.breaker.Execute(func() (any, error) {
		cmd := exec.Command(s.cfg.StartupScript)
		cmd.Env = env
		cmd.Stdout = nil
		cmd.Stderr = nil
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return cmd.Process, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrBreakerOpen
		}
		return nil, err
	}
	return result.(*os.Process), nil
}

func (s *Supervisor) awaitHeavyExit(handle *qatypes.WorkerHandle, proc *os.Process) {
	defer s.wg.Done()
	defer func() { <-s.heavySem }()

	procState, err := proc.Wait()

	s.mu.Lock()
	h := s.handles[handle.WorkerID]
	s.mu.Unlock()
	if h == nil {
		return
	}
	if h.State.IsTerminal() {
		// Already transitioned by the health sweep (timeout/hard-kill).
		return
	}

	switch {
	case err != nil:
		s.transition(h, qatypes.WorkerFailed, err.Error())
	case procState != nil && !procState.Success():
		s.mu.Lock()
		h.ExitCode = procState.ExitCode()
		s.mu.Unlock()
		s.transition(h, qatypes.WorkerFailed, fmt.Sprintf("heavy worker exited with code %d", h.ExitCode))
	default:
		s.transition(h, qatypes.WorkerCompleted, "")
	}
}

func buildEnvHandoff(workerID, correlationID, heartbeatPath string, deadline time.Time, decision qatypes.RoutingDecision) (map[string]string, error) {
	taskRaw, err := json.Marshal(decision.Batch)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}
	ragRaw, err := json.Marshal(decision.Retrieval.Matches)
	if err != nil {
		return nil, fmt.Errorf("marshal retrieval: %w", err)
	}

	mode := qatypes.HeavyModeHeadless
	if decision.HeavyMode != "" {
		mode = decision.HeavyMode
	}

	return map[string]string{
		envWorkerID:      workerID,
		envMode:          mode,
		envTaskJSON:      string(taskRaw),
		envRAGJSON:       string(ragRaw),
		envCorrelationID: correlationID,
		envHeartbeatPath: heartbeatPath,
		envDeadlineEpoch: strconv.FormatInt(deadline.Unix(), 10),
	}, nil
}

func envSlice(handoff map[string]string) []string {
	out := make([]string, 0, len(handoff)+len(os.Environ()))
	out = append(out, os.Environ()...)
	for k, v := range handoff {
		out = append(out, k+"="+v)
	}
	return out
}

// softStopSignal is the graceful-termination signal sent to heavy worker
// processes before escalating to a hard kill.
const softStopSignal = syscall.SIGTERM

// softStopHeavy sends a graceful termination signal to a heavy worker's
// process. The health sweep escalates to a hard kill after SoftStopGrace
// if the process has not exited.
func (s *Supervisor) softStopHeavy(h *qatypes.WorkerHandle, detail string) error {
	s.mu.Lock()
	alreadySent := !h.SoftStopSentAt.IsZero()
	if !alreadySent {
		h.SoftStopSentAt = time.Now()
	}
	s.mu.Unlock()
	if alreadySent {
		return nil
	}

	log.WithWorkerID(h.WorkerID).Info().Str("reason", detail).Msg("sending soft-stop to heavy worker")

	if h.Process == nil {
		return nil
	}
	if err := h.Process.Signal(softStopSignal); err != nil {
		log.WithWorkerID(h.WorkerID).Warn().Err(err).Msg("failed to send soft-stop signal")
		return err
	}
	return nil
}

// hardKillHeavy forcibly terminates a heavy worker's process.
func (s *Supervisor) hardKillHeavy(h *qatypes.WorkerHandle) error {
	s.mu.Lock()
	h.HardKillSentAt = time.Now()
	s.mu.Unlock()

	if h.Process == nil {
		return nil
	}
	return h.Process.Kill()
}
