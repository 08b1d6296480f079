package worker

import (
	"os"
	"time"

	"github.com/qaorchestrator/core/pkg/qatypes"
)

// healthSweepLoop runs at cfg.HealthSweepInterval and enforces the
// liveness/timeout contract (spec.md §4.5): a non-terminal handle past its
// per-kind deadline with a stale heartbeat is transitioned to timed-out;
// heavy workers in timed-out get a soft-stop, then a hard-kill after
// SoftStopGrace.
func (s *Supervisor) healthSweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.HealthSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.rootCtx.Done():
			return
		}
	}
}

func (s *Supervisor) sweep() {
	now := time.Now()

	s.mu.RLock()
	snapshot := make([]*qatypes.WorkerHandle, 0, len(s.handles))
	for _, h := range s.handles {
		snapshot = append(snapshot, h)
	}
	s.mu.RUnlock()

	for _, h := range snapshot {
		s.sweepOne(h, now)
	}
}

func (s *Supervisor) sweepOne(h *qatypes.WorkerHandle, now time.Time) {
	s.mu.RLock()
	state := h.State
	startedAt := h.StartedAt
	lastHeartbeat := h.LastHeartbeatAt
	heartbeatPath := h.HeartbeatPath
	softStopSentAt := h.SoftStopSentAt
	hardKillSentAt := h.HardKillSentAt
	kind := h.Kind
	s.mu.RUnlock()

	if state.IsTerminal() && state != qatypes.WorkerTimedOut {
		return
	}

	if kind == qatypes.WorkerKindHeavySpawned && heartbeatPath != "" {
		if info, err := os.Stat(heartbeatPath); err == nil {
			s.mu.Lock()
			if info.ModTime().After(h.LastHeartbeatAt) {
				h.LastHeartbeatAt = info.ModTime()
			}
			lastHeartbeat = h.LastHeartbeatAt
			s.mu.Unlock()
		}
	}

	timeout := s.timeoutFor(kind)
	deadline := startedAt.Add(timeout)

	if state != qatypes.WorkerTimedOut {
		heartbeatStale := lastHeartbeat.IsZero() || now.Sub(lastHeartbeat) >= s.cfg.HeartbeatStale
		if now.After(deadline) && heartbeatStale && s.markTimedOutIfStillLive(h) {
			if kind == qatypes.WorkerKindHeavySpawned {
				_ = s.softStopHeavy(h, "timed-out")
			}
		}
		return
	}

	// Already timed-out: escalate from soft-stop to hard-kill after grace.
	if kind == qatypes.WorkerKindHeavySpawned && !softStopSentAt.IsZero() && hardKillSentAt.IsZero() {
		if now.Sub(softStopSentAt) >= s.cfg.SoftStopGrace {
			_ = s.hardKillHeavy(h)
		}
	}
}

// markTimedOutIfStillLive transitions h to timed-out unless it has already
// reached a terminal state since the caller's last read — closes the race
// window between sweepOne's snapshot read and this mutation.
func (s *Supervisor) markTimedOutIfStillLive(h *qatypes.WorkerHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.State.IsTerminal() {
		return false
	}
	h.State = qatypes.WorkerTimedOut
	h.FinishedAt = time.Now()
	s.emitLocked(h, "deadline exceeded with stale heartbeat")
	return true
}

func (s *Supervisor) timeoutFor(kind qatypes.WorkerKind) time.Duration {
	if kind == qatypes.WorkerKindHeavySpawned {
		return s.cfg.HeavyTimeout
	}
	return s.cfg.FastTimeout
}
