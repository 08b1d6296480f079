package worker

import "time"

// Config holds the WorkerSupervisor's pool caps, timeouts, and heavy-process
// spawn settings. Field defaults mirror spec.md §6's configuration table.
type Config struct {
	FastPoolSize  int // fast_pool_size, default 3
	HeavyPoolSize int // heavy_pool_size, default 2

	FastTimeout time.Duration // fast_timeout_s, default 60s
	HeavyTimeout time.Duration // heavy_timeout_s, default 300s

	HeartbeatStale      time.Duration // heartbeat_stale_s, default 60s
	HealthSweepInterval time.Duration // health_sweep_interval_s, default 5s
	SoftStopGrace       time.Duration // soft_stop_grace_s, default 10s

	// StartupScript launches a heavy worker; it must be executable and is
	// invoked with no arguments, task data passed entirely via environment.
	StartupScript string

	// HeartbeatDir is where per-worker heartbeat files are created; each
	// heavy worker's QA_HEARTBEAT_PATH is HeartbeatDir/<worker_id>.heartbeat.
	HeartbeatDir string

	// BreakerFailureThreshold is the number of consecutive heavy-spawn
	// launch failures (not runtime failures) within BreakerWindow that
	// opens the circuit breaker.
	BreakerFailureThreshold uint32
	BreakerWindow           time.Duration
	BreakerCooldown         time.Duration
}

// DefaultConfig returns the configuration defaults from spec.md §6.
func DefaultConfig() Config {
	return Config{
		FastPoolSize:            3,
		HeavyPoolSize:           2,
		FastTimeout:             60 * time.Second,
		HeavyTimeout:            300 * time.Second,
		HeartbeatStale:          60 * time.Second,
		HealthSweepInterval:     5 * time.Second,
		SoftStopGrace:           10 * time.Second,
		BreakerFailureThreshold: 3,
		BreakerWindow:           60 * time.Second,
		BreakerCooldown:         30 * time.Second,
	}
}
