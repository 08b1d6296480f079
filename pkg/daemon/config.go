package daemon

import "time"

// Config holds the Daemon's own tunables. Pool sizes are duplicated from
// worker.Config because Supervisor does not expose its internal
// configuration (the same reason metrics.PoolCapacity exists).
type Config struct {
	PollInterval    time.Duration // poll_interval_s, default 5s
	ClaimBatchSize  int           // claim_batch_size, default 8
	LeaseDuration   time.Duration // handed to queue.ClaimNext

	FastPoolSize  int
	HeavyPoolSize int

	QueuePollTimeout    time.Duration // default 10s, non-fatal on expiry
	EventPublishTimeout time.Duration // default 5s

	MaxRetries int // max_retries, default 3

	HTTPAddr string // observability snapshot endpoint, e.g. ":8090"
}

// DefaultConfig returns the Daemon defaults from spec.md §6.
func DefaultConfig() Config {
	return Config{
		PollInterval:        5 * time.Second,
		ClaimBatchSize:      8,
		LeaseDuration:       2 * time.Minute,
		FastPoolSize:        3,
		HeavyPoolSize:       2,
		QueuePollTimeout:    10 * time.Second,
		EventPublishTimeout: 5 * time.Second,
		MaxRetries:          3,
		HTTPAddr:            ":8090",
	}
}
