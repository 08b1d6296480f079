// Package worker implements the WorkerSupervisor: a bounded in-process fast
// pool and a bounded spawned-process heavy pool, with a background health
// sweep that times out, soft-stops, and hard-kills stalled workers.
//
// The fast pool is cooperatively scheduled on the caller's goroutine via a
// blocking, cancellable admission semaphore — never a busy loop. The heavy
// pool spawns an OS child process per dispatch and hands the task to it
// exclusively through environment variables; the supervisor never reaches
// into the child process, only observes its exit and an optional heartbeat
// file the child may touch.
package worker
