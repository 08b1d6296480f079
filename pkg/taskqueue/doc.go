// Package taskqueue defines the external TaskQueue contract the daemon
// polls (spec.md §6): claim-with-lease, lease extension, and terminal
// outcomes. InMemoryQueue is a default/test adapter; RedisQueue is a
// claim-with-lease implementation over go-redis.
package taskqueue
