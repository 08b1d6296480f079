// Package workerregistry defines the external WorkerRegistry contract
// (spec.md §6): register/heartbeat/unregister for observability only,
// never on the orchestrator's critical path. InMemoryRegistry is the
// default adapter; LogRegistry emits debug-level log lines only.
package workerregistry
