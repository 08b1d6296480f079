// Package daemon wires the orchestrator's components into the top-level
// poll loop (spec.md §4.7) and exposes the read-only observability
// snapshot over HTTP, grounded in the teacher's pkg/scheduler ticker shape
// and pkg/api server wiring.
package daemon
