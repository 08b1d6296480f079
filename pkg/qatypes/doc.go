// Package qatypes defines the core data structures shared by every
// orchestrator component: Violation, Batch, Score, RetrievalContext,
// RoutingDecision, WorkerHandle, EscalationCase, and PatternEntry.
//
// All types are plain structs with closed-enumeration string types for
// fields like kind, severity, channel, and state. Batch and
// RetrievalContext carry JSON tags because they cross the process boundary
// into spawned heavy workers via environment variables.
package qatypes
