// Package escalation implements the EscalationManager: a small state
// machine (PENDING -> IN_REVIEW -> {RESOLVED, CANNOT_FIX, WONT_FIX,
// CANCELLED}, with PENDING -> CANCELLED also allowed) over EscalationCases,
// backed by a substitutable Store. Every transition publishes an event on
// the injected EventBus and, optionally, notifies a human channel via a
// Notifier.
package escalation
