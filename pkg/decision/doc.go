// Package decision implements DecisionEngine: maps a scored, retrieval-
// enriched Batch to a RoutingDecision — FAST, HEAVY, or HUMAN — by
// evaluating five rules top to bottom, first match wins (spec.md §4.4).
// Thresholds are injected, never hardcoded, so operators can tune routing
// without a rebuild.
package decision
