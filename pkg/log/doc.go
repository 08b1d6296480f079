// Package log provides structured logging for the orchestrator using
// zerolog. A package-level Logger is configured once via Init; component
// loggers (WithComponent, WithWorkerID, WithCaseID, WithCorrelationID) carry
// context fields through the poll loop, scorer, supervisor, and escalation
// manager without threading a logger argument everywhere.
package log
