// Package scorer implements ComplexityScorer: a pure function from a
// qatypes.Batch to a qatypes.Score, combining file-count, kind, dependency,
// and churn signals. It performs no I/O and touches no clock, so it is
// exercised entirely by table-driven tests.
package scorer
