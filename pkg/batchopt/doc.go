// Package batchopt implements BatchOptimizer: partitions a raw Violation
// stream into Batches that respect the size and file caps (spec.md §4.3),
// choosing among four grouping strategies (by-type, by-file, by-complexity,
// mixed). Partitioning is pure and deterministic: identical input always
// yields identical, identically-ordered output.
package batchopt
