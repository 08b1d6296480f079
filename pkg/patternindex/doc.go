// Package patternindex implements the read-only PatternIndex façade over a
// corpus of past fixes (spec.md §4.1). It loads git_commits.json,
// chunks.json, and metadata.json eagerly at startup and answers top-k
// keyword-overlap similarity queries with an O(N) scan — acceptable for the
// corpus sizes (<=1e4 entries) this spec targets.
//
// A missing corpus directory is not fatal: the index initializes empty and
// every query returns zero matches with confidence 0. A corrupt corpus file
// is fatal and must be surfaced as a startup error.
//
// The keyword-overlap scheme is a v1 choice; Query's signature carries no
// assumption that would prevent swapping in a dense-embedding backend later.
package patternindex
