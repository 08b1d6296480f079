package batchopt

import (
	"sort"

	"github.com/google/uuid"
	"github.com/qaorchestrator/core/pkg/qatypes"
)

// simpleComplexThreshold is the kind-cost split point for the by-complexity
// strategy (spec.md §4.3: "simple" <0.30, "complex" >=0.30).
const simpleComplexThreshold = 0.30

// mixedDominanceThreshold is the >80% share spec.md §4.3 requires before
// mixed collapses to by-type or by-file.
const mixedDominanceThreshold = 0.80

// Partition splits violations into Batches under the configured strategy.
// An empty strategyHint selects "mixed", spec.md's default.
func Partition(violations []qatypes.Violation, strategyHint qatypes.StrategyTag) []qatypes.Batch {
	if len(violations) == 0 {
		return nil
	}

	strategy := strategyHint
	if strategy == "" || strategy == qatypes.StrategyMixed {
		strategy = resolveMixedStrategy(violations)
	}

	switch strategy {
	case qatypes.StrategyByType:
		return partitionByType(violations)
	case qatypes.StrategyByFile:
		return partitionByFile(violations)
	case qatypes.StrategyByComplexity:
		return partitionByComplexity(violations)
	default:
		return partitionByType(violations)
	}
}

// resolveMixedStrategy inspects the raw list per spec.md §4.3's mixed rule.
func resolveMixedStrategy(violations []qatypes.Violation) qatypes.StrategyTag {
	total := float64(len(violations))

	kindCounts := make(map[qatypes.ViolationKind]int)
	dirCounts := make(map[string]int)
	for _, v := range violations {
		kindCounts[v.Kind]++
		dirCounts[qatypes.DirectoryOf(v.FilePath)]++
	}

	if dominates(kindCounts, total) {
		return qatypes.StrategyByType
	}
	if dominatesStr(dirCounts, total) {
		return qatypes.StrategyByFile
	}
	return qatypes.StrategyByComplexity
}

func dominates(counts map[qatypes.ViolationKind]int, total float64) bool {
	for _, n := range counts {
		if float64(n)/total > mixedDominanceThreshold {
			return true
		}
	}
	return false
}

func dominatesStr(counts map[string]int, total float64) bool {
	for _, n := range counts {
		if float64(n)/total > mixedDominanceThreshold {
			return true
		}
	}
	return false
}

// partitionByType groups by kind, sorted lexicographically by kind, then
// splits each group to respect the caps. Unrecognized kinds are
// canonicalized to the single reserved kind=unknown bucket (spec.md §4.2)
// before grouping, rather than each distinct unrecognized string getting
// its own batch.
func partitionByType(violations []qatypes.Violation) []qatypes.Batch {
	groups := make(map[qatypes.ViolationKind][]qatypes.Violation)
	var keys []qatypes.ViolationKind
	for _, v := range violations {
		kind := qatypes.CanonicalKind(v.Kind)
		if _, ok := groups[kind]; !ok {
			keys = append(keys, kind)
		}
		groups[kind] = append(groups[kind], v)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var batches []qatypes.Batch
	for _, k := range keys {
		batches = append(batches, splitGroup(groups[k], qatypes.StrategyByType)...)
	}
	return batches
}

// partitionByFile groups by file path, sorted lexicographically. A file
// with more than MaxViolationsPerBatch violations yields multiple
// consecutive batches for that file.
func partitionByFile(violations []qatypes.Violation) []qatypes.Batch {
	groups := make(map[string][]qatypes.Violation)
	var keys []string
	for _, v := range violations {
		if _, ok := groups[v.FilePath]; !ok {
			keys = append(keys, v.FilePath)
		}
		groups[v.FilePath] = append(groups[v.FilePath], v)
	}
	sort.Strings(keys)

	var batches []qatypes.Batch
	for _, k := range keys {
		batches = append(batches, splitGroup(groups[k], qatypes.StrategyByFile)...)
	}
	return batches
}

// partitionByComplexity pre-scores each violation by kind cost and splits
// into "simple" and "complex" streams, "simple" sorting first.
func partitionByComplexity(violations []qatypes.Violation) []qatypes.Batch {
	var simple, complex []qatypes.Violation
	for _, v := range violations {
		if qatypes.KindCost(v.Kind) < simpleComplexThreshold {
			simple = append(simple, v)
		} else {
			complex = append(complex, v)
		}
	}

	var batches []qatypes.Batch
	batches = append(batches, splitGroup(simple, qatypes.StrategyByComplexity)...)
	batches = append(batches, splitGroup(complex, qatypes.StrategyByComplexity)...)
	return batches
}

// splitGroup breaks a single grouped slice of violations into one or more
// Batches, each respecting MaxViolationsPerBatch and MaxFilesPerBatch,
// preserving input order.
func splitGroup(violations []qatypes.Violation, tag qatypes.StrategyTag) []qatypes.Batch {
	if len(violations) == 0 {
		return nil
	}

	var batches []qatypes.Batch
	var current []qatypes.Violation
	files := make(map[string]struct{})

	flush := func() {
		if len(current) == 0 {
			return
		}
		batches = append(batches, qatypes.Batch{
			ID:          uuid.NewString(),
			Violations:  current,
			StrategyTag: tag,
		})
		current = nil
		files = make(map[string]struct{})
	}

	for _, v := range violations {
		_, fileAlreadyIn := files[v.FilePath]
		wouldExceedFiles := !fileAlreadyIn && len(files) >= qatypes.MaxFilesPerBatch
		wouldExceedCount := len(current) >= qatypes.MaxViolationsPerBatch

		if wouldExceedFiles || wouldExceedCount {
			flush()
		}

		current = append(current, v)
		files[v.FilePath] = struct{}{}
	}
	flush()

	return batches
}
