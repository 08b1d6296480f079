package scorer

import "github.com/qaorchestrator/core/pkg/qatypes"

// fileCountSaturationPoint is the file count at which the file-count
// component saturates at 1.0 (spec.md §4.2: "1 file -> 0.0, 20+ files -> 1.0").
const fileCountSaturationPoint = 20

// Score computes the complexity Score for a batch. It is a pure function:
// no I/O, no clock, deterministic for identical inputs.
func Score(batch qatypes.Batch, churn qatypes.ChurnWatchlist) qatypes.Score {
	f := fileCountScore(batch.FileCount())
	k, kindWeight := kindScore(batch.Violations)
	d := dependencyScore(batch)
	c := churnScore(batch.Violations, churn)

	total := qatypes.FileCountWeight*f +
		qatypes.KindWeight*k +
		qatypes.DependencyWeight*d +
		qatypes.ChurnWeight*c

	return qatypes.Score{
		Total:            clamp01(total),
		FileCountScore:   f,
		KindScore:        k,
		DependencyScore:  d,
		ChurnScore:       c,
		KindWeightActive: kindWeight,
		ScorerVersion:    qatypes.ScorerVersion,
	}
}

func fileCountScore(fileCount int) float64 {
	if fileCount <= 1 {
		return 0.0
	}
	if fileCount >= fileCountSaturationPoint {
		return 1.0
	}
	return float64(fileCount-1) / float64(fileCountSaturationPoint-1)
}

// kindScore returns the batch's kind component (the max per-violation kind
// cost, "worst-case dominates") alongside the raw max cost itself, which
// DecisionEngine's rule 3 consults directly as score.kind_weight.
func kindScore(violations []qatypes.Violation) (score float64, maxCost float64) {
	for _, v := range violations {
		if cost := qatypes.KindCost(v.Kind); cost > maxCost {
			maxCost = cost
		}
	}
	return maxCost, maxCost
}

// dependencyScore is the fraction of violations whose kind is in the
// import/dependency family or whose file differs from the batch's modal
// directory.
func dependencyScore(batch qatypes.Batch) float64 {
	if len(batch.Violations) == 0 {
		return 0
	}
	modalDir := batch.ModalDirectory()
	touched := 0
	for _, v := range batch.Violations {
		if qatypes.IsDependencyFamily(v.Kind) || qatypes.DirectoryOf(v.FilePath) != modalDir {
			touched++
		}
	}
	return float64(touched) / float64(len(batch.Violations))
}

func churnScore(violations []qatypes.Violation, churn qatypes.ChurnWatchlist) float64 {
	if len(violations) == 0 || len(churn) == 0 {
		return 0
	}
	hits := 0
	for _, v := range violations {
		if churn.Contains(v.FilePath) {
			hits++
		}
	}
	return float64(hits) / float64(len(violations))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
