package qatypes

// Score component weights, fixed by spec.md §3 and §4.2.
const (
	FileCountWeight = 0.25
	KindWeight      = 0.40
	DependencyWeight = 0.20
	ChurnWeight      = 0.15
)

// ScorerVersion identifies the scoring algorithm revision. Bump when the
// weights or normalization functions change so downstream consumers can
// detect a behavior shift.
const ScorerVersion = "v1"

// Score is the complexity score produced per Batch by the ComplexityScorer.
// Immutable once produced.
type Score struct {
	Total            float64 `json:"total"`
	FileCountScore   float64 `json:"file_count_score"`
	KindScore        float64 `json:"kind_score"`
	DependencyScore  float64 `json:"dependency_score"`
	ChurnScore       float64 `json:"churn_score"`
	KindWeightActive float64 `json:"kind_weight"` // max per-violation kind cost observed
	ScorerVersion    string  `json:"scorer_version"`
}
