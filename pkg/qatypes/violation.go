package qatypes

// ViolationKind is the closed enumeration of violation families the
// orchestrator understands. Unrecognized kinds are not rejected: a
// Violation keeps its original Kind string, and KindCost and CanonicalKind
// treat it as KindUnknown.
type ViolationKind string

const (
	KindStyle                ViolationKind = "style"
	KindUnusedImport         ViolationKind = "unused-import"
	KindConfiguration        ViolationKind = "configuration"
	KindLoggingConvention    ViolationKind = "logging-convention"
	KindCrossFileImport      ViolationKind = "cross-file-import"
	KindArchitectural        ViolationKind = "architectural"
	KindConfigurationMigrate ViolationKind = "configuration-migration"
	KindSecurity             ViolationKind = "security"
	KindUnknown              ViolationKind = "unknown"
)

// Severity is an optional escalation-relevant signal attached to a Violation.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Violation is a single detected code-quality issue produced by an external
// detector. Immutable once observed.
type Violation struct {
	ID       string        `json:"id"`
	Kind     ViolationKind `json:"kind"`
	FilePath string        `json:"file_path"`
	Line     int           `json:"line"`
	Severity Severity      `json:"severity,omitempty"`
	Detail   string        `json:"detail,omitempty"`
}

// kindCost is the fixed per-kind intrinsic cost table used by both the
// ComplexityScorer (kind component) and the BatchOptimizer (by-complexity
// strategy and kind-cost split). Unknown kinds cost 0.50, the conservative
// "treat as architectural" default spec.md §4.3 calls for.
var kindCost = map[ViolationKind]float64{
	KindStyle:                0.05,
	KindUnusedImport:         0.05,
	KindConfiguration:        0.15,
	KindLoggingConvention:    0.25,
	KindCrossFileImport:      0.50,
	KindArchitectural:        0.50,
	KindConfigurationMigrate: 0.60,
	KindSecurity:             0.80,
	KindUnknown:              0.50,
}

// KindCost returns the intrinsic cost in [0,1] for a violation kind. Unknown
// or unmapped kinds return the unknown-kind default of 0.50.
func KindCost(kind ViolationKind) float64 {
	if cost, ok := kindCost[kind]; ok {
		return cost
	}
	return kindCost[KindUnknown]
}

// CanonicalKind maps kind to itself if it is one of the known
// ViolationKind values, or to KindUnknown otherwise. Callers that group or
// batch by kind (e.g. BatchOptimizer's by-type strategy) must canonicalize
// first so every unrecognized kind lands in the single reserved
// kind=unknown bucket, per spec.md §4.2, rather than one bucket per
// distinct unrecognized string.
func CanonicalKind(kind ViolationKind) ViolationKind {
	if _, ok := kindCost[kind]; ok {
		return kind
	}
	return KindUnknown
}

// IsDependencyFamily reports whether a kind belongs to the import/dependency
// family used by ComplexityScorer's dependency component.
func IsDependencyFamily(kind ViolationKind) bool {
	switch kind {
	case KindUnusedImport, KindCrossFileImport:
		return true
	default:
		return false
	}
}
