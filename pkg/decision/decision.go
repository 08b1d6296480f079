package decision

import "github.com/qaorchestrator/core/pkg/qatypes"

// Thresholds are the injectable routing knobs from spec.md §6's
// configuration keys. Defaults match the spec.
type Thresholds struct {
	HighComplexity   float64 // routing_high_complexity_threshold, default 0.70
	SecurityKind     float64 // routing_security_kind_threshold, default 0.80
	LowConfidence    float64 // routing_low_confidence_threshold, default 0.30
	MediumComplexity float64 // routing_medium_complexity_threshold, default 0.40
}

// DefaultThresholds returns the threshold set from spec.md §6.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighComplexity:   0.70,
		SecurityKind:     0.80,
		LowConfidence:    0.30,
		MediumComplexity: 0.40,
	}
}

// Decide maps a scored, retrieval-enriched batch to a RoutingDecision.
// Rule order is part of the contract: first match wins, identical inputs
// always yield an identical decision.
func Decide(batch qatypes.Batch, score qatypes.Score, retrieval qatypes.RetrievalContext, th Thresholds) qatypes.RoutingDecision {
	base := qatypes.RoutingDecision{
		Batch:     batch,
		Score:     score,
		Retrieval: retrieval,
		HeavyMode: qatypes.HeavyModeHeadless,
	}

	if batch.HasCriticalSeverity() {
		base.Channel = qatypes.ChannelHuman
		base.ReasonCode = qatypes.ReasonCriticalSeverity
		return base
	}

	if score.Total >= th.HighComplexity {
		base.Channel = qatypes.ChannelHeavy
		base.ReasonCode = qatypes.ReasonHighComplexity
		return base
	}

	if score.KindWeightActive >= th.SecurityKind {
		base.Channel = qatypes.ChannelHeavy
		base.ReasonCode = qatypes.ReasonSecurityKind
		base.RequireSignOff = true
		return base
	}

	if retrieval.Confidence < th.LowConfidence && score.Total >= th.MediumComplexity {
		base.Channel = qatypes.ChannelHeavy
		base.ReasonCode = qatypes.ReasonLowConfidenceMediumComplex
		return base
	}

	base.Channel = qatypes.ChannelFast
	base.ReasonCode = qatypes.ReasonAutoFixable
	return base
}
