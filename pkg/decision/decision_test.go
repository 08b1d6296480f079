package decision

import (
	"testing"

	"github.com/qaorchestrator/core/pkg/qatypes"
	"github.com/stretchr/testify/assert"
)

func TestDecide_CriticalSeverityShortCircuits(t *testing.T) {
	batch := qatypes.Batch{Violations: []qatypes.Violation{{Kind: qatypes.KindStyle, Severity: qatypes.SeverityCritical}}}
	score := qatypes.Score{Total: 0.02}

	d := Decide(batch, score, qatypes.RetrievalContext{}, DefaultThresholds())

	assert.Equal(t, qatypes.ChannelHuman, d.Channel)
	assert.Equal(t, qatypes.ReasonCriticalSeverity, d.ReasonCode)
}

func TestDecide_HighComplexityRoutesHeavy(t *testing.T) {
	score := qatypes.Score{Total: 0.70}
	d := Decide(qatypes.Batch{}, score, qatypes.RetrievalContext{Confidence: 0.9}, DefaultThresholds())
	assert.Equal(t, qatypes.ChannelHeavy, d.Channel)
	assert.Equal(t, qatypes.ReasonHighComplexity, d.ReasonCode)
}

func TestDecide_SecurityKindRoutesHeavyWithSignOff(t *testing.T) {
	score := qatypes.Score{Total: 0.33, KindWeightActive: 0.80}
	d := Decide(qatypes.Batch{}, score, qatypes.RetrievalContext{Confidence: 0.9}, DefaultThresholds())
	assert.Equal(t, qatypes.ChannelHeavy, d.Channel)
	assert.Equal(t, qatypes.ReasonSecurityKind, d.ReasonCode)
	assert.True(t, d.RequireSignOff)
}

func TestDecide_LowConfidenceMediumComplexity(t *testing.T) {
	score := qatypes.Score{Total: 0.41, KindWeightActive: 0.60}
	d := Decide(qatypes.Batch{}, score, qatypes.RetrievalContext{Confidence: 0.20}, DefaultThresholds())
	assert.Equal(t, qatypes.ChannelHeavy, d.Channel)
	assert.Equal(t, qatypes.ReasonLowConfidenceMediumComplex, d.ReasonCode)
}

func TestDecide_DefaultsToFast(t *testing.T) {
	score := qatypes.Score{Total: 0.02, KindWeightActive: 0.05}
	d := Decide(qatypes.Batch{}, score, qatypes.RetrievalContext{Confidence: 0.85}, DefaultThresholds())
	assert.Equal(t, qatypes.ChannelFast, d.Channel)
	assert.Equal(t, qatypes.ReasonAutoFixable, d.ReasonCode)
	assert.False(t, d.RequireSignOff)
}

func TestDecide_Deterministic(t *testing.T) {
	batch := qatypes.Batch{Violations: []qatypes.Violation{{Kind: qatypes.KindSecurity}}}
	score := qatypes.Score{Total: 0.33, KindWeightActive: 0.80}
	retrieval := qatypes.RetrievalContext{Confidence: 0.9}

	d1 := Decide(batch, score, retrieval, DefaultThresholds())
	d2 := Decide(batch, score, retrieval, DefaultThresholds())
	assert.Equal(t, d1, d2)
}

func TestDecide_RuleOrderCriticalBeatsEverything(t *testing.T) {
	// Even a near-zero score with critical severity must escalate, not auto-fix.
	batch := qatypes.Batch{Violations: []qatypes.Violation{{Kind: qatypes.KindStyle, Severity: qatypes.SeverityCritical}}}
	score := qatypes.Score{Total: 0.0, KindWeightActive: 0.05}
	retrieval := qatypes.RetrievalContext{Confidence: 1.0}

	d := Decide(batch, score, retrieval, DefaultThresholds())
	assert.Equal(t, qatypes.ChannelHuman, d.Channel)
}
