package calculators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const heartRules = `{
  "disease": "heart",
  "features": [
    {
      "name": "age",
      "default": 40,
      "bands": [
        {"max": 50, "score": 0.1},
        {"min": 50, "score": 0.6, "factor": "Advanced age"}
      ]
    },
    {
      "name": "smoker",
      "default": 0,
      "bands": [
        {"min": 1, "score": 0.1, "severity": 1.5, "factor": "Smoking"}
      ]
    }
  ],
  "grades": [
    {"min_score": 0, "label": "Low risk"},
    {"min_score": 0.5, "label": "High risk", "recommendation": "Consult a cardiologist"}
  ],
  "confidence": {"base": 0.7, "scale": 0.4, "max": 0.95},
  "default_factors": ["No significant risk factors identified"]
}`

func decodeHeart(t *testing.T) *RuleModel {
	t.Helper()
	model, err := DecodeRules([]byte(heartRules))
	require.NoError(t, err)
	return model
}

func TestDecodeRulesErrors(t *testing.T) {
	_, err := DecodeRules([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeRules([]byte(`{"disease":"heart","grades":[]}`))
	assert.Error(t, err)
}

func TestRulePredictHighRisk(t *testing.T) {
	model := decodeHeart(t)

	pred, err := model.Predict(context.Background(), map[string]float64{"age": 60, "smoker": 0})
	require.NoError(t, err)

	assert.Equal(t, "High risk", pred.Label)
	assert.InDelta(t, 0.6, pred.Scores["risk_score"], 1e-9)
	// confidence = base + |risk-0.5|*scale = 0.7 + 0.1*0.4
	assert.InDelta(t, 0.74, pred.Confidence, 1e-9)
	assert.Contains(t, pred.RiskFactors, "Advanced age (60)")
}

func TestRulePredictLowRiskDefaultFactors(t *testing.T) {
	model := decodeHeart(t)

	pred, err := model.Predict(context.Background(), map[string]float64{"age": 30, "smoker": 0})
	require.NoError(t, err)

	assert.Equal(t, "Low risk", pred.Label)
	assert.InDelta(t, 0.1, pred.Scores["risk_score"], 1e-9)
	assert.Equal(t, []string{"No significant risk factors identified"}, pred.RiskFactors)
}

func TestRulePredictSeverityMultiplier(t *testing.T) {
	model := decodeHeart(t)

	// (0.6 + 0.1) * 1.5 = 1.05, clamped to 1.
	pred, err := model.Predict(context.Background(), map[string]float64{"age": 70, "smoker": 1})
	require.NoError(t, err)

	assert.Equal(t, "High risk", pred.Label)
	assert.InDelta(t, 1.0, pred.Scores["risk_score"], 1e-9)
	assert.Contains(t, pred.RiskFactors, "Smoking (1)")
}

func TestRulePredictMissingFeatureUsesDefault(t *testing.T) {
	model := decodeHeart(t)

	pred, err := model.Predict(context.Background(), map[string]float64{})
	require.NoError(t, err)

	// Defaults age=40, smoker=0 land in the low band.
	assert.Equal(t, "Low risk", pred.Label)
	assert.InDelta(t, 0.1, pred.Scores["risk_score"], 1e-9)
}

func TestBandBoundsAreHalfOpen(t *testing.T) {
	model := decodeHeart(t)

	// age 50 falls in [50, inf), not [_, 50).
	pred, err := model.Predict(context.Background(), map[string]float64{"age": 50, "smoker": 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, pred.Scores["risk_score"], 1e-9)
}
