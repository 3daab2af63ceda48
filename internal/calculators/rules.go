package calculators

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/openhealth/modelserve/pkg/errors"
	"github.com/openhealth/modelserve/pkg/models"
)

// RuleSpec is the serialized form of a rule-based scoring model. Each
// feature contributes a score and a severity multiplier through banded
// thresholds; the accumulated risk selects a graded label.
type RuleSpec struct {
	Disease        string         `json:"disease"`
	Features       []FeatureRule  `json:"features"`
	Grades         []Grade        `json:"grades"`
	Confidence     ConfidenceRule `json:"confidence"`
	DefaultFactors []string       `json:"default_factors,omitempty"`
}

// FeatureRule scores one input feature through ordered bands.
type FeatureRule struct {
	Name    string  `json:"name"`
	Default float64 `json:"default"`
	Bands   []Band  `json:"bands"`
}

// Band matches a half-open value range [Min, Max). A nil bound is
// unbounded on that side. The first matching band wins.
type Band struct {
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Score    float64  `json:"score"`
	Severity float64  `json:"severity,omitempty"`
	Factor   string   `json:"factor,omitempty"`
}

// Grade maps a minimum risk score to a prediction label.
type Grade struct {
	MinScore       float64 `json:"min_score"`
	Label          string  `json:"label"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// ConfidenceRule derives confidence from risk extremity:
// min(Base + |risk-0.5|*Scale, Max).
type ConfidenceRule struct {
	Base  float64 `json:"base"`
	Scale float64 `json:"scale"`
	Max   float64 `json:"max"`
}

// RuleModel evaluates a RuleSpec.
type RuleModel struct {
	spec RuleSpec
}

// DecodeRules parses a .rules artifact into a RuleModel.
func DecodeRules(data []byte) (*RuleModel, error) {
	var spec RuleSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeLoading, errors.CodeModelLoadFailed,
			"failed to parse rules artifact")
	}
	if len(spec.Grades) == 0 {
		return nil, errors.NewLoadingError(errors.CodeModelLoadFailed,
			fmt.Sprintf("rules artifact for %q has no grades", spec.Disease))
	}

	// Highest grade first so the first matching grade wins.
	sort.Slice(spec.Grades, func(i, j int) bool {
		return spec.Grades[i].MinScore > spec.Grades[j].MinScore
	})

	return &RuleModel{spec: spec}, nil
}

// Predict scores the input features against the rule spec.
func (m *RuleModel) Predict(ctx context.Context, features map[string]float64) (*models.Prediction, error) {
	risk := 0.0
	severity := 1.0
	var factors []string

	for _, f := range m.spec.Features {
		value, ok := features[f.Name]
		if !ok {
			value = f.Default
		}
		for _, band := range f.Bands {
			if !band.matches(value) {
				continue
			}
			risk += band.Score
			if band.Severity > 0 {
				severity *= band.Severity
			}
			if band.Factor != "" {
				factors = append(factors, fmt.Sprintf("%s (%g)", band.Factor, value))
			}
			break
		}
	}

	risk = math.Min(math.Max(risk*severity, 0), 1)

	label := m.spec.Grades[len(m.spec.Grades)-1].Label
	for _, g := range m.spec.Grades {
		if risk >= g.MinScore {
			label = g.Label
			break
		}
	}

	conf := m.spec.Confidence
	confidence := conf.Base + math.Abs(risk-0.5)*conf.Scale
	if conf.Max > 0 {
		confidence = math.Min(confidence, conf.Max)
	}

	if len(factors) == 0 {
		factors = m.spec.DefaultFactors
	}

	return &models.Prediction{
		Label:       label,
		Confidence:  confidence,
		Scores:      map[string]float64{"risk_score": risk},
		RiskFactors: factors,
	}, nil
}

func (b *Band) matches(value float64) bool {
	if b.Min != nil && value < *b.Min {
		return false
	}
	if b.Max != nil && value >= *b.Max {
		return false
	}
	return true
}
