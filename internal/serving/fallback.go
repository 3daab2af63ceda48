package serving

import (
	"github.com/sirupsen/logrus"

	"github.com/openhealth/modelserve/internal/monitoring"
)

// FallbackPrediction is the safe result substituted for low-confidence
// predictions.
const FallbackPrediction = "Uncertain - please consult a healthcare professional"

// FallbackPolicy substitutes a safe sentinel for predictions whose
// confidence falls below a threshold. Decide reports the observed
// confidence to the metrics collector before deciding; that coupling is
// part of the contract, not a hidden side effect.
type FallbackPolicy struct {
	threshold float64
	collector *monitoring.Collector
	prom      *monitoring.PromMetrics
	logger    *logrus.Logger
}

// NewFallbackPolicy creates a fallback policy with a process-wide default
// threshold.
func NewFallbackPolicy(threshold float64, collector *monitoring.Collector, prom *monitoring.PromMetrics, logger *logrus.Logger) *FallbackPolicy {
	if logger == nil {
		logger = logrus.New()
	}
	return &FallbackPolicy{
		threshold: threshold,
		collector: collector,
		prom:      prom,
		logger:    logger,
	}
}

// Decide applies the confidence threshold to a raw prediction. A
// non-positive threshold selects the configured default. Confidence is
// passed through unchanged either way; the prediction is replaced only
// when confidence is strictly below the threshold.
func (p *FallbackPolicy) Decide(prediction string, confidence float64, model string, threshold float64) (string, float64, bool) {
	if threshold <= 0 {
		threshold = p.threshold
	}

	p.collector.RecordConfidence(model, confidence, threshold)

	if confidence < threshold {
		p.logger.WithFields(logrus.Fields{
			"model":      model,
			"confidence": confidence,
			"threshold":  threshold,
		}).Warn("Low confidence prediction, using fallback")

		p.prom.CountFallback(model)
		return FallbackPrediction, confidence, true
	}

	return prediction, confidence, false
}
