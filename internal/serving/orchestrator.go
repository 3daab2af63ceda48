package serving

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openhealth/modelserve/internal/drift"
	"github.com/openhealth/modelserve/internal/loader"
	"github.com/openhealth/modelserve/internal/monitoring"
	"github.com/openhealth/modelserve/internal/registry"
	"github.com/openhealth/modelserve/pkg/errors"
	"github.com/openhealth/modelserve/pkg/models"
)

// PredictOptions carries per-call overrides for a prediction request.
type PredictOptions struct {
	// Version selects an explicit model version; empty uses the active one.
	Version string
	// Threshold overrides the fallback confidence threshold when positive.
	Threshold float64
}

// Orchestrator composes the serving pipeline: resolve the active version,
// load the model, time the inference call, apply the fallback policy, and
// record metrics. Load and inference failures are recorded as failed
// predictions and surfaced as typed errors with no partial result.
type Orchestrator struct {
	registry     *registry.Registry
	cache        *loader.Cache
	policy       *FallbackPolicy
	collector    *monitoring.Collector
	detector     *drift.Detector
	prom         *monitoring.PromMetrics
	logger       *logrus.Logger
	driftEnabled bool
}

// NewOrchestrator creates a prediction orchestrator. detector may be nil
// when drift checking is disabled.
func NewOrchestrator(
	reg *registry.Registry,
	cache *loader.Cache,
	policy *FallbackPolicy,
	collector *monitoring.Collector,
	detector *drift.Detector,
	prom *monitoring.PromMetrics,
	logger *logrus.Logger,
	driftEnabled bool,
) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		registry:     reg,
		cache:        cache,
		policy:       policy,
		collector:    collector,
		detector:     detector,
		prom:         prom,
		logger:       logger,
		driftEnabled: driftEnabled,
	}
}

// Predict runs one prediction request through the pipeline.
func (o *Orchestrator) Predict(ctx context.Context, model string, features map[string]float64, opts *PredictOptions) (*models.PredictionResult, error) {
	if opts == nil {
		opts = &PredictOptions{}
	}

	if !o.registry.IsKnown(model) {
		return nil, errors.WrapError(errors.ErrUnknownModel, errors.ErrorTypeRegistry,
			errors.CodeUnknownModel, fmt.Sprintf("model %q is not registered", model))
	}

	version := opts.Version
	if version == "" {
		version = o.registry.ActiveVersion(model)
	}

	entry, err := o.cache.Get(model, version)
	if err != nil {
		o.collector.RecordPrediction(model, false)
		return nil, err
	}
	o.prom.SetModelsLoaded(o.cache.Info().CacheSize)

	// Latency covers exactly the inference call; load time and the
	// fallback/metrics overhead are excluded.
	start := time.Now()
	raw, err := entry.Model.Predict(ctx, features)
	latencyMS := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		o.collector.RecordPrediction(model, false)
		o.logger.WithError(err).WithFields(logrus.Fields{
			"model":   model,
			"version": version,
		}).Error("Inference failed")
		return nil, errors.WrapError(err, errors.ErrorTypeInference,
			errors.CodeInferenceFailed, fmt.Sprintf("inference failed for %s %s", model, version))
	}

	o.collector.RecordLatency(model, latencyMS)

	prediction, confidence, fallbackUsed := o.policy.Decide(raw.Label, raw.Confidence, model, opts.Threshold)

	o.collector.RecordPrediction(model, true)

	result := &models.PredictionResult{
		Model:        model,
		Version:      version,
		Prediction:   prediction,
		Confidence:   confidence,
		FallbackUsed: fallbackUsed,
		LatencyMS:    latencyMS,
		RiskFactors:  raw.RiskFactors,
		Timestamp:    time.Now().UTC(),
	}

	if o.driftEnabled && o.detector != nil {
		result.Drift = o.checkDrift(model, features)
	}

	o.logger.WithFields(logrus.Fields{
		"model":         model,
		"version":       version,
		"prediction":    prediction,
		"confidence":    confidence,
		"fallback_used": fallbackUsed,
		"latency_ms":    latencyMS,
	}).Info("Prediction served")

	return result, nil
}

// checkDrift runs a best-effort drift check over the request's feature
// values. Failures never affect the prediction result.
func (o *Orchestrator) checkDrift(model string, features map[string]float64) *models.DriftReport {
	if len(features) < 2 {
		return nil
	}

	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]float64, len(keys))
	for i, k := range keys {
		values[i] = features[k]
	}

	_, report, err := o.detector.DetectDrift(model, values, 0)
	if err != nil {
		o.logger.WithError(err).WithField("model", model).Warn("Drift check failed")
		return nil
	}
	if report != nil {
		o.prom.SetDriftScore(model, report.OverallDrift)
	}
	return report
}
