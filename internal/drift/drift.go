package drift

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openhealth/modelserve/pkg/errors"
	"github.com/openhealth/modelserve/pkg/models"
)

// epsilon guards the relative-drift divisions against zero references.
const epsilon = 1e-8

// Config configures the drift detector
type Config struct {
	// Dir holds one reference-statistics JSON file per model.
	Dir string `json:"dir" yaml:"dir"`
	// Threshold is the default overall-drift threshold.
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// Detector compares live input statistics against a persisted reference
// distribution per model.
type Detector struct {
	config *Config
	logger *logrus.Logger
}

// New creates a drift detector
func New(config *Config, logger *logrus.Logger) (*Detector, error) {
	if config == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidConfiguration, "drift Config cannot be nil")
	}
	if config.Dir == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidConfiguration, "drift Dir is required")
	}
	if config.Threshold <= 0 {
		return nil, errors.NewValidationError(errors.CodeInvalidThreshold,
			fmt.Sprintf("drift threshold must be positive: %f", config.Threshold))
	}
	if logger == nil {
		logger = logrus.New()
	}

	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeMonitoring, errors.CodeInternalError,
			fmt.Sprintf("failed to create reference stats dir: %s", config.Dir))
	}

	return &Detector{config: config, logger: logger}, nil
}

// CalculateStatistics computes distribution statistics over the data.
// Std is the population standard deviation; the median of an even-sized
// sample averages the two middle values.
func CalculateStatistics(data []float64) (*models.Statistics, error) {
	if len(data) == 0 {
		return nil, errors.WrapError(errors.ErrInvalidInput, errors.ErrorTypeValidation,
			errors.CodeInvalidInput, "cannot compute statistics of empty data")
	}

	sum := 0.0
	min, max := data[0], data[0]
	for _, v := range data {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(len(data))

	variance := 0.0
	for _, v := range data {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(data))

	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return &models.Statistics{
		Mean:   mean,
		Std:    math.Sqrt(variance),
		Min:    min,
		Max:    max,
		Median: median,
	}, nil
}

// SaveReference computes and persists the reference distribution for a
// model, unconditionally overwriting any prior reference.
func (d *Detector) SaveReference(model string, data []float64) (*models.ReferenceStats, error) {
	stats, err := CalculateStatistics(data)
	if err != nil {
		return nil, err
	}

	ref := &models.ReferenceStats{
		Statistics: *stats,
		SampleSize: len(data),
		Timestamp:  time.Now().UTC(),
	}

	payload, err := json.MarshalIndent(ref, "", "  ")
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeMonitoring, errors.CodeInternalError,
			"failed to marshal reference stats")
	}

	if err := os.WriteFile(d.statsPath(model), payload, 0o644); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeMonitoring, errors.CodeInternalError,
			fmt.Sprintf("failed to write reference stats for %s", model))
	}

	d.logger.WithFields(logrus.Fields{
		"model":       model,
		"sample_size": ref.SampleSize,
	}).Info("Saved reference statistics")

	return ref, nil
}

// LoadReference reads the persisted reference distribution for a model.
func (d *Detector) LoadReference(model string) (*models.ReferenceStats, error) {
	data, err := os.ReadFile(d.statsPath(model))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapError(errors.ErrNoReferenceStats, errors.ErrorTypeMonitoring,
				errors.CodeNoReferenceStats,
				fmt.Sprintf("no reference statistics for %s", model))
		}
		return nil, errors.WrapError(err, errors.ErrorTypeMonitoring, errors.CodeInternalError,
			fmt.Sprintf("failed to read reference stats for %s", model))
	}

	var ref models.ReferenceStats
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeMonitoring, errors.CodeInternalError,
			fmt.Sprintf("corrupt reference stats for %s", model))
	}
	return &ref, nil
}

// DetectDrift compares current data against the model's reference. A
// missing reference is a soft failure: no drift, nil report, a warning
// log, and no error. A non-positive threshold selects the configured
// default.
func (d *Detector) DetectDrift(model string, current []float64, threshold float64) (bool, *models.DriftReport, error) {
	if threshold <= 0 {
		threshold = d.config.Threshold
	}

	ref, err := d.LoadReference(model)
	if err != nil {
		if stderrors.Is(err, errors.ErrNoReferenceStats) {
			d.logger.WithField("model", model).Warn("Cannot detect drift: no reference stats")
			return false, nil, nil
		}
		return false, nil, err
	}

	stats, err := CalculateStatistics(current)
	if err != nil {
		return false, nil, err
	}

	meanDrift := math.Abs(stats.Mean-ref.Mean) / (math.Abs(ref.Mean) + epsilon)
	stdDrift := math.Abs(stats.Std-ref.Std) / (ref.Std + epsilon)
	overall := (meanDrift + stdDrift) / 2
	detected := overall > threshold

	report := &models.DriftReport{
		MeanDrift:      meanDrift,
		StdDrift:       stdDrift,
		OverallDrift:   overall,
		Threshold:      threshold,
		DriftDetected:  detected,
		CurrentStats:   stats,
		ReferenceStats: ref,
		Timestamp:      time.Now().UTC(),
	}

	entry := d.logger.WithFields(logrus.Fields{
		"model":         model,
		"overall_drift": overall,
		"threshold":     threshold,
	})
	if detected {
		entry.Warn("Data drift detected")
	} else {
		entry.Info("No drift detected")
	}

	return detected, report, nil
}

func (d *Detector) statsPath(model string) string {
	return filepath.Join(d.config.Dir, model+"_stats.json")
}
