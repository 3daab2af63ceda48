package drift

import (
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhealth/modelserve/pkg/errors"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	d, err := New(&Config{Dir: t.TempDir(), Threshold: 0.3}, logger)
	require.NoError(t, err)
	return d
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	_, err = New(&Config{Threshold: 0.3}, nil)
	assert.Error(t, err)

	_, err = New(&Config{Dir: t.TempDir(), Threshold: 0}, nil)
	assert.Error(t, err)
}

func TestCalculateStatistics(t *testing.T) {
	stats, err := CalculateStatistics([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.NoError(t, err)

	assert.InDelta(t, 5, stats.Mean, 1e-9)
	// Population standard deviation.
	assert.InDelta(t, 2, stats.Std, 1e-9)
	assert.Equal(t, 2.0, stats.Min)
	assert.Equal(t, 9.0, stats.Max)
	// Even sample size averages the two middle values.
	assert.InDelta(t, 4.5, stats.Median, 1e-9)
}

func TestCalculateStatisticsOddMedian(t *testing.T) {
	stats, err := CalculateStatistics([]float64{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2.0, stats.Median)
}

func TestCalculateStatisticsEmpty(t *testing.T) {
	_, err := CalculateStatistics(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestReferenceRoundTrip(t *testing.T) {
	d := newTestDetector(t)

	saved, err := d.SaveReference("heart", []float64{90, 110})
	require.NoError(t, err)
	assert.Equal(t, 2, saved.SampleSize)
	assert.InDelta(t, 100, saved.Mean, 1e-9)

	loaded, err := d.LoadReference("heart")
	require.NoError(t, err)
	assert.InDelta(t, saved.Mean, loaded.Mean, 1e-9)
	assert.InDelta(t, saved.Std, loaded.Std, 1e-9)
	assert.Equal(t, saved.SampleSize, loaded.SampleSize)
}

func TestSaveReferenceOverwrites(t *testing.T) {
	d := newTestDetector(t)

	_, err := d.SaveReference("heart", []float64{1, 2, 3})
	require.NoError(t, err)
	_, err = d.SaveReference("heart", []float64{90, 110})
	require.NoError(t, err)

	loaded, err := d.LoadReference("heart")
	require.NoError(t, err)
	assert.InDelta(t, 100, loaded.Mean, 1e-9)
}

func TestLoadReferenceMissing(t *testing.T) {
	d := newTestDetector(t)

	_, err := d.LoadReference("heart")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoReferenceStats)
}

func TestDetectDriftIdenticalData(t *testing.T) {
	d := newTestDetector(t)
	_, err := d.SaveReference("heart", []float64{90, 110})
	require.NoError(t, err)

	detected, report, err := d.DetectDrift("heart", []float64{90, 110}, 0)
	require.NoError(t, err)
	assert.False(t, detected)
	require.NotNil(t, report)
	assert.InDelta(t, 0, report.OverallDrift, 1e-9)
	assert.Equal(t, 0.3, report.Threshold)
}

func TestDetectDriftShiftedMean(t *testing.T) {
	d := newTestDetector(t)
	// Reference: mean 100, std 10.
	_, err := d.SaveReference("heart", []float64{90, 110})
	require.NoError(t, err)

	// Current: mean 130, std 10. mean_drift = 30/100 = 0.3, std_drift = 0,
	// overall = 0.15. Not over the 0.3 default.
	detected, report, err := d.DetectDrift("heart", []float64{120, 140}, 0)
	require.NoError(t, err)
	assert.False(t, detected)
	require.NotNil(t, report)
	assert.InDelta(t, 0.3, report.MeanDrift, 1e-6)
	assert.InDelta(t, 0, report.StdDrift, 1e-6)
	assert.InDelta(t, 0.15, report.OverallDrift, 1e-6)
}

func TestDetectDriftThresholdIsStrict(t *testing.T) {
	d := newTestDetector(t)
	_, err := d.SaveReference("heart", []float64{90, 110})
	require.NoError(t, err)

	// Establish the exact overall drift this data pair produces, then use
	// that value itself as the threshold to pin the boundary.
	_, report, err := d.DetectDrift("heart", []float64{120, 140}, 0.3)
	require.NoError(t, err)
	overall := report.OverallDrift
	require.Greater(t, overall, 0.0)

	// Equality with the threshold does not count as drift.
	detected, report, err := d.DetectDrift("heart", []float64{120, 140}, overall)
	require.NoError(t, err)
	assert.False(t, detected)
	assert.False(t, report.DriftDetected)
	assert.Equal(t, overall, report.Threshold)

	// Any threshold below the observed drift does.
	detected, report, err = d.DetectDrift("heart", []float64{120, 140},
		math.Nextafter(overall, 0))
	require.NoError(t, err)
	assert.True(t, detected)
	assert.True(t, report.DriftDetected)
}

func TestDetectDriftNoReferenceIsSoft(t *testing.T) {
	d := newTestDetector(t)

	detected, report, err := d.DetectDrift("heart", []float64{1, 2, 3}, 0)
	require.NoError(t, err)
	assert.False(t, detected)
	assert.Nil(t, report)
}

func TestDetectDriftEmptyCurrent(t *testing.T) {
	d := newTestDetector(t)
	_, err := d.SaveReference("heart", []float64{90, 110})
	require.NoError(t, err)

	_, _, err = d.DetectDrift("heart", nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
