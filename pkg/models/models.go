package models

import "time"

// Prediction is the raw output of one model invocation.
type Prediction struct {
	Label       string             `json:"label"`
	Confidence  float64            `json:"confidence"`
	Scores      map[string]float64 `json:"scores,omitempty"`
	RiskFactors []string           `json:"risk_factors,omitempty"`
}

// PredictionResult is the final, fallback-adjusted result returned to callers.
type PredictionResult struct {
	Model        string       `json:"model"`
	Version      string       `json:"model_version"`
	Prediction   string       `json:"prediction"`
	Confidence   float64      `json:"confidence"`
	FallbackUsed bool         `json:"fallback_used"`
	LatencyMS    float64      `json:"latency_ms"`
	RiskFactors  []string     `json:"risk_factors,omitempty"`
	Drift        *DriftReport `json:"drift,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// ModelMetadata describes one stored model version.
type ModelMetadata struct {
	Name      string             `json:"name"`
	Version   string             `json:"version"`
	ModelType string             `json:"model_type"`
	CreatedAt time.Time          `json:"created_at"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// ModelInfo is the registry's introspection view of one model.
type ModelInfo struct {
	Name              string         `json:"name"`
	ActiveVersion     string         `json:"active_version"`
	AvailableVersions []string       `json:"available_versions"`
	Loaded            bool           `json:"loaded"`
	Metadata          *ModelMetadata `json:"metadata,omitempty"`
}

// Statistics summarizes one data distribution.
type Statistics struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// ReferenceStats is a persisted drift-detection baseline.
type ReferenceStats struct {
	Statistics
	SampleSize int       `json:"sample_size"`
	Timestamp  time.Time `json:"timestamp"`
}

// DriftReport is the transient result of one drift check.
type DriftReport struct {
	MeanDrift      float64         `json:"mean_drift"`
	StdDrift       float64         `json:"std_drift"`
	OverallDrift   float64         `json:"overall_drift"`
	Threshold      float64         `json:"threshold"`
	DriftDetected  bool            `json:"drift_detected"`
	CurrentStats   *Statistics     `json:"current_stats,omitempty"`
	ReferenceStats *ReferenceStats `json:"reference_stats,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// LatencyStats summarizes a model's recorded inference latencies.
type LatencyStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean,omitempty"`
	Min   float64 `json:"min,omitempty"`
	Max   float64 `json:"max,omitempty"`
	P50   float64 `json:"p50,omitempty"`
	P95   float64 `json:"p95,omitempty"`
	P99   float64 `json:"p99,omitempty"`
}

// ConfidenceStats summarizes a model's recorded confidence scores.
type ConfidenceStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean,omitempty"`
	Min   float64 `json:"min,omitempty"`
	Max   float64 `json:"max,omitempty"`
}

// PredictionCounts holds per-model success/failure counters.
type PredictionCounts struct {
	Success int64 `json:"success"`
	Failure int64 `json:"failure"`
}

// LowConfidenceEvent records one prediction that fell below its threshold.
type LowConfidenceEvent struct {
	Model      string    `json:"model"`
	Confidence float64   `json:"confidence"`
	Threshold  float64   `json:"threshold"`
	Timestamp  time.Time `json:"timestamp"`
}

// MetricsSnapshot is a full read-only view of the collected metrics.
type MetricsSnapshot struct {
	Latencies           map[string]LatencyStats     `json:"latencies"`
	Predictions         map[string]PredictionCounts `json:"predictions"`
	Confidence          map[string]ConfidenceStats  `json:"confidence"`
	LowConfidenceEvents []LowConfidenceEvent        `json:"low_confidence_events"`
}

// CacheInfo is the model cache's introspection view.
type CacheInfo struct {
	CachedModels []string `json:"cached_models"`
	CacheSize    int      `json:"cache_size"`
}
