package monitoring

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openhealth/modelserve/pkg/models"
)

const (
	latencyBufferSize    = 1000
	confidenceBufferSize = 1000
	lowConfidenceLogSize = 100
)

// Collector aggregates operational metrics per model: inference latencies,
// success/failure counts, confidence scores, and a bounded log of
// low-confidence events. One mutex guards all state; each public method is
// its own critical section, with no atomicity across calls.
type Collector struct {
	logger *logrus.Logger
	prom   *PromMetrics

	mu            sync.Mutex
	latencies     map[string]*ring
	confidences   map[string]*ring
	counts        map[string]*models.PredictionCounts
	lowConfidence []models.LowConfidenceEvent
}

// NewCollector creates a metrics collector. prom may be nil to disable the
// Prometheus mirror.
func NewCollector(logger *logrus.Logger, prom *PromMetrics) *Collector {
	if logger == nil {
		logger = logrus.New()
	}
	return &Collector{
		logger:      logger,
		prom:        prom,
		latencies:   make(map[string]*ring),
		confidences: make(map[string]*ring),
		counts:      make(map[string]*models.PredictionCounts),
	}
}

// RecordLatency appends an inference latency sample for a model.
func (c *Collector) RecordLatency(model string, latencyMS float64) {
	c.mu.Lock()
	r, ok := c.latencies[model]
	if !ok {
		r = newRing(latencyBufferSize)
		c.latencies[model] = r
	}
	r.append(latencyMS)
	c.mu.Unlock()

	c.prom.ObserveLatency(model, latencyMS)
}

// RecordPrediction increments the model's success or failure counter.
func (c *Collector) RecordPrediction(model string, success bool) {
	c.mu.Lock()
	counts, ok := c.counts[model]
	if !ok {
		counts = &models.PredictionCounts{}
		c.counts[model] = counts
	}
	if success {
		counts.Success++
	} else {
		counts.Failure++
	}
	c.mu.Unlock()

	c.prom.CountPrediction(model, success)
}

// RecordConfidence appends a confidence sample and, when it falls below
// the threshold, records a low-confidence event.
func (c *Collector) RecordConfidence(model string, confidence, threshold float64) {
	low := confidence < threshold

	c.mu.Lock()
	r, ok := c.confidences[model]
	if !ok {
		r = newRing(confidenceBufferSize)
		c.confidences[model] = r
	}
	r.append(confidence)

	if low {
		c.lowConfidence = append(c.lowConfidence, models.LowConfidenceEvent{
			Model:      model,
			Confidence: confidence,
			Threshold:  threshold,
			Timestamp:  time.Now().UTC(),
		})
		if len(c.lowConfidence) > lowConfidenceLogSize {
			c.lowConfidence = append(c.lowConfidence[:0:0], c.lowConfidence[len(c.lowConfidence)-lowConfidenceLogSize:]...)
		}
	}
	c.mu.Unlock()

	if low {
		c.prom.CountLowConfidence(model)
		c.logger.WithFields(logrus.Fields{
			"model":      model,
			"confidence": confidence,
			"threshold":  threshold,
		}).Warn("Low confidence prediction")
	}
}

// LatencyStats returns latency statistics for a model.
func (c *Collector) LatencyStats(model string) models.LatencyStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latencyStatsLocked(model)
}

// ConfidenceStats returns confidence statistics for a model.
func (c *Collector) ConfidenceStats(model string) models.ConfidenceStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confidenceStatsLocked(model)
}

// PredictionCounts returns the success/failure counters for a model.
func (c *Collector) PredictionCounts(model string) models.PredictionCounts {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counts, ok := c.counts[model]; ok {
		return *counts
	}
	return models.PredictionCounts{}
}

// LowConfidenceEvents returns a copy of the recent low-confidence log.
func (c *Collector) LowConfidenceEvents() []models.LowConfidenceEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.LowConfidenceEvent, len(c.lowConfidence))
	copy(out, c.lowConfidence)
	return out
}

// Snapshot returns all collected metrics, computed fresh on each call.
func (c *Collector) Snapshot() models.MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := models.MetricsSnapshot{
		Latencies:           make(map[string]models.LatencyStats, len(c.latencies)),
		Predictions:         make(map[string]models.PredictionCounts, len(c.counts)),
		Confidence:          make(map[string]models.ConfidenceStats, len(c.confidences)),
		LowConfidenceEvents: make([]models.LowConfidenceEvent, len(c.lowConfidence)),
	}

	for model := range c.latencies {
		snap.Latencies[model] = c.latencyStatsLocked(model)
	}
	for model, counts := range c.counts {
		snap.Predictions[model] = *counts
	}
	for model := range c.confidences {
		snap.Confidence[model] = c.confidenceStatsLocked(model)
	}
	copy(snap.LowConfidenceEvents, c.lowConfidence)

	return snap
}

func (c *Collector) latencyStatsLocked(model string) models.LatencyStats {
	r, ok := c.latencies[model]
	if !ok || r.len() == 0 {
		return models.LatencyStats{}
	}

	sorted := r.values()
	sort.Float64s(sorted)
	count := len(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	// On small samples the index-based p99 is unstable, so the max sample
	// stands in until the buffer holds more than 100 points.
	p99 := sorted[count-1]
	if count > 100 {
		p99 = sorted[int(float64(count)*0.99)]
	}

	return models.LatencyStats{
		Count: count,
		Mean:  sum / float64(count),
		Min:   sorted[0],
		Max:   sorted[count-1],
		P50:   sorted[int(float64(count)*0.5)],
		P95:   sorted[int(math.Min(float64(count)*0.95, float64(count-1)))],
		P99:   p99,
	}
}

func (c *Collector) confidenceStatsLocked(model string) models.ConfidenceStats {
	r, ok := c.confidences[model]
	if !ok || r.len() == 0 {
		return models.ConfidenceStats{}
	}

	values := r.values()
	sum, min, max := 0.0, values[0], values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	return models.ConfidenceStats{
		Count: len(values),
		Mean:  sum / float64(len(values)),
		Min:   min,
		Max:   max,
	}
}
