package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromMetrics mirrors the operational metrics to a Prometheus registry.
// A nil *PromMetrics is a no-op, so the mirror can be disabled by config.
type PromMetrics struct {
	registry *prometheus.Registry

	predictionsTotal   *prometheus.CounterVec
	inferenceDuration  *prometheus.HistogramVec
	fallbackTotal      *prometheus.CounterVec
	lowConfidenceTotal *prometheus.CounterVec
	driftScore         *prometheus.GaugeVec
	modelsLoaded       prometheus.Gauge
}

// NewPromMetrics creates and registers the Prometheus metric set.
func NewPromMetrics(namespace string) *PromMetrics {
	if namespace == "" {
		namespace = "modelserve"
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	p := &PromMetrics{
		registry: registry,
		predictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total predictions by model and outcome",
		}, []string{"model", "outcome"}),
		inferenceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Model inference duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
		fallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_total",
			Help:      "Predictions replaced by the uncertain fallback",
		}, []string{"model"}),
		lowConfidenceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_confidence_total",
			Help:      "Predictions below the confidence threshold",
		}, []string{"model"}),
		driftScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drift_score",
			Help:      "Most recent overall drift score by model",
		}, []string{"model"}),
		modelsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "models_loaded",
			Help:      "Number of models currently cached in memory",
		}),
	}

	registry.MustRegister(
		p.predictionsTotal,
		p.inferenceDuration,
		p.fallbackTotal,
		p.lowConfidenceTotal,
		p.driftScore,
		p.modelsLoaded,
	)

	return p
}

// Handler returns the HTTP handler serving the registry.
func (p *PromMetrics) Handler() http.Handler {
	if p == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// ObserveLatency records an inference latency in milliseconds.
func (p *PromMetrics) ObserveLatency(model string, latencyMS float64) {
	if p == nil {
		return
	}
	p.inferenceDuration.WithLabelValues(model).Observe(latencyMS / 1000)
}

// CountPrediction increments the prediction counter.
func (p *PromMetrics) CountPrediction(model string, success bool) {
	if p == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	p.predictionsTotal.WithLabelValues(model, outcome).Inc()
}

// CountFallback increments the fallback counter.
func (p *PromMetrics) CountFallback(model string) {
	if p == nil {
		return
	}
	p.fallbackTotal.WithLabelValues(model).Inc()
}

// CountLowConfidence increments the low-confidence counter.
func (p *PromMetrics) CountLowConfidence(model string) {
	if p == nil {
		return
	}
	p.lowConfidenceTotal.WithLabelValues(model).Inc()
}

// SetDriftScore records the latest overall drift score for a model.
func (p *PromMetrics) SetDriftScore(model string, score float64) {
	if p == nil {
		return
	}
	p.driftScore.WithLabelValues(model).Set(score)
}

// SetModelsLoaded records the current cache size.
func (p *PromMetrics) SetModelsLoaded(n int) {
	if p == nil {
		return
	}
	p.modelsLoaded.Set(float64(n))
}
