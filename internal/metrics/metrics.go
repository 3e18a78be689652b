package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the QuickGig API.
// Components receive a *Metrics and tolerate nil so unit tests do not
// touch the global registry.
type Metrics struct {
	// Classification metrics
	Classifications *prometheus.CounterVec
	LLMCallDuration *prometheus.HistogramVec

	// Recommendation metrics
	RecommendDuration *prometheus.HistogramVec
	StoreErrors       *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Stream / webhook metrics
	StreamClients     prometheus.Gauge
	WebhookDeliveries *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		Classifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quickgig_classifications_total",
				Help: "Total intent classifications by outcome",
			},
			[]string{"outcome"}, // outcome: model, fallback, invalid
		),

		LLMCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quickgig_llm_call_duration_seconds",
				Help:    "Duration of upstream LLM completion calls",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"status"}, // status: ok, error
		),

		RecommendDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quickgig_recommend_duration_seconds",
				Help:    "Duration of agent recommendation queries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"capability"},
		),

		StoreErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quickgig_store_errors_total",
				Help: "Total agent store query failures degraded to empty results",
			},
			[]string{"operation"},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "quickgig_recommend_cache_hits_total",
				Help: "Recommendation cache hits",
			},
		),

		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "quickgig_recommend_cache_misses_total",
				Help: "Recommendation cache misses (including Redis failures, which fail open)",
			},
		),

		StreamClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "quickgig_stream_clients",
				Help: "Currently connected websocket stream clients",
			},
		),

		WebhookDeliveries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quickgig_webhook_deliveries_total",
				Help: "Webhook delivery attempts by result",
			},
			[]string{"result"}, // result: delivered, failed
		),
	}
}

// RecordClassification records a classification outcome (model, fallback, invalid)
func (m *Metrics) RecordClassification(outcome string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(outcome).Inc()
}

// RecordLLMCall records an upstream completion call
func (m *Metrics) RecordLLMCall(seconds float64, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.LLMCallDuration.WithLabelValues(status).Observe(seconds)
}

// RecordRecommendation records a recommendation query duration
func (m *Metrics) RecordRecommendation(capability string, seconds float64) {
	if m == nil {
		return
	}
	m.RecommendDuration.WithLabelValues(capability).Observe(seconds)
}

// RecordStoreError records a degraded store query
func (m *Metrics) RecordStoreError(operation string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(operation).Inc()
}

// RecordCacheHit records a recommendation cache hit
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// RecordCacheMiss records a recommendation cache miss
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// SetStreamClients updates the connected websocket client gauge
func (m *Metrics) SetStreamClients(n int) {
	if m == nil {
		return
	}
	m.StreamClients.Set(float64(n))
}

// RecordWebhookDelivery records a webhook delivery result
func (m *Metrics) RecordWebhookDelivery(delivered bool) {
	if m == nil {
		return
	}
	result := "failed"
	if delivered {
		result = "delivered"
	}
	m.WebhookDeliveries.WithLabelValues(result).Inc()
}
