package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for price resolution.
type Metrics struct {
	// Resolutions by source tier, cached or fresh
	Resolutions *prometheus.CounterVec

	// Provider failures by provider and normalized category
	ProviderFailures *prometheus.CounterVec

	ProviderLatency *prometheus.HistogramVec

	// History append failures (never fail the resolution)
	HistoryFailures prometheus.Counter
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return &Metrics{
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_price_resolutions_total",
			Help: "Price resolutions by source tier and cache state",
		}, []string{"source", "cached"}),

		ProviderFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_price_provider_failures_total",
			Help: "Spot provider failures by provider and category",
		}, []string{"provider", "category"}),

		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bullion_price_provider_duration_seconds",
			Help:    "Duration of spot provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),

		HistoryFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bullion_price_history_failures_total",
			Help: "Price history writes or reads that failed",
		}),
	}
}

func (m *Metrics) IncResolution(source string, cached bool) {
	if m != nil {
		label := "false"
		if cached {
			label = "true"
		}
		m.Resolutions.WithLabelValues(source, label).Inc()
	}
}

func (m *Metrics) IncProviderFailure(provider, category string) {
	if m != nil {
		m.ProviderFailures.WithLabelValues(provider, category).Inc()
	}
}

func (m *Metrics) ObserveProviderLatency(provider string, d time.Duration) {
	if m != nil {
		m.ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

func (m *Metrics) IncHistoryFailure() {
	if m != nil {
		m.HistoryFailures.Inc()
	}
}
