package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for desk operations.
type Metrics struct {
	// Operations created by kind
	Created *prometheus.CounterVec

	// Confirmation attempts by result (confirmed, denied, failed)
	Confirmations *prometheus.CounterVec

	// Traded value of confirmed operations by metal
	ConfirmedValue *prometheus.CounterVec
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_operations_created_total",
			Help: "Operations created by kind",
		}, []string{"kind"}),
		Confirmations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_operations_confirmations_total",
			Help: "Operation confirmation attempts by result",
		}, []string{"result"}),
		ConfirmedValue: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_operations_confirmed_value_total",
			Help: "Value of confirmed operations by metal",
		}, []string{"metal"}),
	}
}

func (m *Metrics) IncCreated(kind string) {
	if m != nil {
		m.Created.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncConfirmation(result string) {
	if m != nil {
		m.Confirmations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) AddConfirmedValue(metal string, value float64) {
	if m != nil {
		m.ConfirmedValue.WithLabelValues(metal).Add(value)
	}
}
