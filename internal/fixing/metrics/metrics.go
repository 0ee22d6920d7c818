package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Metrics provides observability for contract settlement.
type Metrics struct {
	ContractsCreated prometheus.Counter

	// Deliveries and grams settled by metal
	Deliveries     *prometheus.CounterVec
	DeliveredGrams *prometheus.CounterVec

	// Delivery requests rejected by the eligibility check
	DeliveryRejections prometheus.Counter

	Renewals prometheus.Counter

	// Contracts moved by the automatic recompute, by target state
	StateTransitions *prometheus.CounterVec
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return &Metrics{
		ContractsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bullion_fixing_contracts_created_total",
			Help: "Fixing contracts created, renewals included",
		}),
		Deliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_fixing_deliveries_total",
			Help: "Deliveries recorded against fixing contracts",
		}, []string{"metal"}),
		DeliveredGrams: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_fixing_delivered_grams_total",
			Help: "Grams delivered against fixing contracts",
		}, []string{"metal"}),
		DeliveryRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bullion_fixing_delivery_rejections_total",
			Help: "Delivery requests rejected by contract rules",
		}),
		Renewals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bullion_fixing_renewals_total",
			Help: "Contracts renewed into a successor",
		}),
		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_fixing_state_transitions_total",
			Help: "Contract state changes by target state",
		}, []string{"status"}),
	}
}

func (m *Metrics) IncContractCreated() {
	if m != nil {
		m.ContractsCreated.Inc()
	}
}

func (m *Metrics) ObserveDelivery(metal string, grams decimal.Decimal) {
	if m != nil {
		m.Deliveries.WithLabelValues(metal).Inc()
		m.DeliveredGrams.WithLabelValues(metal).Add(grams.InexactFloat64())
	}
}

func (m *Metrics) IncDeliveryRejection() {
	if m != nil {
		m.DeliveryRejections.Inc()
	}
}

func (m *Metrics) IncRenewal() {
	if m != nil {
		m.Renewals.Inc()
	}
}

func (m *Metrics) IncTransition(status string) {
	if m != nil {
		m.StateTransitions.WithLabelValues(status).Inc()
	}
}
