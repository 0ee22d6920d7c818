package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the compliance gate.
type Metrics struct {
	// Cash authorization decisions by result (authorized, denied)
	CashDecisions *prometheus.CounterVec

	// AML check outcomes by resulting status
	AMLChecks *prometheus.CounterVec

	ScreeningFailures prometheus.Counter

	// Regulator submissions by result (published, failed)
	Submissions *prometheus.CounterVec

	DocumentsGenerated prometheus.Counter
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return &Metrics{
		CashDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_compliance_cash_decisions_total",
			Help: "Cash authorization decisions by result",
		}, []string{"result"}),
		AMLChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_compliance_aml_checks_total",
			Help: "AML checks by resulting status",
		}, []string{"status"}),
		ScreeningFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bullion_compliance_screening_failures_total",
			Help: "Watchlist lookups that failed",
		}),
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_compliance_regulatory_submissions_total",
			Help: "Regulator submissions by result",
		}, []string{"result"}),
		DocumentsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bullion_compliance_documents_generated_total",
			Help: "AML profile documents generated",
		}),
	}
}

func (m *Metrics) IncCashDecision(authorized bool) {
	if m != nil {
		result := "denied"
		if authorized {
			result = "authorized"
		}
		m.CashDecisions.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncAMLCheck(status string) {
	if m != nil {
		m.AMLChecks.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncScreeningFailure() {
	if m != nil {
		m.ScreeningFailures.Inc()
	}
}

func (m *Metrics) IncSubmission(result string) {
	if m != nil {
		m.Submissions.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncDocument() {
	if m != nil {
		m.DocumentsGenerated.Inc()
	}
}
