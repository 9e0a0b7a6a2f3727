package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry.
type Metrics struct {
	Registrations        *prometheus.CounterVec
	Rejections           *prometheus.CounterVec
	CreditPurchases      prometheus.Counter
	RegistrationDuration prometheus.Histogram
}

// New registers the registry metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idverifier_registrations_total",
			Help: "Successful identity registrations by payment mode",
		}, []string{"payment"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idverifier_rejections_total",
			Help: "Rejected state-changing calls by operation and reason",
		}, []string{"operation", "reason"}),
		CreditPurchases: factory.NewCounter(prometheus.CounterOpts{
			Name: "idverifier_credit_purchases_total",
			Help: "Prepaid verification credits purchased",
		}),
		RegistrationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "idverifier_registration_duration_seconds",
			Help:    "Duration of registration calls including ledger commit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncRegistration(payment string) {
	m.Registrations.WithLabelValues(payment).Inc()
}

func (m *Metrics) IncRejection(operation, reason string) {
	m.Rejections.WithLabelValues(operation, reason).Inc()
}

func (m *Metrics) IncCreditPurchase() {
	m.CreditPurchases.Inc()
}

// ObserveRegistration records a registration's duration.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRegistration(start time.Time) {
	m.RegistrationDuration.Observe(time.Since(start).Seconds())
}
