package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks downstream event delivery.
type Metrics struct {
	Delivered    prometheus.Counter
	Failed       prometheus.Counter
	Dropped      prometheus.Counter
	CircuitState prometheus.Gauge
}

// NewMetrics registers the delivery metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Delivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "idverifier_events_delivered_total",
			Help: "Registry events handed to the downstream sink",
		}),
		Failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "idverifier_events_failed_total",
			Help: "Registry events whose delivery returned an error",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "idverifier_events_dropped_total",
			Help: "Registry events dropped while the sink circuit was open",
		}),
		CircuitState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "idverifier_events_circuit_open",
			Help: "Event sink circuit state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) addDelivered(n int) {
	if m != nil {
		m.Delivered.Add(float64(n))
	}
}

func (m *Metrics) addFailed(n int) {
	if m != nil {
		m.Failed.Add(float64(n))
	}
}

func (m *Metrics) addDropped(n int) {
	if m != nil {
		m.Dropped.Add(float64(n))
	}
}

func (m *Metrics) setCircuitState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitState.Set(1)
	} else {
		m.CircuitState.Set(0)
	}
}
