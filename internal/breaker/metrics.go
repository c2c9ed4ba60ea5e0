package breaker

import (
	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Metrics names as constants for consistency.
const (
	MetricState       = "circuit_breaker_state"
	MetricTransitions = "circuit_breaker_transitions_total"
	MetricRejected    = "circuit_breaker_rejected_total"
)

// Metrics contains Prometheus metrics for circuit breakers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	rejected    *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance. The metrics are not registered;
// call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricState,
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricTransitions,
			Help: "Circuit breaker state transitions",
		}, []string{"name", "from", "to"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRejected,
			Help: "Calls rejected without reaching the store",
		}, []string{"name"}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors for custom registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.state, m.transitions, m.rejected}
}

func (m *Metrics) setState(name string, s gobreaker.State) {
	if m == nil {
		return
	}
	m.state.WithLabelValues(name).Set(stateValue(s))
}

func (m *Metrics) incTransition(name, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(name, from, to).Inc()
}

func (m *Metrics) incRejected(name string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(name).Inc()
}
