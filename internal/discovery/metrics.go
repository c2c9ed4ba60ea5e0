package discovery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRequestsTotal      = "discovery_requests_total"
	MetricRequestDuration    = "discovery_request_duration_seconds"
	MetricResultItems        = "discovery_result_items"
	MetricKeywordResolutions = "discovery_keyword_resolutions_total"
	MetricSuggestionBlocks   = "discovery_suggestion_blocks_total"
	MetricUpstreamFailures   = "discovery_upstream_failures_total"
)

// Operation labels.
const (
	OpSearchText     = "search_text"
	OpSearchLandmark = "search_landmark"
	OpTimeline       = "timeline"
	OpDiscover       = "discover"
)

// Metrics contains Prometheus metrics for discovery requests.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests           *prometheus.CounterVec
	duration           *prometheus.HistogramVec
	resultItems        *prometheus.HistogramVec
	keywordResolutions *prometheus.CounterVec
	suggestionBlocks   prometheus.Counter
	upstreamFailures   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance. The metrics are not registered;
// call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRequestsTotal,
			Help: "Total number of discovery requests by operation and outcome",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricRequestDuration,
			Help:    "Discovery request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"operation"}),
		resultItems: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricResultItems,
			Help:    "Number of items returned per page",
			Buckets: []float64{0, 1, 5, 10, 20, 50},
		}, []string{"operation"}),
		keywordResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricKeywordResolutions,
			Help: "Keyword resolutions by match kind (direct, alias, none)",
		}, []string{"kind"}),
		suggestionBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSuggestionBlocks,
			Help: "Total number of suggestion blocks returned",
		}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricUpstreamFailures,
			Help: "Total number of upstream store failures by source",
		}, []string{"source"}),
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

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.duration,
		m.resultItems,
		m.keywordResolutions,
		m.suggestionBlocks,
		m.upstreamFailures,
	}
}

func (m *Metrics) observeRequest(operation, outcome string, elapsed time.Duration, items int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if outcome == outcomeOK {
		m.resultItems.WithLabelValues(operation).Observe(float64(items))
	}
}

func (m *Metrics) incKeyword(kind string) {
	if m == nil {
		return
	}
	m.keywordResolutions.WithLabelValues(kind).Inc()
}

func (m *Metrics) incSuggestionBlock() {
	if m == nil {
		return
	}
	m.suggestionBlocks.Inc()
}

func (m *Metrics) incUpstreamFailure(source string) {
	if m == nil {
		return
	}
	m.upstreamFailures.WithLabelValues(source).Inc()
}
