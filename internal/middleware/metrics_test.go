package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// counterValue reads the current value of a counter.
func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	m.IncRateLimitRequests("/search", "viewer")
	m.IncRateLimitBlocked("/search", "ip")
	m.IncRateLimitStoreErrors()
	m.ObserveHTTPRequest("GET", "/search", "200", 0.01, 512)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	for _, name := range []string{
		MetricRateLimitRequests,
		MetricRateLimitBlocked,
		MetricRateLimitStoreErrors,
		MetricHTTPRequestDuration,
		MetricHTTPRequestsTotal,
		MetricHTTPResponseSizeBytes,
	} {
		if findFamily(families, name) == nil {
			t.Errorf("metric %s not found in registry", name)
		}
	}
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestMetrics_IncRateLimitRequests(t *testing.T) {
	m := NewMetrics()
	m.IncRateLimitRequests("/search", "viewer")
	m.IncRateLimitRequests("/search", "viewer")
	m.IncRateLimitRequests("/discover", "ip")

	if got := counterValue(t, m.rateLimitRequests.WithLabelValues("/search", "viewer")); got != 2 {
		t.Errorf("/search viewer = %v, want 2", got)
	}
	if got := counterValue(t, m.rateLimitRequests.WithLabelValues("/discover", "ip")); got != 1 {
		t.Errorf("/discover ip = %v, want 1", got)
	}
}

func TestMetrics_ObserveHTTPRequest(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	m.ObserveHTTPRequest("GET", "/timeline", "200", 0.02, 1024)
	m.ObserveHTTPRequest("GET", "/timeline", "200", 0.03, 2048)

	if got := counterValue(t, m.httpRequestsTotal.WithLabelValues("GET", "/timeline", "200")); got != 2 {
		t.Errorf("requests total = %v, want 2", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	size := findFamily(families, MetricHTTPResponseSizeBytes)
	if size == nil {
		t.Fatal("response size histogram not found")
	}
	h := size.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 || h.GetSampleSum() != 3072 {
		t.Errorf("histogram count=%d sum=%v, want 2 and 3072", h.GetSampleCount(), h.GetSampleSum())
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.IncRateLimitRequests("/search", "ip")
	m.IncRateLimitBlocked("/search", "ip")
	m.IncRateLimitStoreErrors()
	m.ObserveHTTPRequest("GET", "/search", "200", 0.1, 10)
}

func TestMetrics_Collectors(t *testing.T) {
	if got := len(NewMetrics().Collectors()); got != 6 {
		t.Errorf("expected 6 collectors, got %d", got)
	}
}
