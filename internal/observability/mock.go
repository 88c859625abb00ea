package observability

import (
	"strings"
	"sync"
	"time"
)

// MockMetricsRegistry records every counter increment so tests can assert on them.
// Keys are the metric name followed by its label values, joined with "|".
type MockMetricsRegistry struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMockMetricsRegistry creates an empty MockMetricsRegistry.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{counts: make(map[string]int)}
}

func (m *MockMetricsRegistry) inc(parts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[strings.Join(parts, "|")]++
}

// Count returns how many times the metric with the given labels was incremented.
func (m *MockMetricsRegistry) Count(parts ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[strings.Join(parts, "|")]
}

// HTTP Request metrics
func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.inc("requests", endpoint, method, status)
}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

// Resolution metrics
func (m *MockMetricsRegistry) IncrementIndexerQueries(network, outcome string) {
	m.inc("indexer", network, outcome)
}
func (m *MockMetricsRegistry) RecordIndexerLatency(network string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementBannerFetches(source string) {
	m.inc("banner", source)
}
func (m *MockMetricsRegistry) IncrementGatewaySelections(gateway string) {
	m.inc("gateway", gateway)
}

// Proxy metrics
func (m *MockMetricsRegistry) IncrementImageResponses(outcome string) {
	m.inc("image", outcome)
}

// Beacon metrics
func (m *MockMetricsRegistry) IncrementBeaconDeliveries(event, sink, outcome string) {
	m.inc("beacon", event, sink, outcome)
}
func (m *MockMetricsRegistry) IncrementSpaceEvents(event, device string) {
	m.inc("space_event", event, device)
}

// Rate limiting metrics
func (m *MockMetricsRegistry) IncrementRateLimitRequests(network string) {
	m.inc("rate_limit_requests", network)
}
func (m *MockMetricsRegistry) IncrementRateLimitHits(network string) {
	m.inc("rate_limit_hits", network)
}
