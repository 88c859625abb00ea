package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// so components receive metrics through dependency injection rather than globals.
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Resolution metrics
	IncrementIndexerQueries(network, outcome string)
	RecordIndexerLatency(network string, duration time.Duration)
	IncrementBannerFetches(source string)
	IncrementGatewaySelections(gateway string)

	// Proxy metrics
	IncrementImageResponses(outcome string)

	// Beacon metrics
	IncrementBeaconDeliveries(event, sink, outcome string)
	IncrementSpaceEvents(event, device string)

	// Rate limiting metrics
	IncrementRateLimitRequests(network string)
	IncrementRateLimitHits(network string)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

// HTTP Request metrics
func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// Resolution metrics
func (r *PrometheusRegistry) IncrementIndexerQueries(network, outcome string) {
	IndexerQueries.WithLabelValues(network, outcome).Inc()
}

func (r *PrometheusRegistry) RecordIndexerLatency(network string, duration time.Duration) {
	IndexerLatency.WithLabelValues(network).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementBannerFetches(source string) {
	BannerFetches.WithLabelValues(source).Inc()
}

func (r *PrometheusRegistry) IncrementGatewaySelections(gateway string) {
	GatewaySelections.WithLabelValues(gateway).Inc()
}

// Proxy metrics
func (r *PrometheusRegistry) IncrementImageResponses(outcome string) {
	ImageResponses.WithLabelValues(outcome).Inc()
}

// Beacon metrics
func (r *PrometheusRegistry) IncrementBeaconDeliveries(event, sink, outcome string) {
	BeaconDeliveries.WithLabelValues(event, sink, outcome).Inc()
}

func (r *PrometheusRegistry) IncrementSpaceEvents(event, device string) {
	SpaceEvents.WithLabelValues(event, device).Inc()
}

// Rate limiting metrics
func (r *PrometheusRegistry) IncrementRateLimitRequests(network string) {
	RateLimitRequests.WithLabelValues(network).Inc()
}

func (r *PrometheusRegistry) IncrementRateLimitHits(network string) {
	RateLimitHits.WithLabelValues(network).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

// HTTP Request metrics
func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

// Resolution metrics
func (r *NoOpRegistry) IncrementIndexerQueries(network, outcome string)              {}
func (r *NoOpRegistry) RecordIndexerLatency(network string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementBannerFetches(source string)                        {}
func (r *NoOpRegistry) IncrementGatewaySelections(gateway string)                   {}

// Proxy metrics
func (r *NoOpRegistry) IncrementImageResponses(outcome string) {}

// Beacon metrics
func (r *NoOpRegistry) IncrementBeaconDeliveries(event, sink, outcome string) {}
func (r *NoOpRegistry) IncrementSpaceEvents(event, device string)           {}

// Rate limiting metrics
func (r *NoOpRegistry) IncrementRateLimitRequests(network string) {}
func (r *NoOpRegistry) IncrementRateLimitHits(network string)     {}
