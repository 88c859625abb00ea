package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spaceforward_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spaceforward_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// indexer queries labelled by network and outcome (active, none, error)
	IndexerQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spaceforward_indexer_queries_total",
			Help: "Total indexer queries by outcome",
		},
		[]string{"network", "outcome"},
	)

	// latency of indexer queries
	IndexerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spaceforward_indexer_duration_seconds",
			Help:    "Duration of indexer queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network"},
	)

	// banner descriptors served, labelled by source (campaign, default, fallback)
	BannerFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spaceforward_banner_fetches_total",
			Help: "Total banner descriptors resolved by source",
		},
		[]string{"source"},
	)

	// content-addressed gateway picks
	GatewaySelections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spaceforward_gateway_selections_total",
			Help: "Total gateway selections per gateway",
		},
		[]string{"gateway"},
	)

	// proxied image outcomes (image/png, image/jpeg, image/gif, unsupported, upstream_error)
	ImageResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spaceforward_image_responses_total",
			Help: "Total proxied images by outcome",
		},
		[]string{"outcome"},
	)

	// beacon deliveries per event, sink and outcome
	BeaconDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spaceforward_beacon_deliveries_total",
			Help: "Total beacon deliveries",
		},
		[]string{"event", "sink", "outcome"},
	)

	// visits and clicks received, labelled by device class
	SpaceEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spaceforward_space_events_total",
			Help: "Total space events received",
		},
		[]string{"event", "device"},
	)

	// beacon events checked against the per-space token bucket
	RateLimitRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spaceforward_rate_limit_requests_total",
			Help: "Total beacon events checked by the rate limiter",
		},
		[]string{"network"},
	)

	// beacon events rejected because the space's bucket was empty
	RateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spaceforward_rate_limit_hits_total",
			Help: "Total beacon events rejected by the rate limiter",
		},
		[]string{"network"},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		IndexerQueries,
		IndexerLatency,
		BannerFetches,
		GatewaySelections,
		ImageResponses,
		BeaconDeliveries,
		SpaceEvents,
		RateLimitRequests,
		RateLimitHits,
	)
}
