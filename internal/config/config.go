package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/patrickwarner/spaceforward/internal/gateway"
	"github.com/patrickwarner/spaceforward/internal/models"
)

const (
	defaultPolygonIndexer = "https://api.thegraph.com/subgraphs/name/zestymarket/zesty-market-graph-matic"
	defaultRinkebyIndexer = "https://api.thegraph.com/subgraphs/name/zestymarket/zesty-market-graph-rinkeby"
	defaultGateways       = "https://cloudflare-ipfs.com=35,https://gateway.pinata.cloud=35,https://dweb.link=30"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServiceName  string
	// Timeout applied to every external call (indexer, descriptor, image, beacon).
	UpstreamTimeout    time.Duration
	MaxImageBytes      int64
	MaxDescriptorBytes int64
	// Indexer endpoints per chain
	PolygonIndexerURL string
	RinkebyIndexerURL string
	// Content-addressed gateways as "url=weight" pairs
	Gateways      string
	ArweaveURL    string
	AssetIPNSPath string
	// Platform links used for defaults and CTA fallbacks
	PlatformURL string
	AppURL      string
	// Beacon configuration
	BeaconEnabled    bool
	BeaconGraphQLURL string
	BeaconAPIURL     string
	BeaconRedisAddr  string
	BeaconWorkers    int
	BeaconQueueSize  int
	// Per-space beacon throttling
	RateLimitEnabled    bool
	RateLimitCapacity   int
	RateLimitRefillRate int
	// CORS
	CORSAllowedOrigins []string
	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "3000")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	// image bodies are streamed back, so writes get more room than reads
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 30*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "spaceforward")
	cfg.UpstreamTimeout = envDuration("UPSTREAM_TIMEOUT", 8*time.Second)
	cfg.MaxImageBytes = int64(envInt("MAX_IMAGE_BYTES", 10<<20))
	cfg.MaxDescriptorBytes = int64(envInt("MAX_DESCRIPTOR_BYTES", 1<<20))

	cfg.PolygonIndexerURL = getenv("INDEXER_URL_POLYGON", defaultPolygonIndexer)
	cfg.RinkebyIndexerURL = getenv("INDEXER_URL_RINKEBY", defaultRinkebyIndexer)

	cfg.Gateways = getenv("IPFS_GATEWAYS", defaultGateways)
	cfg.ArweaveURL = getenv("ARWEAVE_URL", "https://arweave.net")
	cfg.AssetIPNSPath = getenv("ASSET_IPNS_PATH", "/ipns/lib.zesty.market/assets")

	cfg.PlatformURL = getenv("PLATFORM_URL", "https://www.zesty.market")
	cfg.AppURL = getenv("APP_URL", "https://app.zesty.market")

	cfg.BeaconEnabled = envBool("BEACON_ENABLED", true)
	cfg.BeaconGraphQLURL = getenv("BEACON_GRAPHQL_URL", "https://beacon2.zesty.market/zgraphql")
	cfg.BeaconAPIURL = getenv("BEACON_API_URL", "https://beacon.zesty.market")
	cfg.BeaconRedisAddr = getenv("BEACON_REDIS_ADDR", "")
	cfg.BeaconWorkers = envInt("BEACON_WORKERS", 8)
	cfg.BeaconQueueSize = envInt("BEACON_QUEUE_SIZE", 1000)

	cfg.RateLimitEnabled = envBool("RATE_LIMIT_ENABLED", true)
	cfg.RateLimitCapacity = envInt("RATE_LIMIT_CAPACITY", 100)
	cfg.RateLimitRefillRate = envInt("RATE_LIMIT_REFILL_RATE", 10)

	cfg.CORSAllowedOrigins = envList("CORS_ALLOWED_ORIGINS", []string{"*"})

	// Tracing configuration
	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// Networks builds the network table. "matic" is accepted as an alias of polygon.
func (c Config) Networks() models.NetworkTable {
	polygon := models.Network{Name: "polygon", ChainID: 137, IndexerURL: c.PolygonIndexerURL}
	return models.NetworkTable{
		"polygon": polygon,
		"matic":   polygon,
		"rinkeby": {Name: "rinkeby", ChainID: 4, IndexerURL: c.RinkebyIndexerURL},
	}
}

// GatewayList parses the configured gateway pairs. Entries without a valid
// positive weight are skipped; if nothing valid remains the defaults are used.
func (c Config) GatewayList() []gateway.Gateway {
	if gws := parseGateways(c.Gateways); len(gws) > 0 {
		return gws
	}
	return parseGateways(defaultGateways)
}

func parseGateways(v string) []gateway.Gateway {
	var gws []gateway.Gateway
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		idx := strings.LastIndex(pair, "=")
		if idx <= 0 {
			continue
		}
		w, err := strconv.Atoi(pair[idx+1:])
		if err != nil || w <= 0 {
			continue
		}
		gws = append(gws, gateway.Gateway{
			BaseURL: strings.TrimRight(pair[:idx], "/"),
			Weight:  w,
		})
	}
	return gws
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}

// envList parses a comma-separated environment variable, dropping empty items.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
