package config

import (
	"testing"
	"time"

	"github.com/patrickwarner/spaceforward/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("UPSTREAM_TIMEOUT", "")
	t.Setenv("IPFS_GATEWAYS", "")
	t.Setenv("RATE_LIMIT_ENABLED", "")
	t.Setenv("RATE_LIMIT_CAPACITY", "")
	t.Setenv("RATE_LIMIT_REFILL_RATE", "")

	cfg := Load()
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 8*time.Second, cfg.UpstreamTimeout)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, 100, cfg.RateLimitCapacity)
	assert.Equal(t, 10, cfg.RateLimitRefillRate)
	assert.Equal(t, []gateway.Gateway{
		{BaseURL: "https://cloudflare-ipfs.com", Weight: 35},
		{BaseURL: "https://gateway.pinata.cloud", Weight: 35},
		{BaseURL: "https://dweb.link", Weight: 30},
	}, cfg.GatewayList())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "6")
	t.Setenv("BEACON_ENABLED", "false")
	t.Setenv("RATE_LIMIT_CAPACITY", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("IPFS_GATEWAYS", "https://gw.example/=3, broken, https://zero.example=0")

	cfg := Load()
	assert.Equal(t, 6*time.Second, cfg.UpstreamTimeout)
	assert.False(t, cfg.BeaconEnabled)
	assert.Equal(t, 5, cfg.RateLimitCapacity)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, []gateway.Gateway{{BaseURL: "https://gw.example", Weight: 3}}, cfg.GatewayList())
}

func TestGatewayListFallsBackWhenNothingValid(t *testing.T) {
	cfg := Config{Gateways: "nonsense"}
	assert.Len(t, cfg.GatewayList(), 3)
}

func TestNetworks(t *testing.T) {
	cfg := Config{PolygonIndexerURL: "https://idx/polygon", RinkebyIndexerURL: "https://idx/rinkeby"}
	table := cfg.Networks()

	matic, err := table.Lookup("matic")
	require.NoError(t, err)
	assert.Equal(t, "polygon", matic.Name)
	assert.Equal(t, 137, matic.ChainID)
	assert.Equal(t, "https://idx/polygon", matic.IndexerURL)

	rinkeby, err := table.Lookup("rinkeby")
	require.NoError(t, err)
	assert.Equal(t, 4, rinkeby.ChainID)

	_, err = table.Lookup("unknownnet")
	assert.Error(t, err)
}
