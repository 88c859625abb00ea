package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/patrickwarner/spaceforward/internal/db"
	"github.com/patrickwarner/spaceforward/internal/delivery"
	"github.com/patrickwarner/spaceforward/internal/models"
)

type noCampaigns struct{}

func (noCampaigns) ResolveActiveCampaign(context.Context, string, models.Network, time.Time) (models.Campaign, bool) {
	return models.Campaign{}, false
}

type defaultBanners struct{}

func (defaultBanners) Fetch(_ context.Context, _ *models.Campaign, _ string, format models.Format, style models.Style) models.Banner {
	if format == "" {
		format, style = models.DefaultFormat, models.DefaultStyle
	}
	return models.Banner{Default: true, Descriptor: models.BannerDescriptor{
		Image: "https://gw.example/" + string(format) + "-" + string(style) + ".png",
		URL:   "https://www.zesty.market",
	}}
}

type passthrough struct{}

func (passthrough) Normalize(_ context.Context, locator string) (string, error) { return locator, nil }

func newTestSpaceServer(t *testing.T, store *db.RedisStore) *SpaceServer {
	return &SpaceServer{
		networks: models.NetworkTable{"polygon": {Name: "polygon", ChainID: 137}},
		pipeline: &delivery.Pipeline{
			Resolver:    noCampaigns{},
			Banners:     defaultBanners{},
			Normalizer:  passthrough{},
			AppURL:      "https://app.zesty.market",
			PlatformURL: "https://www.zesty.market",
		},
		store:  store,
		logger: zaptest.NewLogger(t),
	}
}

func TestResolveSpace(t *testing.T) {
	s := newTestSpaceServer(t, nil)

	_, out, err := s.ResolveSpace(context.Background(), nil, ResolveSpaceInput{Network: "polygon", SpaceID: "3", Format: "wide", Style: "minimal"})
	require.NoError(t, err)
	assert.True(t, out.Default)
	assert.Equal(t, 137, out.ChainID)
	assert.Equal(t, "https://gw.example/wide-minimal.png", out.ImageURL)
	assert.Equal(t, "https://app.zesty.market/space/3?chainId=137", out.LandingURL)
}

func TestResolveSpace_InvalidInput(t *testing.T) {
	s := newTestSpaceServer(t, nil)
	ctx := context.Background()

	_, _, err := s.ResolveSpace(ctx, nil, ResolveSpaceInput{Network: "solana", SpaceID: "3"})
	assert.ErrorIs(t, err, models.ErrUnsupportedNetwork)

	_, _, err = s.ResolveSpace(ctx, nil, ResolveSpaceInput{Network: "polygon"})
	assert.Error(t, err)

	_, _, err = s.ResolveSpace(ctx, nil, ResolveSpaceInput{Network: "polygon", SpaceID: "3", Format: "round"})
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestSpaceStats(t *testing.T) {
	mr := miniredis.RunT(t)
	store := db.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer store.Close()

	day := time.Date(2022, 4, 15, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()
	_, err := store.IncrementSpaceCounter(ctx, "polygon", "3", "visits", day)
	require.NoError(t, err)
	_, err = store.IncrementSpaceCounter(ctx, "polygon", "3", "clicks", day)
	require.NoError(t, err)
	_, err = store.IncrementSpaceCounter(ctx, "polygon", "3", "visits", day)
	require.NoError(t, err)

	s := newTestSpaceServer(t, store)
	_, out, err := s.SpaceStats(ctx, nil, SpaceStatsInput{Network: "polygon", SpaceID: "3", Date: "2022-04-15"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Visits)
	assert.Equal(t, int64(1), out.Clicks)

	_, _, err = s.SpaceStats(ctx, nil, SpaceStatsInput{Network: "polygon", SpaceID: "3", Date: "15/04/2022"})
	assert.Error(t, err)
}

func TestSpaceStats_NoStore(t *testing.T) {
	s := newTestSpaceServer(t, nil)
	_, _, err := s.SpaceStats(context.Background(), nil, SpaceStatsInput{Network: "polygon", SpaceID: "3"})
	assert.Error(t, err)
}

func TestNewMCPServerRegistersTools(t *testing.T) {
	assert.NotPanics(t, func() { newMCPServer(newTestSpaceServer(t, nil)) })
}
