package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/spaceforward/internal/beacon"
	"github.com/patrickwarner/spaceforward/internal/config"
	"github.com/patrickwarner/spaceforward/internal/db"
	"github.com/patrickwarner/spaceforward/internal/delivery"
	"github.com/patrickwarner/spaceforward/internal/models"
	"github.com/patrickwarner/spaceforward/internal/observability"
)

type ResolveSpaceInput struct {
	Network string `json:"network"`
	SpaceID string `json:"space_id"`
	Format  string `json:"format,omitempty"`
	Style   string `json:"style,omitempty"`
}

type ResolveSpaceOutput struct {
	Network    string                  `json:"network"`
	ChainID    int                     `json:"chain_id"`
	SpaceID    string                  `json:"space_id"`
	Default    bool                    `json:"default"`
	CampaignID string                  `json:"campaign_id,omitempty"`
	URI        string                  `json:"uri,omitempty"`
	Banner     models.BannerDescriptor `json:"banner"`
	ImageURL   string                  `json:"image_url,omitempty"`
	LandingURL string                  `json:"landing_url"`
}

type SpaceStatsInput struct {
	Network string `json:"network"`
	SpaceID string `json:"space_id"`
	Date    string `json:"date,omitempty"` // YYYY-MM-DD, defaults to today (UTC)
}

type SpaceStatsOutput struct {
	Network string `json:"network"`
	SpaceID string `json:"space_id"`
	Date    string `json:"date"`
	Visits  int64  `json:"visits"`
	Clicks  int64  `json:"clicks"`
}

// SpaceServer holds our dependencies
type SpaceServer struct {
	networks models.NetworkTable
	pipeline *delivery.Pipeline
	store    *db.RedisStore
	logger   *zap.Logger
}

// ResolveSpace runs the resolution pipeline for a space without fetching the image.
func (s *SpaceServer) ResolveSpace(ctx context.Context, req *mcp.CallToolRequest, input ResolveSpaceInput) (*mcp.CallToolResult, ResolveSpaceOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	network, err := s.networks.Lookup(input.Network)
	if err != nil {
		return nil, ResolveSpaceOutput{}, err
	}
	if input.SpaceID == "" {
		return nil, ResolveSpaceOutput{}, errors.New("space_id is required")
	}

	var format models.Format
	var style models.Style
	if input.Format != "" {
		if format, err = models.ParseFormat(input.Format); err != nil {
			return nil, ResolveSpaceOutput{}, err
		}
	}
	if input.Style != "" {
		if style, err = models.ParseStyle(input.Style); err != nil {
			return nil, ResolveSpaceOutput{}, err
		}
	}

	b := s.pipeline.Banner(ctx, network, input.SpaceID, format, style)
	out := ResolveSpaceOutput{
		Network:    network.Name,
		ChainID:    network.ChainID,
		SpaceID:    input.SpaceID,
		Default:    b.Default,
		CampaignID: b.CampaignID,
		URI:        b.URI,
		Banner:     b.Descriptor,
		LandingURL: s.pipeline.LandingURL(b, network, input.SpaceID),
	}
	if imageURL, err := s.pipeline.Normalizer.Normalize(ctx, b.Descriptor.Image); err != nil {
		s.logger.Warn("image locator could not be normalized",
			zap.String("space_id", input.SpaceID),
			zap.String("image", b.Descriptor.Image),
			zap.Error(err))
	} else {
		out.ImageURL = imageURL
	}

	s.logger.Info("Resolved space",
		zap.String("network", network.Name),
		zap.String("space_id", input.SpaceID),
		zap.Bool("default", b.Default))
	return nil, out, nil
}

// SpaceStats reports the daily visit and click counters kept by the Redis beacon sink.
func (s *SpaceServer) SpaceStats(ctx context.Context, req *mcp.CallToolRequest, input SpaceStatsInput) (*mcp.CallToolResult, SpaceStatsOutput, error) {
	if s.store == nil {
		return nil, SpaceStatsOutput{}, errors.New("space stats need BEACON_REDIS_ADDR to be configured")
	}
	network, err := s.networks.Lookup(input.Network)
	if err != nil {
		return nil, SpaceStatsOutput{}, err
	}

	day := time.Now().UTC()
	if input.Date != "" {
		if day, err = time.Parse("2006-01-02", input.Date); err != nil {
			return nil, SpaceStatsOutput{}, fmt.Errorf("invalid date %q: %w", input.Date, err)
		}
	}

	visits, err := s.store.SpaceCounter(ctx, network.Name, input.SpaceID, string(beacon.EventVisit), day)
	if err != nil {
		return nil, SpaceStatsOutput{}, fmt.Errorf("read visits: %w", err)
	}
	clicks, err := s.store.SpaceCounter(ctx, network.Name, input.SpaceID, string(beacon.EventClick), day)
	if err != nil {
		return nil, SpaceStatsOutput{}, fmt.Errorf("read clicks: %w", err)
	}

	return nil, SpaceStatsOutput{
		Network: network.Name,
		SpaceID: input.SpaceID,
		Date:    day.Format("2006-01-02"),
		Visits:  visits,
		Clicks:  clicks,
	}, nil
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// zap writes to stderr, leaving stdout to the MCP transport
	logger, err := observability.InitLoggerWithService(cfg.ServiceName + "-mcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	pipeline, err := delivery.New(cfg, delivery.NewHTTPClient(cfg.UpstreamTimeout), logger, observability.NewNoOpRegistry())
	if err != nil {
		logger.Fatal("Failed to build pipeline", zap.Error(err))
	}

	var store *db.RedisStore
	if cfg.BeaconRedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err = db.InitRedis(ctx, cfg.BeaconRedisAddr)
		cancel()
		if err != nil {
			logger.Warn("Redis unavailable, space_stats disabled", zap.Error(err))
			store = nil
		} else {
			defer store.Close()
		}
	}

	spaceServer := &SpaceServer{
		networks: cfg.Networks(),
		pipeline: pipeline,
		store:    store,
		logger:   logger,
	}

	server := newMCPServer(spaceServer)

	logger.Info("MCP Server running via stdio")
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func newMCPServer(s *SpaceServer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "spaceforward",
		Version: observability.ServiceVersion,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_space",
		Description: "Resolve the banner currently active for an advertising space",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"network": map[string]interface{}{
					"type":        "string",
					"enum":        s.networks.Names(),
					"description": "Network the space lives on",
				},
				"space_id": map[string]interface{}{
					"type":        "string",
					"description": "Space token id",
				},
				"format": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"tall", "wide", "square"},
					"description": "Banner format used for the default banner (optional)",
				},
				"style": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"standard", "minimal", "transparent"},
					"description": "Banner style used for the default banner (optional)",
				},
			},
			"required": []string{"network", "space_id"},
		},
	}, s.ResolveSpace)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "space_stats",
		Description: "Daily visit and click counters for a space",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"network": map[string]interface{}{
					"type":        "string",
					"enum":        s.networks.Names(),
					"description": "Network the space lives on",
				},
				"space_id": map[string]interface{}{
					"type":        "string",
					"description": "Space token id",
				},
				"date": map[string]interface{}{
					"type":        "string",
					"format":      "date",
					"description": "Day to report, YYYY-MM-DD (optional, defaults to today UTC)",
				},
			},
			"required": []string{"network", "space_id"},
		},
	}, s.SpaceStats)

	return server
}
