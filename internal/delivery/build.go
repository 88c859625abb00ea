package delivery

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/spaceforward/internal/banner"
	"github.com/patrickwarner/spaceforward/internal/config"
	"github.com/patrickwarner/spaceforward/internal/gateway"
	"github.com/patrickwarner/spaceforward/internal/imageproxy"
	"github.com/patrickwarner/spaceforward/internal/indexer"
	"github.com/patrickwarner/spaceforward/internal/observability"
	"github.com/patrickwarner/spaceforward/internal/protocol"
)

// NewHTTPClient returns the client used for every upstream call. Each request is
// bounded by timeout and traced through otelhttp.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// New builds a Pipeline from configuration.
func New(cfg config.Config, client *http.Client, logger *zap.Logger, metrics observability.MetricsRegistry) (*Pipeline, error) {
	selector, err := gateway.NewSelector(cfg.GatewayList(), nil, metrics)
	if err != nil {
		return nil, fmt.Errorf("gateway selector: %w", err)
	}

	normalizer := protocol.NewNormalizer(selector, client, cfg.ArweaveURL, cfg.AssetIPNSPath, logger)
	return &Pipeline{
		Resolver:    indexer.NewResolver(client, logger, metrics),
		Banners:     banner.NewFetcher(normalizer, client, cfg.PlatformURL, cfg.MaxDescriptorBytes, logger, metrics),
		Normalizer:  normalizer,
		Images:      imageproxy.NewProxy(client, cfg.MaxImageBytes, logger, metrics),
		AppURL:      cfg.AppURL,
		PlatformURL: cfg.PlatformURL,
		Now:         time.Now,
		Logger:      logger,
	}, nil
}
