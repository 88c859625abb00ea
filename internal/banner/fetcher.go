// Package banner retrieves banner descriptors for campaigns and substitutes the
// built-in defaults when no campaign is active or its descriptor is unusable.
package banner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/spaceforward/internal/models"
	"github.com/patrickwarner/spaceforward/internal/observability"
)

const (
	defaultName        = "Default banner"
	defaultDescription = "This is the default banner that would be displayed ipsum"
)

// Banner fetch sources reported to metrics.
const (
	SourceCampaign = "campaign"
	SourceDefault  = "default"
	SourceFallback = "fallback"
)

// Normalizer rewrites content locators into fetchable URLs.
type Normalizer interface {
	Normalize(ctx context.Context, locator string) (string, error)
	AssetURL(name string) string
}

// Fetcher retrieves banner descriptors.
type Fetcher struct {
	normalizer  Normalizer
	httpClient  *http.Client
	platformURL string
	maxBytes    int64
	logger      *zap.Logger
	metrics     observability.MetricsRegistry
}

// NewFetcher creates a Fetcher. platformURL is the click target of default banners and
// maxBytes bounds descriptor bodies.
func NewFetcher(normalizer Normalizer, httpClient *http.Client, platformURL string, maxBytes int64, logger *zap.Logger, metrics observability.MetricsRegistry) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	return &Fetcher{
		normalizer:  normalizer,
		httpClient:  httpClient,
		platformURL: platformURL,
		maxBytes:    maxBytes,
		logger:      logger.Named("banner"),
		metrics:     metrics,
	}
}

// Fetch returns the banner for campaign, or the default banner for format and
// style when campaign is nil or its descriptor cannot be fetched. It never fails.
// Click URLs of fetched descriptors are tagged with attribution parameters for space.
func (f *Fetcher) Fetch(ctx context.Context, campaign *models.Campaign, space string, format models.Format, style models.Style) models.Banner {
	if campaign == nil {
		f.metrics.IncrementBannerFetches(SourceDefault)
		return f.Default(format, style)
	}

	desc, err := f.fetchDescriptor(ctx, campaign.URI)
	if err != nil {
		f.logger.Warn("banner descriptor unavailable, falling back to default banner",
			zap.Error(err),
			zap.String("space_id", space),
			zap.String("campaign_id", campaign.ID),
			zap.String("uri", campaign.URI))
		f.metrics.IncrementBannerFetches(SourceFallback)
		return f.Default(format, style)
	}

	if desc.URL != "" {
		desc.URL = AddTrackingParams(desc.URL, space)
	}
	f.metrics.IncrementBannerFetches(SourceCampaign)
	return models.Banner{
		URI:        campaign.URI,
		CampaignID: campaign.ID,
		Descriptor: desc,
	}
}

// Default builds the built-in banner. Unrecognized format or style values select the
// global square/standard default.
func (f *Fetcher) Default(format models.Format, style models.Style) models.Banner {
	if !format.Valid() || !style.Valid() {
		format, style = models.DefaultFormat, models.DefaultStyle
	}
	return models.Banner{
		Default: true,
		Descriptor: models.BannerDescriptor{
			Name:        defaultName,
			Description: defaultDescription,
			Image:       f.normalizer.AssetURL(DefaultAssetName(format, style)),
			URL:         f.platformURL,
		},
	}
}

// DefaultAssetName returns the file name of the default image for a format and
// style. The standard style carries no suffix.
func DefaultAssetName(format models.Format, style models.Style) string {
	if style == models.StyleStandard {
		return fmt.Sprintf("zesty-banner-%s.png", format)
	}
	return fmt.Sprintf("zesty-banner-%s-%s.png", format, style)
}

func (f *Fetcher) fetchDescriptor(ctx context.Context, uri string) (models.BannerDescriptor, error) {
	var desc models.BannerDescriptor

	target, err := f.normalizer.Normalize(ctx, uri)
	if err != nil {
		return desc, fmt.Errorf("normalize descriptor uri: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return desc, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return desc, fmt.Errorf("http request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return desc, fmt.Errorf("http %d from %s", resp.StatusCode, target)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, f.maxBytes)).Decode(&desc); err != nil {
		return desc, fmt.Errorf("decode descriptor: %w", err)
	}
	if desc.Image == "" {
		return desc, errors.New("descriptor has no image")
	}

	f.logger.Debug("fetched banner descriptor",
		zap.String("url", target),
		zap.Duration("duration", time.Since(start)))
	return desc, nil
}
