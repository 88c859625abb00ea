// Package delivery wires campaign resolution, banner fetching, locator
// normalization and image proxying into the per-request pipeline.
package delivery

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/spaceforward/internal/imageproxy"
	"github.com/patrickwarner/spaceforward/internal/models"
)

// CampaignResolver finds the active campaign of a space.
type CampaignResolver interface {
	ResolveActiveCampaign(ctx context.Context, space string, network models.Network, now time.Time) (models.Campaign, bool)
}

// BannerFetcher returns a campaign's banner or the default one.
type BannerFetcher interface {
	Fetch(ctx context.Context, campaign *models.Campaign, space string, format models.Format, style models.Style) models.Banner
}

// LocatorNormalizer rewrites content locators into fetchable URLs.
type LocatorNormalizer interface {
	Normalize(ctx context.Context, locator string) (string, error)
}

// ImageFetcher downloads and classifies an image.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (imageproxy.Image, error)
}

var httpScheme = regexp.MustCompile(`^https?://`)

// Pipeline resolves and delivers banners for spaces. All fields are set once at
// start; nothing is cached between calls.
type Pipeline struct {
	Resolver   CampaignResolver
	Banners    BannerFetcher
	Normalizer LocatorNormalizer
	Images     ImageFetcher
	// AppURL hosts the platform's space pages; PlatformURL is the platform home page.
	AppURL      string
	PlatformURL string
	// Now is the clock used for auction windows. Defaults to time.Now.
	Now    func() time.Time
	Logger *zap.Logger
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Banner resolves the active campaign of space and returns its banner, or the
// default banner for format and style.
func (p *Pipeline) Banner(ctx context.Context, network models.Network, space string, format models.Format, style models.Style) models.Banner {
	var campaign *models.Campaign
	if c, ok := p.Resolver.ResolveActiveCampaign(ctx, space, network, p.now()); ok {
		campaign = &c
	}
	return p.Banners.Fetch(ctx, campaign, space, format, style)
}

// Image resolves the banner of space and fetches its image.
func (p *Pipeline) Image(ctx context.Context, network models.Network, space string, format models.Format, style models.Style) (imageproxy.Image, models.Banner, error) {
	b := p.Banner(ctx, network, space, format, style)

	target, err := p.Normalizer.Normalize(ctx, b.Descriptor.Image)
	if err != nil {
		return imageproxy.Image{}, b, fmt.Errorf("normalize image locator: %w", err)
	}
	img, err := p.Images.Fetch(ctx, target)
	if err != nil {
		return imageproxy.Image{}, b, err
	}
	return img, b, nil
}

// ClickURL returns where a click on space should land: the active campaign's
// click URL, or the platform's space page when there is none.
func (p *Pipeline) ClickURL(ctx context.Context, network models.Network, space string) string {
	b := p.Banner(ctx, network, space, models.DefaultFormat, models.DefaultStyle)
	return p.LandingURL(b, network, space)
}

// LandingURL applies the click-through rules to a resolved banner. Default banners,
// empty or unsafe URLs and the platform home page land on the space page. URLs
// without a scheme get https.
func (p *Pipeline) LandingURL(b models.Banner, network models.Network, space string) string {
	spacePage := SpacePageURL(p.AppURL, space, network.ChainID)
	if b.Default {
		return spacePage
	}

	target := strings.TrimSpace(b.Descriptor.URL)
	if target == "" {
		return spacePage
	}
	if !httpScheme.MatchString(target) {
		if strings.Contains(target, "://") {
			p.logger().Warn("click url has unsupported scheme",
				zap.String("space_id", space),
				zap.String("url", target))
			return spacePage
		}
		target = "https://" + target
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return spacePage
	}
	if p.isPlatformHome(u) {
		return spacePage
	}
	return target
}

func (p *Pipeline) isPlatformHome(u *url.URL) bool {
	home, err := url.Parse(p.PlatformURL)
	if err != nil || home.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, home.Host) && strings.Trim(u.Path, "/") == strings.Trim(home.Path, "/")
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// SpacePageURL is the platform page of a space on a chain.
func SpacePageURL(appURL, space string, chainID int) string {
	return fmt.Sprintf("%s/space/%s?chainId=%d", strings.TrimRight(appURL, "/"), url.PathEscape(space), chainID)
}
