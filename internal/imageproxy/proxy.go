// Package imageproxy fetches banner images and classifies them by their leading bytes.
package imageproxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/patrickwarner/spaceforward/internal/models"
	"github.com/patrickwarner/spaceforward/internal/observability"
)

// Image response outcomes reported to metrics besides the content type.
const (
	OutcomeUnsupported   = "unsupported"
	OutcomeUpstreamError = "upstream_error"
)

type signature struct {
	magic       []byte
	contentType string
}

// Only these exact prefixes are accepted. Upstream Content-Type headers and file
// extensions are never consulted.
var signatures = []signature{
	{magic: []byte{0xff, 0xd8, 0xff, 0xe0}, contentType: "image/jpeg"},
	{magic: []byte{0x89, 0x50, 0x4e, 0x47}, contentType: "image/png"},
	{magic: []byte{0x47, 0x49, 0x46, 0x38}, contentType: "image/gif"},
}

// Image is a fetched image body with its detected content type.
type Image struct {
	Body        []byte
	ContentType string
}

// DetectImageType returns the content type for the first four bytes of b.
func DetectImageType(b []byte) (string, bool) {
	for _, s := range signatures {
		if bytes.HasPrefix(b, s.magic) {
			return s.contentType, true
		}
	}
	return "", false
}

// Proxy fetches images from upstream URLs.
type Proxy struct {
	httpClient *http.Client
	maxBytes   int64
	logger     *zap.Logger
	metrics    observability.MetricsRegistry
}

// NewProxy creates a Proxy. Bodies larger than maxBytes are rejected.
func NewProxy(httpClient *http.Client, maxBytes int64, logger *zap.Logger, metrics observability.MetricsRegistry) *Proxy {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Proxy{
		httpClient: httpClient,
		maxBytes:   maxBytes,
		logger:     logger.Named("imageproxy"),
		metrics:    metrics,
	}
}

// Fetch downloads url and classifies the body. Network failures, non-200 statuses
// and oversized bodies return ErrUpstreamFetchFailed; unknown signatures return
// ErrUnsupportedImageFormat. Nothing is retried.
func (p *Proxy) Fetch(ctx context.Context, url string) (Image, error) {
	body, err := p.download(ctx, url)
	if err != nil {
		p.metrics.IncrementImageResponses(OutcomeUpstreamError)
		return Image{}, err
	}

	ct, ok := DetectImageType(body)
	if !ok {
		p.metrics.IncrementImageResponses(OutcomeUnsupported)
		head := body
		if len(head) > 4 {
			head = head[:4]
		}
		return Image{}, fmt.Errorf("%w: leading bytes %x", models.ErrUnsupportedImageFormat, head)
	}

	p.metrics.IncrementImageResponses(ct)
	return Image{Body: body, ContentType: ct}, nil
}

func (p *Proxy) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", models.ErrUpstreamFetchFailed, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamFetchFailed, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			p.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d from %s", models.ErrUpstreamFetchFailed, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", models.ErrUpstreamFetchFailed, err)
	}
	if int64(len(body)) > p.maxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", models.ErrUpstreamFetchFailed, p.maxBytes)
	}
	return body, nil
}
