// Package protocol turns content locators (ipfs://, ar://, http(s) URLs and bare
// content hashes) into fetchable URLs.
package protocol

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"github.com/patrickwarner/spaceforward/internal/models"
)

const (
	arScheme   = "ar:"
	ipfsScheme = "ipfs:"
)

// GatewaySelector returns the base URL of a content-addressed gateway.
type GatewaySelector interface {
	Select() string
}

// Normalizer rewrites locators into URLs. A gateway is selected on every call,
// so resolved URLs must not be cached across requests.
type Normalizer struct {
	gateways   GatewaySelector
	client     *http.Client
	arweaveURL string
	assetPath  string
	logger     *zap.Logger
}

// NewNormalizer creates a Normalizer. client is used only to follow permanent-storage
// redirects; arweaveURL is the retrieval endpoint and assetPath the IPNS path
// prefix for built-in assets.
func NewNormalizer(gateways GatewaySelector, client *http.Client, arweaveURL, assetPath string, logger *zap.Logger) *Normalizer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Normalizer{
		gateways:   gateways,
		client:     client,
		arweaveURL: strings.TrimRight(arweaveURL, "/"),
		assetPath:  "/" + strings.Trim(assetPath, "/"),
		logger:     logger.Named("normalizer"),
	}
}

// Normalize converts a locator into a fetchable URL. Rules are checked by prefix:
// ar: resolves through the permanent-storage endpoint, anything starting with
// "http" (including https) passes through verbatim, ipfs: and bare hashes are
// rewritten to <gateway>/ipfs/<hash>.
func (n *Normalizer) Normalize(ctx context.Context, locator string) (string, error) {
	loc := strings.TrimSpace(locator)
	if loc == "" {
		return "", fmt.Errorf("%w: empty locator", models.ErrInvalidLocator)
	}

	switch {
	case strings.HasPrefix(loc, arScheme):
		return n.resolveArweave(ctx, stripScheme(loc, arScheme))
	case strings.HasPrefix(loc, "http"):
		return loc, nil
	case strings.HasPrefix(loc, ipfsScheme):
		return n.ipfsURL(stripScheme(loc, ipfsScheme))
	default:
		return n.ipfsURL(loc)
	}
}

// AssetURL returns the gateway URL of a built-in asset under the IPNS asset path.
func (n *Normalizer) AssetURL(name string) string {
	return n.gateways.Select() + n.assetPath + "/" + strings.TrimLeft(name, "/")
}

func (n *Normalizer) ipfsURL(hash string) (string, error) {
	if hash == "" {
		return "", fmt.Errorf("%w: missing content hash", models.ErrInvalidLocator)
	}
	root := hash
	if i := strings.IndexAny(root, "/?#"); i >= 0 {
		root = root[:i]
	}
	if _, err := cid.Decode(root); err != nil {
		// still rewritten: the gateway is the authority on what it can serve
		n.logger.Debug("locator root is not a valid CID", zap.String("hash", hash), zap.Error(err))
	}
	return n.gateways.Select() + "/ipfs/" + hash, nil
}

// resolveArweave follows the permanent-storage endpoint's redirect and returns
// the final asset URL.
func (n *Normalizer) resolveArweave(ctx context.Context, txID string) (string, error) {
	if txID == "" {
		return "", fmt.Errorf("%w: missing transaction id", models.ErrInvalidLocator)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, n.arweaveURL+"/"+txID, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", models.ErrInvalidLocator, err)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s: %v", models.ErrInvalidLocator, txID, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		if err := resp.Body.Close(); err != nil {
			n.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: resolve %s: http %d", models.ErrInvalidLocator, txID, resp.StatusCode)
	}
	return resp.Request.URL.String(), nil
}

// stripScheme removes the scheme and any separator slashes that follow it.
func stripScheme(loc, scheme string) string {
	return strings.TrimLeft(loc[len(scheme):], "/")
}
