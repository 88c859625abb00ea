// Package indexer resolves the currently active campaign of a space by querying
// the per-network auction indexer.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/spaceforward/internal/models"
	"github.com/patrickwarner/spaceforward/internal/observability"
)

// MaxAuctions caps the auctions requested per space.
const MaxAuctions = 5

// maxResponseBytes bounds how much of an indexer response is decoded.
const maxResponseBytes = 4 << 20

const activeAuctionsQuery = `query ActiveAuctions($id: ID!, $now: BigInt!) {
  tokenDatas(where: { id: $id }) {
    id
    sellerNFTSetting {
      sellerAuctions(first: 5, where: { contractTimeStart_lte: $now, contractTimeEnd_gte: $now, cancelled: false }) {
        id
        contractTimeStart
        contractTimeEnd
        cancelled
        buyerCampaigns {
          id
          uri
        }
        buyerCampaignsApproved
        buyerCampaignsIdList
      }
    }
  }
}`

var tracer = observability.Tracer("indexer")

// Resolver queries the indexer and reduces the auction graph to a single campaign.
type Resolver struct {
	httpClient *http.Client
	logger     *zap.Logger
	metrics    observability.MetricsRegistry
}

// NewResolver creates a Resolver. The client's timeout bounds every indexer query.
func NewResolver(httpClient *http.Client, logger *zap.Logger, metrics observability.MetricsRegistry) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Resolver{
		httpClient: httpClient,
		logger:     logger.Named("indexer"),
		metrics:    metrics,
	}
}

// ResolveActiveCampaign returns the latest approved campaign of the first auction
// active at now. Any indexer failure is logged and reported as no campaign.
func (r *Resolver) ResolveActiveCampaign(ctx context.Context, space string, network models.Network, now time.Time) (models.Campaign, bool) {
	auctions, err := r.ActiveAuctions(ctx, space, network, now)
	if err != nil {
		r.logger.Warn("indexer query failed, falling back to default banner",
			zap.Error(err),
			zap.String("space_id", space),
			zap.String("network", network.Name))
		return models.Campaign{}, false
	}
	return SelectActiveCampaign(auctions, now.Unix())
}

// ActiveAuctions queries the indexer for the auctions of space whose window
// contains now. An unknown space yields an empty slice and no error.
func (r *Resolver) ActiveAuctions(ctx context.Context, space string, network models.Network, now time.Time) ([]models.Auction, error) {
	ctx, span := tracer.Start(ctx, "ActiveAuctions",
		trace.WithAttributes(
			attribute.String("space.id", space),
			attribute.String("network", network.Name),
		))
	defer span.End()

	start := time.Now()
	outcome := "success"
	defer func() {
		r.metrics.RecordIndexerLatency(network.Name, time.Since(start))
		r.metrics.IncrementIndexerQueries(network.Name, outcome)
	}()

	if strings.TrimSpace(space) == "" {
		outcome = "failure"
		return nil, fmt.Errorf("empty space id")
	}

	auctions, err := r.query(ctx, space, network, now.Unix())
	if err != nil {
		outcome = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, "indexer query failed")
		return nil, err
	}
	if len(auctions) == 0 {
		outcome = "empty"
	}
	span.SetAttributes(attribute.Int("auctions.count", len(auctions)))
	return auctions, nil
}

// SelectActiveCampaign takes the first auction active at now and returns its
// last approved campaign. Cancelled and out-of-window auctions are ignored even
// if the indexer returned them, and at most MaxAuctions are considered.
func SelectActiveCampaign(auctions []models.Auction, now int64) (models.Campaign, bool) {
	considered := 0
	for _, a := range auctions {
		if considered == MaxAuctions {
			break
		}
		considered++
		if !a.ActiveAt(now) {
			continue
		}
		return a.LatestApproved()
	}
	return models.Campaign{}, false
}

type graphRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphResponse struct {
	Data *struct {
		TokenDatas []tokenData `json:"tokenDatas"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type tokenData struct {
	ID               string `json:"id"`
	SellerNFTSetting *struct {
		SellerAuctions []sellerAuction `json:"sellerAuctions"`
	} `json:"sellerNFTSetting"`
}

type sellerAuction struct {
	ID                     string            `json:"id"`
	ContractTimeStart      bigInt            `json:"contractTimeStart"`
	ContractTimeEnd        bigInt            `json:"contractTimeEnd"`
	Cancelled              bool              `json:"cancelled"`
	BuyerCampaigns         []models.Campaign `json:"buyerCampaigns"`
	BuyerCampaignsApproved []bool            `json:"buyerCampaignsApproved"`
	BuyerCampaignsIDList   []string          `json:"buyerCampaignsIdList"`
}

// bigInt decodes indexer BigInt values, which arrive as JSON strings.
type bigInt int64

func (b *bigInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*b = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse bigint %q: %w", s, err)
	}
	*b = bigInt(v)
	return nil
}

func (r *Resolver) query(ctx context.Context, space string, network models.Network, now int64) ([]models.Auction, error) {
	body, err := json.Marshal(graphRequest{
		Query: activeAuctionsQuery,
		Variables: map[string]any{
			"id":  space,
			"now": strconv.FormatInt(now, 10),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, network.IndexerURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			r.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(snippet))
	}

	var gr graphResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(gr.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", gr.Errors[0].Message)
	}
	if gr.Data == nil || len(gr.Data.TokenDatas) == 0 || gr.Data.TokenDatas[0].SellerNFTSetting == nil {
		return nil, nil
	}

	raw := gr.Data.TokenDatas[0].SellerNFTSetting.SellerAuctions
	auctions := make([]models.Auction, 0, len(raw))
	for _, sa := range raw {
		auctions = append(auctions, models.Auction{
			ID:          sa.ID,
			Start:       int64(sa.ContractTimeStart),
			End:         int64(sa.ContractTimeEnd),
			Cancelled:   sa.Cancelled,
			Campaigns:   sa.BuyerCampaigns,
			Approved:    sa.BuyerCampaignsApproved,
			CampaignIDs: sa.BuyerCampaignsIDList,
		})
	}
	return auctions, nil
}
