package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/patrickwarner/spaceforward/internal/banner"
	"github.com/patrickwarner/spaceforward/internal/beacon"
	"github.com/patrickwarner/spaceforward/internal/delivery"
	"github.com/patrickwarner/spaceforward/internal/gateway"
	"github.com/patrickwarner/spaceforward/internal/imageproxy"
	"github.com/patrickwarner/spaceforward/internal/indexer"
	"github.com/patrickwarner/spaceforward/internal/middleware"
	"github.com/patrickwarner/spaceforward/internal/models"
	"github.com/patrickwarner/spaceforward/internal/observability"
	"github.com/patrickwarner/spaceforward/internal/protocol"
	"github.com/patrickwarner/spaceforward/internal/ratelimit"
)

var pngBytes = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

const (
	googlebotUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	desktopUA   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.4896.127 Safari/537.36"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []string
}

func (d *recordingDispatcher) Dispatch(event beacon.Event, network models.Network, space string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, string(event)+":"+network.Name+":"+space)
	return true
}

type testEnv struct {
	handler    http.Handler
	server     *Server
	metrics    *observability.MockMetricsRegistry
	dispatcher *recordingDispatcher

	mu        sync.Mutex
	upstreams []string
}

func (e *testEnv) requested(path string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.upstreams {
		if p == path {
			return true
		}
	}
	return false
}

// newTestEnv serves indexer, descriptor, image and gateway traffic from one fake
// upstream. On polygon, space 1 has a PNG campaign, space 2 a campaign whose image
// is not a supported format and space 3 a campaign whose image is missing.
// Rinkeby has no auctions.
func newTestEnv(t *testing.T) *testEnv {
	env := &testEnv{
		metrics:    observability.NewMockMetricsRegistry(),
		dispatcher: &recordingDispatcher{},
	}

	var upstream *httptest.Server
	upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		env.upstreams = append(env.upstreams, r.URL.Path)
		env.mu.Unlock()

		switch {
		case r.URL.Path == "/graph/polygon":
			var body struct {
				Variables map[string]string `json:"variables"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			uri := map[string]string{
				"1": upstream.URL + "/banner-png.json",
				"2": upstream.URL + "/banner-zeros.json",
				"3": upstream.URL + "/banner-missing.json",
			}[body.Variables["id"]]
			if uri == "" {
				_, _ = w.Write([]byte(`{"data":{"tokenDatas":[]}}`))
				return
			}
			_, _ = w.Write([]byte(`{"data":{"tokenDatas":[{"id":"x","sellerNFTSetting":{"sellerAuctions":[{
				"id":"a","contractTimeStart":"0","contractTimeEnd":"4102444800","cancelled":false,
				"buyerCampaigns":[{"id":"c1","uri":"` + uri + `"}],
				"buyerCampaignsApproved":[true],"buyerCampaignsIdList":["c1"]}]}}]}}`))
		case r.URL.Path == "/graph/rinkeby":
			_, _ = w.Write([]byte(`{"data":{"tokenDatas":[]}}`))
		case r.URL.Path == "/banner-png.json":
			_, _ = w.Write([]byte(`{"name":"Ad","image":"` + upstream.URL + `/img.png","url":"https://advertiser.example/landing"}`))
		case r.URL.Path == "/banner-zeros.json":
			_, _ = w.Write([]byte(`{"name":"Ad","image":"` + upstream.URL + `/zeros.png","url":"advertiser.example"}`))
		case r.URL.Path == "/banner-missing.json":
			_, _ = w.Write([]byte(`{"name":"Ad","image":"` + upstream.URL + `/missing.png","url":"https://advertiser.example"}`))
		case r.URL.Path == "/img.png", strings.HasPrefix(r.URL.Path, "/ipns/"):
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(pngBytes)
		case r.URL.Path == "/zeros.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0, 0, 0, 0, 0})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)

	logger := zaptest.NewLogger(t)
	selector, err := gateway.NewSelector([]gateway.Gateway{{BaseURL: upstream.URL, Weight: 1}}, nil, env.metrics)
	require.NoError(t, err)

	client := upstream.Client()
	normalizer := protocol.NewNormalizer(selector, client, upstream.URL, "/ipns/lib.zesty.market/assets", logger)
	pipeline := &delivery.Pipeline{
		Resolver:    indexer.NewResolver(client, logger, env.metrics),
		Banners:     banner.NewFetcher(normalizer, client, "https://www.zesty.market", 1<<20, logger, env.metrics),
		Normalizer:  normalizer,
		Images:      imageproxy.NewProxy(client, 1<<20, logger, env.metrics),
		AppURL:      "https://app.zesty.market",
		PlatformURL: "https://www.zesty.market",
		Now:         func() time.Time { return time.Unix(1_650_000_000, 0) },
		Logger:      logger,
	}

	polygon := models.Network{Name: "polygon", ChainID: 137, IndexerURL: upstream.URL + "/graph/polygon"}
	networks := models.NetworkTable{
		"polygon": polygon,
		"matic":   polygon,
		"rinkeby": {Name: "rinkeby", ChainID: 4, IndexerURL: upstream.URL + "/graph/rinkeby"},
	}

	srv := NewServer(logger, networks, pipeline, env.dispatcher, env.metrics)
	env.server = srv
	env.handler = NewRouter(srv, []string{"*"})
	return env
}

func (e *testEnv) get(path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestCTAHandler_UnknownNetwork(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/unknownnet/space/1/cta")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Chain not supported")
	assert.Equal(t, 1, env.metrics.Count("requests", "/space/cta", "GET", "400"))
}

func TestImageHandler_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path string
		body string
	}{
		{"/unknownnet/space/1/image/square/standard", "Chain not supported"},
		{"/polygon/space/1/image/hexagon/standard", "Make sure format is 'tall', 'wide', 'square'."},
		{"/polygon/space/1/image/square/neon", "Make sure style is 'standard', 'minimal', 'transparent'."},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.get(tt.path)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
	assert.False(t, env.requested("/graph/polygon"), "validation must happen before resolution")
}

func TestImageHandler_CampaignImage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/matic/space/1/image/WIDE/Standard")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, rec.Body.Bytes())
	assert.True(t, env.requested("/img.png"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestImageHandler_DefaultImage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/rinkeby/space/9/image/tall/minimal")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, env.requested("/ipns/lib.zesty.market/assets/zesty-banner-tall-minimal.png"))
}

func TestImageHandler_UnsupportedImage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/polygon/space/2/image/square/standard")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Image file is not supported")
}

func TestImageHandler_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/polygon/space/3/image/square/standard")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please inform the administrators")
}

func TestCTAHandler_Redirects(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path string
		want string
	}{
		{"/polygon/space/1/cta", "https://advertiser.example/landing?utm_source=ZestyMarket&utm_campaign=ZestyCampaign&utm_channel=SpaceId_1"},
		{"/polygon/space/2/cta", "https://advertiser.example?utm_source=ZestyMarket&utm_campaign=ZestyCampaign&utm_channel=SpaceId_2"},
		{"/rinkeby/space/5/cta", "https://app.zesty.market/space/5?chainId=4"},
		{"/polygon/space/77/cta", "https://app.zesty.market/space/77?chainId=137"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.get(tt.path)
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Location"))
		})
	}
}

func TestBannerHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/polygon/space/1/banner")
	require.Equal(t, http.StatusOK, rec.Code)
	var b models.Banner
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))
	assert.False(t, b.Default)
	assert.Equal(t, "c1", b.CampaignID)

	rec = env.get("/rinkeby/space/1/banner")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))
	assert.True(t, b.Default)
	assert.True(t, strings.HasSuffix(b.Descriptor.Image, "/zesty-banner-square.png"))

	rec = env.get("/rinkeby/space/1/banner?format=round")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventHandlers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/polygon/space/4/visit", "User-Agent", desktopUA)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	assert.Equal(t, pixelGIF, rec.Body.Bytes())

	rec = env.get("/matic/space/4/click", "User-Agent", googlebotUA)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.get("/nowhere/space/4/click")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []string{"visits:polygon:4"}, env.dispatcher.events)
	assert.Equal(t, 1, env.metrics.Count("space_event", "clicks", "bot"))
}

func TestEventHandlers_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.server.Limiter = ratelimit.NewSpaceLimiter(ratelimit.Config{Capacity: 1, RefillRate: 0, Enabled: true}, env.metrics)

	for i := 0; i < 3; i++ {
		rec := env.get("/polygon/space/5/visit", "User-Agent", desktopUA)
		assert.Equal(t, http.StatusOK, rec.Code, "throttled events still get the pixel")
	}
	rec := env.get("/polygon/space/6/click", "User-Agent", desktopUA)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"visits:polygon:5", "clicks:polygon:6"}, env.dispatcher.events)
	assert.Equal(t, 2, env.metrics.Count("rate_limit_hits", "polygon"))
	assert.Equal(t, 3, env.metrics.Count("space_event", "visits", "desktop"))
}

func TestHealthAndRoot(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = env.get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello World!", rec.Body.String())
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/health", "Origin", "https://game.example")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestDeviceType(t *testing.T) {
	assert.Equal(t, "bot", deviceType(googlebotUA))
	assert.Equal(t, "desktop", deviceType(desktopUA))
	assert.Equal(t, "mobile", deviceType("Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1"))
}
