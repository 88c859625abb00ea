package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickwarner/spaceforward/internal/config"
	"github.com/patrickwarner/spaceforward/internal/db"
	"github.com/patrickwarner/spaceforward/internal/models"
	"github.com/patrickwarner/spaceforward/internal/observability"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	server     string
	networkCSV string
	spaceCSV   string
	totalReq   int
	conc       int
	duration   time.Duration
	rate       float64
	clickRate  float64
	stats      bool
	flush      bool
	redisAddr  string
	debug      bool
	label      string
	jitter     float64
)

var logger *zap.Logger

// HTTP client with proper resource limits
var httpClient *http.Client

// HTTP client for CTA requests that doesn't follow redirects
var ctaClient *http.Client

var userAgents = []string{
	// Mobile
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 12; Pixel 6 Pro) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.5735.196 Mobile Safari/537.36",
	"Mozilla/5.0 (iPad; CPU OS 15_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.2 Mobile/15E148 Safari/604.1",

	// Desktop
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_3_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:111.0) Gecko/20100101 Firefox/111.0",
}

const statsInterval = 5 * time.Second

var (
	countSent    uint64
	countSuccess uint64
	countDefault uint64
	countErrors  uint64
	countClicks  uint64
)

func main() {
	flag.StringVar(&server, "server", "http://localhost:3000", "forwarding service base URL")
	flag.StringVar(&networkCSV, "networks", "polygon", "comma-separated networks")
	flag.StringVar(&spaceCSV, "spaces", "1,2,3", "comma-separated space ids")
	flag.IntVar(&totalReq, "requests", 1000, "total visits to simulate")
	flag.IntVar(&conc, "concurrency", 20, "concurrent visits")
	flag.DurationVar(&duration, "duration", 0, "how long to run traffic (0 to disable)")
	flag.Float64Var(&rate, "rate", 0, "visits per second (0 for unlimited)")
	flag.Float64Var(&clickRate, "click-rate", 0.05, "probability of a click per visit")
	flag.BoolVar(&stats, "stats", false, "print aggregated stats periodically")
	flag.BoolVar(&flush, "flush", false, "delete space counters from redis before sending traffic")
	flag.StringVar(&redisAddr, "redis", "", "redis address (defaults to BEACON_REDIS_ADDR)")
	flag.BoolVar(&debug, "debug", false, "enable verbose debug logs")
	flag.StringVar(&label, "label", "", "label to identify this run")
	flag.Float64Var(&jitter, "jitter", 0.0, "random jitter factor for request spacing")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	var err error
	logger, err = observability.InitLoggerWithLevel(level, "traffic-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50, // Limit connections per host
		IdleConnTimeout:       90 * time.Second,
	}
	httpClient = &http.Client{Timeout: 30 * time.Second, Transport: transport}
	ctaClient = &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	if label == "" {
		label = time.Now().Format(time.RFC3339)
	}

	if flush {
		flushCounters()
	}

	networks := splitCSV(networkCSV)
	spaces := splitCSV(spaceCSV)
	if len(networks) == 0 || len(spaces) == 0 {
		logger.Fatal("at least one network and one space are required")
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, conc)
	done := make(chan struct{})

	var baseInterval time.Duration
	if rate > 0 {
		baseInterval = time.Duration(float64(time.Second) / rate)
	} else if duration > 0 && totalReq > 0 {
		baseInterval = duration / time.Duration(totalReq)
	}

	start := time.Now()
	next := start

	if stats {
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					printStats()
				case <-done:
					printStats()
					return
				}
			}
		}()
	}
	for i := 0; ; i++ {
		if totalReq > 0 && i >= totalReq {
			break
		}
		if duration > 0 && time.Since(start) >= duration {
			break
		}
		if baseInterval > 0 {
			effective := baseInterval
			if jitter > 0 {
				jf := 1 + (rand.Float64()*2-1)*jitter
				if jf < 0.1 {
					jf = 0.1
				}
				effective = time.Duration(float64(effective) * jf)
			}
			now := time.Now()
			if now.Before(next) {
				time.Sleep(next.Sub(now))
			}
			next = next.Add(effective)
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			atomic.AddUint64(&countSent, 1)

			base := fmt.Sprintf("%s/%s/space/%s",
				strings.TrimRight(server, "/"),
				networks[rand.Intn(len(networks))],
				spaces[rand.Intn(len(spaces))])
			format := models.Formats[rand.Intn(len(models.Formats))]
			style := models.Styles[rand.Intn(len(models.Styles))]
			ua := userAgents[rand.Intn(len(userAgents))]

			if _, err := get(httpClient, base+"/visit", ua); err != nil {
				atomic.AddUint64(&countErrors, 1)
				logger.Error("visit error", zap.Error(err))
				return
			}
			imageURL := fmt.Sprintf("%s/image/%s/%s", base, format, style)
			if _, err := get(httpClient, imageURL, ua); err != nil {
				atomic.AddUint64(&countErrors, 1)
				logger.Error("image error", zap.Error(err), zap.String("url", imageURL))
				return
			}

			if rand.Float64() < clickRate {
				if _, err := get(httpClient, base+"/click", ua); err != nil {
					atomic.AddUint64(&countErrors, 1)
					logger.Error("click error", zap.Error(err))
					return
				}
				location, err := get(ctaClient, base+"/cta", ua)
				if err != nil {
					atomic.AddUint64(&countErrors, 1)
					logger.Error("cta error", zap.Error(err))
					return
				}
				if strings.Contains(location, "/space/") {
					atomic.AddUint64(&countDefault, 1)
				}
				atomic.AddUint64(&countClicks, 1)
				logger.Debug("cta", zap.String("location", location))
			}
			atomic.AddUint64(&countSuccess, 1)
		}()
	}
	wg.Wait()
	close(done)
	if !stats {
		printStats()
	}
}

// get issues a GET and returns the Location header. Any status of 400 or above is an error.
func get(client *http.Client, url, ua string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", ua)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.Header.Get("Location"), nil
}

func flushCounters() {
	cfg := config.Load()
	addr := redisAddr
	if addr == "" {
		addr = cfg.BeaconRedisAddr
	}
	if addr == "" {
		logger.Fatal("flush requested but no redis address configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := db.InitRedis(ctx, addr)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}
	defer store.Close()

	keys, err := store.Client.Keys(ctx, "space:*").Result()
	if err != nil {
		logger.Fatal("failed to list space counters", zap.Error(err))
	}
	if len(keys) > 0 {
		if err := store.Client.Del(ctx, keys...).Err(); err != nil {
			logger.Fatal("failed to delete space counters", zap.Error(err))
		}
	}
	logger.Info("space counters flushed", zap.String("addr", addr), zap.Int("keys_deleted", len(keys)))
}

func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func printStats() {
	sent := atomic.LoadUint64(&countSent)
	succ := atomic.LoadUint64(&countSuccess)
	def := atomic.LoadUint64(&countDefault)
	errs := atomic.LoadUint64(&countErrors)
	clk := atomic.LoadUint64(&countClicks)
	var ctr float64
	if succ > 0 {
		ctr = float64(clk) / float64(succ)
	}
	logger.Info("stats", zap.String("run", label), zap.Uint64("sent", sent), zap.Uint64("success", succ), zap.Uint64("default_landings", def), zap.Uint64("errors", errs), zap.Uint64("clicks", clk), zap.Float64("ctr", ctr))
}
