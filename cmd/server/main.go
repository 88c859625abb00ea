package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/spaceforward/internal/api"
	"github.com/patrickwarner/spaceforward/internal/beacon"
	"github.com/patrickwarner/spaceforward/internal/config"
	"github.com/patrickwarner/spaceforward/internal/db"
	"github.com/patrickwarner/spaceforward/internal/delivery"
	"github.com/patrickwarner/spaceforward/internal/observability"
	"github.com/patrickwarner/spaceforward/internal/ratelimit"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdownTracing, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, observability.Environment(), cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdownTracing()
	}

	// Initialize metrics registry
	metricsRegistry := observability.NewPrometheusRegistry()

	client := delivery.NewHTTPClient(cfg.UpstreamTimeout)
	pipeline, err := delivery.New(cfg, client, logger, metricsRegistry)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	var dispatcher api.BeaconDispatcher
	if cfg.BeaconEnabled {
		sinks, closeSinks, err := beaconSinks(ctx, cfg, client, logger)
		if err != nil {
			return err
		}
		defer closeSinks()

		d := beacon.NewDispatcher(sinks, cfg.BeaconWorkers, cfg.BeaconQueueSize, cfg.UpstreamTimeout, logger, metricsRegistry)
		// drain queued events after the listener has stopped
		defer d.Close()
		dispatcher = d
		logger.Info("Beacon enabled", zap.Strings("sinks", d.Sinks()))
	}

	networks := cfg.Networks()
	srvDeps := api.NewServer(logger, networks, pipeline, dispatcher, metricsRegistry)
	if cfg.RateLimitEnabled {
		limiter := ratelimit.NewSpaceLimiter(ratelimit.Config{
			Capacity:   cfg.RateLimitCapacity,
			RefillRate: cfg.RateLimitRefillRate,
			Enabled:    true,
		}, metricsRegistry)
		go limiter.Run(time.Minute, ctx.Done())
		srvDeps.Limiter = limiter
	}
	handler := otelhttp.NewHandler(api.NewRouter(srvDeps, cfg.CORSAllowedOrigins), cfg.ServiceName)

	addr := ":" + cfg.Port

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Forwarding service running",
		zap.String("addr", addr),
		zap.Strings("networks", networks.Names()))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}

// beaconSinks builds the configured sinks. The returned func releases their resources.
func beaconSinks(ctx context.Context, cfg config.Config, client *http.Client, logger *zap.Logger) ([]beacon.Sink, func(), error) {
	var sinks []beacon.Sink
	closeFn := func() {}

	if cfg.BeaconGraphQLURL != "" {
		sinks = append(sinks, &beacon.GraphQLSink{URL: cfg.BeaconGraphQLURL, Client: client})
	}
	if cfg.BeaconAPIURL != "" {
		sinks = append(sinks, &beacon.RESTSink{BaseURL: cfg.BeaconAPIURL, Client: client})
	}
	if cfg.BeaconRedisAddr != "" {
		store, err := db.InitRedis(ctx, cfg.BeaconRedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		sinks = append(sinks, &beacon.RedisSink{Store: store})
		closeFn = store.Close
	}
	if len(sinks) == 0 {
		logger.Warn("beacon enabled but no sinks configured")
	}
	return sinks, closeFn, nil
}
