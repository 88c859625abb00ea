package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/patrickwarner/spaceforward/internal/beacon"
	"github.com/patrickwarner/spaceforward/internal/delivery"
	"github.com/patrickwarner/spaceforward/internal/middleware"
	"github.com/patrickwarner/spaceforward/internal/models"
	"github.com/patrickwarner/spaceforward/internal/observability"
)

var tracer = otel.Tracer("spaceforward")

// Plain-text bodies returned to clients.
const (
	msgChainNotSupported  = "Chain not supported"
	msgFormatNotSupported = "Format not supported. Make sure format is 'tall', 'wide', 'square'."
	msgStyleNotSupported  = "Style not supported. Make sure style is 'standard', 'minimal', 'transparent'."
	msgImageNotSupported  = "Image file is not supported. Make sure image is either a jpeg, png, or gif"
	msgInternalError      = "An error has occurred. Please inform the administrators at https://zesty.market"
)

// BeaconDispatcher queues visit and click events without waiting for delivery.
type BeaconDispatcher interface {
	Dispatch(event beacon.Event, network models.Network, space string) bool
}

// EventLimiter throttles beacon events per space.
type EventLimiter interface {
	Allow(network, space string) bool
}

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger   *zap.Logger
	Networks models.NetworkTable
	Pipeline *delivery.Pipeline
	// Beacon may be nil, in which case visits and clicks are only counted locally.
	Beacon  BeaconDispatcher
	// Limiter may be nil, in which case every event is forwarded.
	Limiter EventLimiter
	Metrics observability.MetricsRegistry
}

// NewServer constructs a Server.
func NewServer(logger *zap.Logger, networks models.NetworkTable, pipeline *delivery.Pipeline, dispatcher BeaconDispatcher, metrics observability.MetricsRegistry) *Server {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Server{
		Logger:   logger,
		Networks: networks,
		Pipeline: pipeline,
		Beacon:   dispatcher,
		Metrics:  metrics,
	}
}

// NewRouter registers every route on a gorilla/mux router wrapped in CORS handling.
func NewRouter(s *Server, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(s.Logger))

	r.HandleFunc("/", s.RootHandler).Methods("GET")
	r.HandleFunc("/health", s.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	space := r.PathPrefix("/{network}/space/{id}").Subrouter()
	space.HandleFunc("/image/{format}/{style}", s.ImageHandler).Methods("GET")
	space.HandleFunc("/cta", s.CTAHandler).Methods("GET")
	space.HandleFunc("/banner", s.BannerHandler).Methods("GET")
	space.HandleFunc("/visit", s.VisitHandler).Methods("GET")
	space.HandleFunc("/click", s.ClickHandler).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	})
	return c.Handler(r)
}

// statusFor maps pipeline and validation errors to a status code and client body.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrUnsupportedNetwork):
		return http.StatusBadRequest, msgChainNotSupported
	case errors.Is(err, models.ErrUnsupportedFormat):
		return http.StatusBadRequest, msgFormatNotSupported
	case errors.Is(err, models.ErrUnsupportedStyle):
		return http.StatusBadRequest, msgStyleNotSupported
	case errors.Is(err, models.ErrUnsupportedImageFormat):
		return http.StatusBadRequest, msgImageNotSupported
	default:
		return http.StatusInternalServerError, msgInternalError
	}
}

// observe records the request count and latency for a finished request.
func (s *Server) observe(endpoint, method string, status int, start time.Time) {
	s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
