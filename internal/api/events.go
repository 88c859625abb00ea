package api

import (
	"net/http"
	"time"

	"github.com/avct/uasurfer"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/spaceforward/internal/beacon"
	"github.com/patrickwarner/spaceforward/internal/middleware"
	"github.com/patrickwarner/spaceforward/internal/observability"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// VisitHandler handles GET /{network}/space/{id}/visit beacon requests.
func (s *Server) VisitHandler(w http.ResponseWriter, r *http.Request) {
	s.handleEvent(w, r, beacon.EventVisit, "/space/visit")
}

// ClickHandler handles GET /{network}/space/{id}/click beacon requests.
func (s *Server) ClickHandler(w http.ResponseWriter, r *http.Request) {
	s.handleEvent(w, r, beacon.EventClick, "/space/click")
}

// handleEvent answers with a pixel straight away and hands the event to the
// beacon dispatcher. Bot traffic is counted but never forwarded.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request, event beacon.Event, endpoint string) {
	vars := mux.Vars(r)
	_, span := tracer.Start(r.Context(), "EventHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("event", string(event)),
			attribute.String("space.id", vars["id"]),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const method = "GET"

	network, err := s.Networks.Lookup(vars["network"])
	if err != nil {
		status, msg := statusFor(err)
		s.observe(endpoint, method, status, start)
		http.Error(w, msg, status)
		return
	}

	device := deviceType(r.UserAgent())
	s.Metrics.IncrementSpaceEvents(string(event), device)
	span.SetAttributes(attribute.String("device", device))

	switch {
	case device == "bot" || s.Beacon == nil:
	case s.Limiter != nil && !s.Limiter.Allow(network.Name, vars["id"]):
		span.SetAttributes(attribute.Bool("rate_limited", true))
		logger.Debug("space event rate limited",
			zap.String("event_type", string(event)),
			zap.String("space_id", vars["id"]))
	default:
		// a full queue is already logged and counted by the dispatcher
		_ = s.Beacon.Dispatch(event, network, vars["id"])
	}

	if observability.ShouldSample(observability.GetSamplingRate()) {
		logger.Info("space event",
			zap.String("event_type", string(event)),
			zap.String("space_id", vars["id"]),
			zap.String("network", network.Name),
			zap.String("device", device))
	}

	s.observe(endpoint, method, http.StatusOK, start)
	s.sendPixelResponse(w)
}

// deviceType classifies a User-Agent into a coarse device label.
func deviceType(ua string) string {
	u := uasurfer.Parse(ua)
	if u.IsBot() {
		return "bot"
	}
	switch u.DeviceType {
	case uasurfer.DeviceComputer:
		return "desktop"
	case uasurfer.DevicePhone:
		return "mobile"
	case uasurfer.DeviceTablet:
		return "tablet"
	default:
		return "other"
	}
}

// sendPixelResponse sends a 1x1 tracking pixel response
func (s *Server) sendPixelResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pixelGIF)
}
