package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/spaceforward/internal/middleware"
	"github.com/patrickwarner/spaceforward/internal/models"
	"github.com/patrickwarner/spaceforward/internal/observability"
)

// ImageHandler handles GET /{network}/space/{id}/image/{format}/{style} and
// streams the active banner image with a content type detected from its bytes.
func (s *Server) ImageHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ctx, span := tracer.Start(r.Context(), "ImageHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/{network}/space/{id}/image/{format}/{style}"),
			attribute.String("space.id", vars["id"]),
			attribute.String("network", vars["network"]),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "/space/image"
	const method = "GET"

	var format models.Format
	var style models.Style
	network, err := s.Networks.Lookup(vars["network"])
	if err == nil {
		format, err = models.ParseFormat(vars["format"])
	}
	if err == nil {
		style, err = models.ParseStyle(vars["style"])
	}
	if err != nil {
		status, msg := statusFor(err)
		logger.Debug("rejected image request", zap.Error(err))
		s.observe(endpoint, method, status, start)
		http.Error(w, msg, status)
		return
	}
	span.SetAttributes(attribute.String("banner.format", string(format)), attribute.String("banner.style", string(style)))

	img, b, err := s.Pipeline.Image(ctx, network, vars["id"], format, style)
	if err != nil {
		status, msg := statusFor(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "image delivery failed")
		logger.Error("image delivery failed",
			zap.Error(err),
			zap.String("space_id", vars["id"]),
			zap.String("network", network.Name),
			zap.String("image", b.Descriptor.Image))
		s.observe(endpoint, method, status, start)
		http.Error(w, msg, status)
		return
	}

	if observability.ShouldSample(observability.GetSamplingRate()) {
		logger.Info("image served",
			zap.String("space_id", vars["id"]),
			zap.String("network", network.Name),
			zap.String("campaign_id", b.CampaignID),
			zap.Bool("default", b.Default),
			zap.String("content_type", img.ContentType))
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Body)
	s.observe(endpoint, method, http.StatusOK, start)
}

// CTAHandler handles GET /{network}/space/{id}/cta and redirects to the active
// campaign's click URL or to the platform's space page.
func (s *Server) CTAHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ctx, span := tracer.Start(r.Context(), "CTAHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/{network}/space/{id}/cta"),
			attribute.String("space.id", vars["id"]),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "/space/cta"
	const method = "GET"

	network, err := s.Networks.Lookup(vars["network"])
	if err != nil {
		status, msg := statusFor(err)
		logger.Debug("rejected cta request", zap.Error(err))
		s.observe(endpoint, method, status, start)
		http.Error(w, msg, status)
		return
	}

	target := s.Pipeline.ClickURL(ctx, network, vars["id"])
	span.SetAttributes(attribute.String("cta.url", target))
	logger.Debug("redirecting to landing url",
		zap.String("space_id", vars["id"]),
		zap.String("url", target))

	s.observe(endpoint, method, http.StatusFound, start)
	http.Redirect(w, r, target, http.StatusFound)
}

// BannerHandler handles GET /{network}/space/{id}/banner?format=&style= and returns
// the resolved banner descriptor as JSON. Absent format and style select the
// global default banner.
func (s *Server) BannerHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ctx, span := tracer.Start(r.Context(), "BannerHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/{network}/space/{id}/banner"),
			attribute.String("space.id", vars["id"]),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "/space/banner"
	const method = "GET"

	q := r.URL.Query()
	var format models.Format
	var style models.Style
	network, err := s.Networks.Lookup(vars["network"])
	if err == nil && q.Get("format") != "" {
		format, err = models.ParseFormat(q.Get("format"))
	}
	if err == nil && q.Get("style") != "" {
		style, err = models.ParseStyle(q.Get("style"))
	}
	if err != nil {
		status, msg := statusFor(err)
		logger.Debug("rejected banner request", zap.Error(err))
		s.observe(endpoint, method, status, start)
		http.Error(w, msg, status)
		return
	}

	b := s.Pipeline.Banner(ctx, network, vars["id"], format, style)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(b); err != nil {
		logger.Error("encode banner", zap.Error(err))
	}
	s.observe(endpoint, method, http.StatusOK, start)
}
