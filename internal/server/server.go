// Package server exposes conversions over HTTP.
//
// Routes:
//   - POST /convert converts a multipart upload (field "file") or the
//     document at ?url= and responds with the archive as a download.
//     ?format= selects the archive format.
//   - GET /healthz reports liveness
//   - GET /metrics serves Prometheus metrics when enabled
package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-convert/internal/pipeline"
	"github.com/ajitpratap0/nebula-convert/pkg/archive"
	"github.com/ajitpratap0/nebula-convert/pkg/config"
	"github.com/ajitpratap0/nebula-convert/pkg/errors"
	"github.com/ajitpratap0/nebula-convert/pkg/input"
	"github.com/ajitpratap0/nebula-convert/pkg/metrics"
	"github.com/ajitpratap0/nebula-convert/pkg/observability"
	"github.com/ajitpratap0/nebula-convert/pkg/sink"
)

const (
	// RequestIDHeader carries the request ID in both directions
	RequestIDHeader = "X-Request-ID"
	// WarningHeader reports a partial conversion
	WarningHeader = "X-Conversion-Warning"

	uploadField = "file"
)

// Server serves conversions
type Server struct {
	config   *config.Config
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

// New creates a server running conversions through p
func New(cfg *config.Config, p *pipeline.Pipeline, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		config:   cfg,
		pipeline: p,
		logger:   logger.With(zap.String("component", "server")),
	}
}

// Handler returns the routed handler with tracing, request IDs, access
// logs and request metrics applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /convert", s.instrument("/convert", http.HandlerFunc(s.handleConvert)))
	mux.Handle("GET /healthz", s.instrument("/healthz", http.HandlerFunc(s.handleHealth)))
	if s.config.Observability.EnableMetrics {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	serviceName := s.config.Observability.Tracing.ServiceName
	return observability.TracingMiddleware(serviceName)(mux)
}

// ListenAndServe serves on the configured address until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to listen").
			WithDetail("addr", s.config.Server.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
// within server.shutdown_timeout
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.config.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to shut down server")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get(RequestIDHeader)
	log := s.logger.With(zap.String("request_id", requestID))

	req, err := s.request(w, r)
	if err != nil {
		s.fail(w, requestID, err)
		return
	}
	req.ID = requestID

	report, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		log.Warn("conversion failed", zap.Error(err))
		s.fail(w, requestID, err)
		return
	}
	if report.Warning != nil {
		w.Header().Set(WarningHeader, report.Warning.Error())
	}

	d := &sink.HTTPDeliverer{W: w}
	_, err = d.Deliver(r.Context(), sink.Artifact{
		Name:        report.ArchiveName,
		ContentType: report.ContentType,
		Data:        report.Archive,
	})
	metrics.DeliveriesTotal.WithLabelValues("http", metrics.Status(err)).Inc()
	if err != nil {
		log.Warn("failed to stream archive", zap.Error(err))
	}
}

// request builds a pipeline request from ?url= or the multipart upload
func (s *Server) request(w http.ResponseWriter, r *http.Request) (pipeline.Request, error) {
	var req pipeline.Request

	if f := r.URL.Query().Get("format"); f != "" {
		format, err := archive.ParseFormat(f)
		if err != nil {
			return req, err
		}
		req.Format = format
	}

	if location := r.URL.Query().Get("url"); location != "" {
		if !input.IsURL(location) {
			return req, errors.New(errors.ErrorTypeValidation, "url must be an absolute http or https URL")
		}
		req.Location = location
		return req, nil
	}

	limit := s.config.Server.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		return req, errors.Wrap(err, errors.ErrorTypeValidation, "invalid upload")
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return req, errors.Wrap(err, errors.ErrorTypeValidation, "missing upload field "+uploadField)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return req, errors.Wrap(err, errors.ErrorTypeValidation, "failed to read upload")
	}
	req.Input = input.New(header.Filename, data)
	return req, nil
}

// StatusFor maps a conversion error to an HTTP status
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.HasType(err, errors.ErrorTypeEncoding):
		return http.StatusUnprocessableEntity
	case errors.HasType(err, errors.ErrorTypeValidation):
		return http.StatusBadRequest
	case errors.HasType(err, errors.ErrorTypeConnection):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error     string `json:"error"`
	Type      string `json:"type,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) fail(w http.ResponseWriter, requestID string, err error) {
	body := errorBody{Error: err.Error(), RequestID: requestID}
	var e *errors.Error
	if errors.As(err, &e) {
		body.Type = string(e.Type)
	}
	writeJSON(w, StatusFor(err), body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := gojson.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)+1))
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

// statusRecorder remembers the status code written through it
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// instrument assigns a request ID and records an access log line and the
// request counter for route
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
