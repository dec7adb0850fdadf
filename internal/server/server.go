// Package server exposes the split and convert operations over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"stemsplit/internal/adapters/ffmpeg"
	"stemsplit/internal/core/domain"
	"stemsplit/internal/core/ports"
	"stemsplit/internal/observability"
)

// Splitter runs one stem-separation job end to end.
type Splitter interface {
	Split(ctx context.Context, sourceURL string) (*domain.Bundle, error)
}

// Converter transcodes audio to a target format.
type Converter interface {
	Convert(ctx context.Context, input io.Reader, format string) ([]byte, error)
}

type Server struct {
	splitter  Splitter
	converter Converter
	fetcher   ports.Fetcher
	logger    *slog.Logger
}

func New(splitter Splitter, converter Converter, fetcher ports.Fetcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		splitter:  splitter,
		converter: converter,
		fetcher:   fetcher,
		logger:    logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/split", s.handleSplit)
	mux.HandleFunc("/v1/convert", s.handleConvert)
	return withTracing(withLogging(mux, s.logger))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type splitRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req splitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := s.splitter.Split(r.Context(), req.URL)
	if err != nil {
		s.logger.Error("split failed", "url", req.URL, "err", err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Content)
}

type convertRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		writeError(w, http.StatusBadRequest, "url must be an absolute URL")
		return
	}
	if !ffmpeg.Supported(req.Format) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported target format %q", req.Format))
		return
	}

	data, _, err := s.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		s.logger.Error("convert source fetch failed", "url", req.URL, "err", err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	out, err := s.converter.Convert(r.Context(), bytes.NewReader(data), req.Format)
	if err != nil {
		s.logger.Error("conversion failed", "format", req.Format, "err", err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", ffmpeg.ContentTypeFor(req.Format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "converted."+req.Format))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// statusForError maps the error taxonomy onto HTTP statuses: 400 for bad
// input, 504 for poll deadline, the proxied remote status for remote API
// failures, 502 for artifact fetches and remotely failed jobs, 500 for
// configuration and protocol violations.
func statusForError(err error) int {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest
	}
	var timeout *domain.TimeoutError
	if errors.As(err, &timeout) {
		return http.StatusGatewayTimeout
	}
	var remote *domain.RemoteAPIError
	if errors.As(err, &remote) {
		if remote.StatusCode > 0 {
			return remote.StatusCode
		}
		return http.StatusBadGateway
	}
	var fetch *domain.FetchError
	if errors.As(err, &fetch) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Info("request", "method", r.Method, "path", r.URL.Path, "status", sw.status)
	})
}

func withTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := observability.StartSpan(r.Context(), "http.request",
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
		)
		defer span.End()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		if traceID := span.SpanContext().TraceID().String(); traceID != "" {
			sw.Header().Set("X-Trace-ID", traceID)
		}
		next.ServeHTTP(sw, r.WithContext(ctx))
	})
}
