// Package api exposes the pipeline over HTTP: health, self-metrics, manual
// flushes, local queries and the host event bridge.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vjranagit/tickstats/pkg/host"
	"github.com/vjranagit/tickstats/pkg/types"
	"github.com/vjranagit/tickstats/pkg/writer"
)

const maxEventBody = 4 << 20

// Pipeline is the writer side the server reports on and flushes
type Pipeline interface {
	Flush(ctx context.Context) error
	Health() writer.Health
}

// Querier answers range queries; only the local sink provides one
type Querier interface {
	Query(ctx context.Context, req types.QueryRequest) (*types.QueryResult, error)
}

// EventSink accepts host events
type EventSink interface {
	Apply(env host.Envelope) error
}

// Config holds server configuration
type Config struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server implements the HTTP API server
type Server struct {
	cfg      Config
	pipeline Pipeline
	querier  Querier
	events   EventSink
	gatherer prometheus.Gatherer
	logger   logr.Logger
	server   *http.Server
}

// NewServer creates a new API server. querier and gatherer may be nil.
func NewServer(cfg Config, pipeline Pipeline, querier Querier, events EventSink, gatherer prometheus.Gatherer, logger logr.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		querier:  querier,
		events:   events,
		gatherer: gatherer,
		logger:   logger.WithName("api"),
	}
	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/flush", s.handleFlush)
	mux.HandleFunc("/api/v1/query", s.handleQuery)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.cfg.ListenAddr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server, waiting for in-flight requests until ctx is
// done. It is safe to call before or concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status    string     `json:"status"`
	Running   bool       `json:"running"`
	Buffered  int        `json:"buffered"`
	Submitted uint64     `json:"submitted"`
	Flushed   uint64     `json:"flushed"`
	Dropped   uint64     `json:"dropped"`
	LastFlush *time.Time `json:"last_flush,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.pipeline.Health()

	resp := healthResponse{
		Status:    "healthy",
		Running:   h.Running,
		Buffered:  h.Buffered,
		Submitted: h.Submitted,
		Flushed:   h.Flushed,
		Dropped:   h.Dropped,
	}
	if !h.LastFlush.IsZero() {
		resp.LastFlush = &h.LastFlush
	}
	if h.LastError != nil {
		resp.LastError = h.LastError.Error()
	}

	status := http.StatusOK
	if !h.Healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.pipeline.Flush(r.Context()); err != nil {
		s.logger.Error(err, "manual flush failed")
		http.Error(w, fmt.Sprintf("Flush failed: %v", err), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleQuery serves GET /api/v1/query?name=rs_skill&tag=skill:ATTACK&start=...&end=...
// Times are RFC 3339; the range defaults to the last hour.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.querier == nil {
		http.Error(w, "Queries require the local sink", http.StatusNotImplemented)
		return
	}

	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		http.Error(w, "Missing name parameter", http.StatusBadRequest)
		return
	}

	tags := make(map[string]string)
	for _, tag := range q["tag"] {
		key, value, ok := strings.Cut(tag, ":")
		if !ok || key == "" {
			http.Error(w, fmt.Sprintf("Invalid tag selector %q, expected key:value", tag), http.StatusBadRequest)
			return
		}
		tags[key] = value
	}

	now := time.Now()
	startTime, err := parseTime(q.Get("start"), now.Add(-time.Hour))
	if err != nil {
		http.Error(w, "Invalid start time", http.StatusBadRequest)
		return
	}
	endTime, err := parseTime(q.Get("end"), now)
	if err != nil {
		http.Error(w, "Invalid end time", http.StatusBadRequest)
		return
	}
	if endTime.Before(startTime) {
		http.Error(w, "End time is before start time", http.StatusBadRequest)
		return
	}

	result, err := s.querier.Query(r.Context(), types.QueryRequest{
		Name:      name,
		Tags:      tags,
		StartTime: startTime,
		EndTime:   endTime,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("Query failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func parseTime(v string, fallback time.Time) (time.Time, error) {
	if v == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, v)
}

// handleEvents accepts a single envelope or a JSON array of envelopes.
// Envelopes are applied in order; the first rejected one stops the request.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	var envelopes []host.Envelope
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &envelopes)
	} else {
		var env host.Envelope
		err = json.Unmarshal(body, &env)
		envelopes = []host.Envelope{env}
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	for i, env := range envelopes {
		if err := s.events.Apply(env); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"applied": i,
				"error":   err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"applied": len(envelopes)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
