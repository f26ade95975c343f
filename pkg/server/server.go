// Package server exposes the routing engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/zen-systems/tierroute/pkg/adapter"
	"github.com/zen-systems/tierroute/pkg/config"
	"github.com/zen-systems/tierroute/pkg/router"
	"github.com/zen-systems/tierroute/pkg/store"
)

const (
	defaultLogsLimit = 50
	maxLogsLimit     = 1000
	maxBodyBytes     = 1 << 20
)

// Router serves one prompt.
type Router interface {
	Route(ctx context.Context, prompt string, maxTokens int) (*router.Decision, error)
}

// KeyUpdater applies new provider credentials.
type KeyUpdater interface {
	UpdateCredentials(ctx context.Context, update config.Credentials) ([]string, error)
}

// Config holds the listener settings.
type Config struct {
	Listen    string
	RateLimit float64
	Burst     int
}

// Server is the HTTP front end.
type Server struct {
	cfg     Config
	router  Router
	reader  store.Reader
	keys    KeyUpdater
	logger  zerolog.Logger
	limiter *rate.Limiter
	mux     *http.ServeMux
	handler http.Handler
	started time.Time
}

// New creates a Server. keys may be nil, which disables /config/keys.
func New(cfg Config, r Router, reader store.Reader, keys KeyUpdater, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		router:  r,
		reader:  reader,
		keys:    keys,
		logger:  logger,
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RateLimit) + 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	s.mux.HandleFunc("POST /route", s.handleRoute)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("GET /logs", s.handleLogs)
	s.mux.HandleFunc("POST /config/keys", s.handleKeys)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = s.logRequests(s.cors(s.rateLimit(s.mux)))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Listen).Msg("tierroute listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

type routeRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type routeResponse struct {
	ID         string  `json:"id"`
	Model      string  `json:"model"`
	Difficulty string  `json:"difficulty"`
	Reasoning  string  `json:"reasoning"`
	Response   string  `json:"response"`
	Cost       float64 `json:"cost"`
	Tokens     int     `json:"tokens"`
	LatencyMs  float64 `json:"latency_ms"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.MaxTokens < 0 {
		writeJSONError(w, http.StatusBadRequest, "max_tokens must not be negative")
		return
	}

	d, err := s.router.Route(r.Context(), req.Prompt, req.MaxTokens)
	if err != nil {
		writeJSONError(w, routeStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, routeResponse{
		ID:         d.Record.ID,
		Model:      d.Record.Backend,
		Difficulty: string(d.Record.Tier),
		Reasoning:  d.Record.Rationale,
		Response:   d.Text,
		Cost:       d.Record.CostUSD,
		Tokens:     d.Record.TokensUsed,
		LatencyMs:  d.Record.LatencyMs,
	})
}

// routeStatus maps a routing failure to an HTTP status.
func routeStatus(err error) int {
	var genErr *adapter.GenerationError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, adapter.ErrBackendNotFound):
		return http.StatusInternalServerError
	case errors.As(err, &genErr):
		if adapter.IsTransient(err) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reader.Stats(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("stats query failed")
		writeJSONError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLogsLimit)
	}

	records, err := s.reader.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("logs query failed")
		writeJSONError(w, http.StatusInternalServerError, "logs unavailable")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type keysResponse struct {
	Status   string   `json:"status"`
	Backends []string `json:"backends"`
	Warning  string   `json:"warning,omitempty"`
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	if s.keys == nil {
		writeJSONError(w, http.StatusNotImplemented, "key updates are disabled")
		return
	}

	var update config.Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&update); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if update.IsZero() {
		writeJSONError(w, http.StatusBadRequest, "no keys provided")
		return
	}

	registered, err := s.keys.UpdateCredentials(r.Context(), update)
	resp := keysResponse{Status: "updated", Backends: registered}
	if err != nil {
		resp.Warning = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
