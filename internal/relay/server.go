// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeranaias/whytree/internal/completion"
	"github.com/jeranaias/whytree/internal/ratelimit"
	"github.com/jeranaias/whytree/internal/storage"
)

// Version is reported by /health.
var Version = "dev"

// ============================================================================
// CONFIGURATION
// ============================================================================

// Defaults.
const (
	DefaultAddr           = ":6823"
	DefaultModel          = "gpt-3.5-turbo"
	DefaultMaxTokens      = 100
	DefaultMaxPromptBytes = 16 * 1024
	DefaultRequestTimeout = 10 * time.Second
	DefaultStreamTimeout  = 2 * time.Minute
	DefaultTokenTTL       = 24 * time.Hour
)

// In-band error codes.
const (
	codeBadRequest    = "bad_request"
	codeInvalidTemp   = "invalid_temperature"
	codeUnknownModel  = "unknown_model"
	codeInvalidToken  = "invalid_session"
	codeQuota         = completion.RelayCodeQuota
	codeRateLimited   = "rate_limited"
	codeProvider      = "provider_error"
	codeNotFound      = "not_found"
	codeNotConfigured = "not_configured"
	codeInternal      = "internal_error"
)

// Config configures a Server.
type Config struct {
	// Addr is the listen address (default ":6823").
	Addr string

	// DefaultModel is used when a client names no model.
	DefaultModel string

	// AllowedModels are the provider model ids clients may request.
	// Empty allows only DefaultModel.
	AllowedModels []string

	// DailyQuota is the number of trees per fingerprint and model per day.
	DailyQuota int

	// MaxTokens caps each upstream completion (default 100).
	MaxTokens int

	// MaxPromptBytes rejects larger prompts (default 16KB).
	MaxPromptBytes int

	// RequestTimeout bounds the wait for the first socket message.
	RequestTimeout time.Duration

	// StreamTimeout bounds one relayed completion.
	StreamTimeout time.Duration

	// TokenTTL is how long a session token stays valid after it is issued
	// (default 24h).
	TokenTTL time.Duration

	// AllowedOrigins for browser clients. Empty allows any origin.
	AllowedOrigins []string

	// Now is the clock for quota windows and token expiry. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.DefaultModel == "" {
		c.DefaultModel = DefaultModel
	}
	if len(c.AllowedModels) == 0 {
		c.AllowedModels = []string{c.DefaultModel}
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MaxPromptBytes <= 0 {
		c.MaxPromptBytes = DefaultMaxPromptBytes
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.StreamTimeout <= 0 {
		c.StreamTimeout = DefaultStreamTimeout
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// ============================================================================
// SERVER
// ============================================================================

// Server relays completions from a Provider to WebSocket clients.
type Server struct {
	cfg      Config
	provider Provider
	limiter  *ratelimit.Limiter
	tokens   *tokenStore
	examples storage.Store
	metrics  *metrics
	logger   *slog.Logger

	router   *http.ServeMux
	upgrader websocket.Upgrader
	handler  http.Handler

	mu     sync.Mutex
	server *http.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithExamples serves saved trees from store on /api/examples.
func WithExamples(store storage.Store) Option {
	return func(s *Server) { s.examples = store }
}

// WithIPRateLimit limits every endpoint to perSecond requests per client IP.
func WithIPRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		s.handler = RateLimitMiddleware(NewIPRateLimiter(perSecond, burst))(s.handler)
	}
}

// New creates a relay server. provider may be nil, in which case every
// stream fails with not_configured.
func New(cfg Config, provider Provider, opts ...Option) *Server {
	cfg = cfg.withDefaults()

	s := &Server{
		cfg:      cfg,
		provider: provider,
		limiter:  ratelimit.New(ratelimit.Config{DailyQuota: cfg.DailyQuota, Now: cfg.Now}),
		tokens:   newTokenStore(cfg.TokenTTL, cfg.Now),
		metrics:  newMetrics(),
		logger:   cfg.Logger,
		router:   http.NewServeMux(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.setupRoutes()

	s.handler = s.router
	for _, opt := range opts {
		opt(s)
	}
	s.handler = Chain(
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)(s.handler)
	return s
}

// Handler returns the full handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Limiter returns the quota limiter.
func (s *Server) Limiter() *ratelimit.Limiter {
	return s.limiter
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 || slices.Contains(s.cfg.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, origin)
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /ws", s.handleWebSocket)

	s.router.HandleFunc("GET /api/remaining", s.handleRemaining)
	s.router.HandleFunc("GET /api/prompts-remaining", s.handleRemaining)
	s.router.HandleFunc("POST /api/use-prompt", s.handleUsePrompt)

	s.router.HandleFunc("GET /api/examples", s.handleExamples)
	s.router.HandleFunc("GET /api/examples/{id}", s.handleExample)

	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
}

// ============================================================================
// QUOTA HANDLERS
// ============================================================================

// QuotaResponse is returned by /api/remaining.
type QuotaResponse struct {
	Remaining int       `json:"remaining"`
	Quota     int       `json:"quota"`
	ResetAt   time.Time `json:"reset_at"`
}

// TicketResponse is returned by /api/use-prompt.
type TicketResponse struct {
	SessionToken string    `json:"session_token"`
	Remaining    int       `json:"remaining"`
	ExpiresAt    time.Time `json:"expires_at"`
	Model        string    `json:"model"`
}

type errorBody = completion.RelayError

// fingerprint reads "fp" or "fingerprint", falling back to the client IP.
func fingerprint(r *http.Request) string {
	q := r.URL.Query()
	if fp := q.Get("fp"); fp != "" {
		return fp
	}
	if fp := q.Get("fingerprint"); fp != "" {
		return fp
	}
	return GetClientIP(r)
}

// resolveModel maps a requested model to an allowed provider id.
func (s *Server) resolveModel(requested string) (string, bool) {
	if requested == "" {
		return s.cfg.DefaultModel, true
	}
	model := completion.ResolveModel(requested)
	return model, slices.Contains(s.cfg.AllowedModels, model)
}

func (s *Server) handleRemaining(w http.ResponseWriter, r *http.Request) {
	model, ok := s.resolveModel(r.URL.Query().Get("model"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "model not available", Code: codeUnknownModel})
		return
	}
	writeJSON(w, http.StatusOK, QuotaResponse{
		Remaining: s.limiter.Remaining(fingerprint(r), model),
		Quota:     s.limiter.Quota(),
		ResetAt:   s.limiter.ResetAt(),
	})
}

func (s *Server) handleUsePrompt(w http.ResponseWriter, r *http.Request) {
	model, ok := s.resolveModel(r.URL.Query().Get("model"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "model not available", Code: codeUnknownModel})
		return
	}
	fp := fingerprint(r)

	if err := s.limiter.Consume(fp, model); err != nil {
		s.metrics.prompts.WithLabelValues(resultRejected).Inc()
		switch {
		case errors.Is(err, ratelimit.ErrQuotaExceeded):
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "daily prompt quota used up", Code: codeQuota})
		case errors.Is(err, ratelimit.ErrTooManyRequests):
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests", Code: codeRateLimited})
		default:
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: codeBadRequest})
		}
		return
	}
	s.metrics.prompts.WithLabelValues(resultOK).Inc()

	token, expires := s.tokens.issue(fp, model)
	s.logger.Info("prompt redeemed", "fingerprint", fp, "model", model)

	writeJSON(w, http.StatusOK, TicketResponse{
		SessionToken: token,
		Remaining:    s.limiter.Remaining(fp, model),
		ExpiresAt:    expires,
		Model:        model,
	})
}

// ============================================================================
// EXAMPLE HANDLERS
// ============================================================================

// ExampleSummary lists one saved example tree.
type ExampleSummary struct {
	ID        string    `json:"id"`
	SeedQuery string    `json:"seed_query"`
	CreatedAt time.Time `json:"created_at"`
	Nodes     int       `json:"nodes"`
}

func (s *Server) handleExamples(w http.ResponseWriter, r *http.Request) {
	summaries := []ExampleSummary{}
	if s.examples != nil {
		trees, err := s.examples.LoadHistory(r.Context())
		if err != nil {
			s.logger.Error("failed to list examples", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "examples unavailable", Code: codeInternal})
			return
		}
		for _, t := range trees {
			summaries = append(summaries, ExampleSummary{
				ID:        t.ID,
				SeedQuery: t.SeedQuery,
				CreatedAt: t.CreatedAt,
				Nodes:     t.NodeCount(),
			})
		}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleExample(w http.ResponseWriter, r *http.Request) {
	if s.examples == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no examples", Code: codeNotFound})
		return
	}
	saved, err := s.examples.Load(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidID):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "example not found", Code: codeNotFound})
	case err != nil:
		s.logger.Error("failed to load example", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "examples unavailable", Code: codeInternal})
	default:
		writeJSON(w, http.StatusOK, saved)
	}
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	ProviderStatus string `json:"provider_status"`
	DefaultModel   string `json:"default_model"`
	ActiveTokens   int    `json:"active_tokens"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:         "ok",
		Version:        Version,
		ProviderStatus: "configured",
		DefaultModel:   s.cfg.DefaultModel,
		ActiveTokens:   s.tokens.len(),
	}
	if s.provider == nil {
		health.Status = "degraded"
		health.ProviderStatus = "not_configured"
	}
	writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("relay listening", "addr", s.cfg.Addr, "version", Version, "model", s.cfg.DefaultModel)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("relay server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("relay shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
