package http

import (
	"AskArchive/backend/go/internal/config"
	"AskArchive/backend/go/pkg/circuitbreaker"
	"AskArchive/backend/go/pkg/httpmiddleware"
	"AskArchive/backend/go/pkg/logger"
	"AskArchive/backend/go/pkg/ratelimiter"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// maxLimiterKeys bounds the number of client addresses tracked by the rate limiter.
const maxLimiterKeys = 10000

// Middleware defines a function to wrap an http.Handler.
type Middleware func(http.Handler) http.Handler

// Server is a custom HTTP server that wraps the standard http.Server
// and provides built-in support for middleware.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// ServerOption defines a function for configuring a Server.
type ServerOption func(*Server)

// WithAddress sets the address for the server to listen on.
func WithAddress(addr string) ServerOption {
	return func(s *Server) {
		s.httpServer.Addr = addr
	}
}

// WithTimeouts sets read and write timeouts. Zero values are ignored.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) {
		if read > 0 {
			s.httpServer.ReadTimeout = read
		}
		if write > 0 {
			s.httpServer.WriteTimeout = write
		}
	}
}

// WithLogger sets the logger used for lifecycle and breaker events.
func WithLogger(log *logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// NewServer wraps handler with the middleware enabled in cfg: a per-client rate
// limiter and a circuit breaker that opens on repeated 5xx responses.
func NewServer(cfg *config.AppConfig, handler http.Handler, opts ...ServerOption) (*Server, error) {
	srv := &Server{
		httpServer: &http.Server{ReadHeaderTimeout: 10 * time.Second},
		log:        logger.New("http", "", ""),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.httpServer.Addr == "" {
		srv.httpServer.Addr = ":8080"
	}

	var middlewares []Middleware

	if cfg.Middleware.RateLimiter.Enabled {
		factory, err := ratelimiter.FactoryFromConfig(cfg.Middleware.RateLimiter)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		keyed, err := ratelimiter.NewKeyed(factory, maxLimiterKeys)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		srv.log.Info(fmt.Sprintf("Enabling Rate Limiter middleware with algorithm: %s", cfg.Middleware.RateLimiter.Algorithm))
		middlewares = append(middlewares, httpmiddleware.KeyedRateLimit(keyed, httpmiddleware.ClientIP))
	}

	if cfg.Middleware.CircuitBreaker.Enabled {
		breaker, err := NewCircuitBreaker(cfg.Middleware.CircuitBreaker, srv.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
		}
		srv.log.Info("Enabling Circuit Breaker middleware.")
		middlewares = append(middlewares, httpmiddleware.CircuitBreak(breaker))
	}

	// Apply all middlewares in reverse order
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	srv.httpServer.Handler = handler

	return srv, nil
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe starts the HTTP server. It returns nil after a graceful Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info(fmt.Sprintf("Starting server on %s", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// NewCircuitBreaker initializes a circuit breaker from cfg and logs its transitions.
func NewCircuitBreaker(cfg config.CircuitBreakerConfig, log *logger.Logger) (circuitbreaker.CircuitBreaker, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker timeout duration: %w", err)
	}
	return circuitbreaker.New(cfg.FailureThreshold, cfg.SuccessThreshold, timeout,
		circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
			log.WithField("from", from.String()).WithField("to", to.String()).Warn("circuit breaker state changed")
		}),
	), nil
}
