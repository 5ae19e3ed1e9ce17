package httpmiddleware

import (
	"AskArchive/backend/go/pkg/circuitbreaker"
	"AskArchive/backend/go/pkg/ratelimiter"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// KeyedRateLimit applies a separate rate limit to every key returned by keyFn.
func KeyedRateLimit(limiter *ratelimiter.Keyed, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(keyFn(r)) {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For address, or the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// responseWriter is a wrapper for http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// CircuitBreak is a middleware that applies the circuit breaker pattern to an HTTP handler.
// It considers HTTP status codes >= 500 as failures.
func CircuitBreak(breaker circuitbreaker.CircuitBreaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Wrap the response writer to capture the status code
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			_, err := breaker.Execute(func() (interface{}, error) {
				next.ServeHTTP(rw, r)

				if rw.statusCode >= http.StatusInternalServerError {
					return nil, fmt.Errorf("server error: status code %d", rw.statusCode)
				}
				return nil, nil
			})

			if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
				http.Error(w, "Service Unavailable: Circuit Breaker is open", http.StatusServiceUnavailable)
			}
			// Any other error was already written to the response by next.
		})
	}
}
