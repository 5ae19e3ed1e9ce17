package http

import (
	"AskArchive/backend/go/internal/config"
	"AskArchive/backend/go/pkg/circuitbreaker"
	"AskArchive/backend/go/pkg/logger"
	"fmt"
	"net/http"
	"time"
)

// Client is a custom HTTP client that wraps the standard http.Client
// and provides built-in support for circuit breaking.
type Client struct {
	httpClient *http.Client
	breaker    circuitbreaker.CircuitBreaker
}

// NewClient creates a new Client. A circuit breaker is attached when cfg enables it.
func NewClient(cfg config.CircuitBreakerConfig, timeout time.Duration) (*Client, error) {
	c := NewPlainClient(timeout)
	if !cfg.Enabled {
		return c, nil
	}

	breaker, err := NewCircuitBreaker(cfg, logger.New("http_client", "", ""))
	if err != nil {
		return nil, err
	}
	c.breaker = breaker
	return c, nil
}

// NewPlainClient creates a Client without a circuit breaker.
func NewPlainClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Do executes an HTTP request with circuit breaker protection.
// It considers status codes >= 500 as failures; the body of such a response is closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	var resp *http.Response
	_, err := c.breaker.Execute(func() (interface{}, error) {
		r, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if r.StatusCode >= http.StatusInternalServerError {
			r.Body.Close()
			return nil, fmt.Errorf("server error: received status code %d", r.StatusCode)
		}
		resp = r
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
