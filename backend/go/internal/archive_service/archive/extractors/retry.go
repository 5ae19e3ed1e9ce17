package extractors

import (
	"net/http"
	"time"
)

// retryDoer re-sends idempotent requests that failed at the transport level or got a 5xx.
type retryDoer struct {
	next    Doer
	retries int
	backoff time.Duration
}

// WithRetries wraps next so GET requests are retried up to retries extra times.
// retries <= 0 returns next unchanged.
func WithRetries(next Doer, retries int, backoff time.Duration) Doer {
	if retries <= 0 {
		return next
	}
	return &retryDoer{next: next, retries: retries, backoff: backoff}
}

func (d *retryDoer) Do(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return d.next.Do(req)
	}
	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; ; attempt++ {
		resp, err = d.next.Do(req)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if attempt >= d.retries || req.Context().Err() != nil {
			return resp, err
		}
		if resp != nil {
			resp.Body.Close()
		}

		wait := d.backoff * time.Duration(1<<attempt)
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(wait):
		}
	}
}
