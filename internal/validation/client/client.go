// Package client implements the validation service's read-only HTTP clients
// for the catalog and entitlement services, fronted by a shared circuit
// breaker, bounded retry, and a read-through Redis mirror of the owners'
// cache keys. The mirror is never invalidated here; the owning services
// delete keys on writes and the TTL bounds any remaining staleness.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	maxAttempts    = 3
	retryBaseDelay = 250 * time.Millisecond
)

// httpError carries a non-2xx downstream response.
type httpError struct {
	status int
	url    string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.url, e.status)
}

// retryable reports whether another attempt can help.
func retryable(err error) bool {
	if he, ok := err.(*httpError); ok {
		return he.status >= 500
	}
	// Transport errors (refused, reset, timeout) are worth retrying.
	return true
}

// httpClient is one downstream service endpoint.
type httpClient struct {
	base    string
	hc      *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func newHTTPClient(name, base string, timeout time.Duration, log *zap.Logger) *httpClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &httpClient{
		base:    base,
		hc:      &http.Client{Timeout: timeout},
		breaker: breaker,
		log:     log,
	}
}

// getJSON fetches base+path and decodes the body into dest. Transport errors
// and 5xx responses are retried up to maxAttempts with linear backoff; 4xx
// responses fail immediately.
func (c *httpClient) getJSON(ctx context.Context, path string, dest any) error {
	url := c.base + path

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, err := c.breaker.Execute(func() (any, error) {
			return c.fetch(ctx, url)
		})
		if err == nil {
			if err := json.Unmarshal(body.([]byte), dest); err != nil {
				return fmt.Errorf("decode %s: %w", url, err)
			}
			return nil
		}
		lastErr = err

		if !retryable(err) || attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBaseDelay * time.Duration(attempt)):
		}
		c.log.Debug("retrying downstream fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return lastErr
}

func (c *httpClient) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", url, err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpError{status: resp.StatusCode, url: url}
	}
	return body, nil
}
