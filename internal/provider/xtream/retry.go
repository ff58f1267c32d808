package xtream

import (
	"context"
	"errors"
	"net"
	"time"
)

const (
	maxRetryAttempts  = 3
	initialRetryDelay = time.Second
)

// withRetry runs fn up to maxRetryAttempts times, retrying only on 5xx
// HTTPErrors and network-level connect errors, with exponential backoff
// starting at initialRetryDelay, per spec.md §7. 4xx errors and any other
// error type return immediately without retry.
func withRetry(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	var lastErr error
	delay := initialRetryDelay

	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		body, err := fn()
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == maxRetryAttempts {
			return nil, err
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}
	return nil, lastErr
}

func isRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
