package translator

import (
	"strings"
	"time"
)

const (
	// baseRetryDelay is the first backoff step; it doubles per attempt.
	baseRetryDelay = 2 * time.Second
	// maxRetryDelay caps the backoff.
	maxRetryDelay = 30 * time.Second
)

// isRetryable classifies a translation call error. Transient conditions
// (rate limits, server errors, network hiccups) are retried; malformed
// requests and auth failures are not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	// Permanent: authentication and request shape problems.
	for _, s := range []string{
		"unauthorized", "invalid api key", "authentication",
		"invalid request", "bad request", "status code: 400", "status code: 401",
		"unsupported language", "model not found", "status code: 404",
	} {
		if strings.Contains(msg, s) {
			return false
		}
	}

	// Transient: rate limits and 5xx-class server errors.
	for _, s := range []string{
		"rate limit", "too many requests", "status code: 429",
		"status code: 5", "server error", "service unavailable",
		"timeout", "deadline exceeded", "connection", "eof", "reset by peer",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}

	// Unknown API failures default to retryable.
	return true
}

// backoffDelay returns the exponential backoff delay for attempt
// (1-based): 2s, 4s, 8s, ... capped at maxRetryDelay.
func backoffDelay(attempt int) time.Duration {
	delay := baseRetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
