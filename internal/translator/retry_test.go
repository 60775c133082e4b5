package translator

import (
	"errors"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unauthorized", errors.New("status code: 401 unauthorized"), false},
		{"invalid api key", errors.New("invalid api key provided"), false},
		{"bad request", errors.New("status code: 400 bad request"), false},
		{"unsupported language", errors.New("unsupported language pair"), false},
		{"model not found", errors.New("model not found"), false},
		{"rate limited", errors.New("status code: 429 too many requests"), true},
		{"server error", errors.New("status code: 500 internal server error"), true},
		{"timeout", errors.New("request timeout"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"unknown defaults retryable", errors.New("something odd happened"), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isRetryable(tc.err); got != tc.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	testCases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // capped
		{10, 30 * time.Second},
	}
	for _, tc := range testCases {
		if got := backoffDelay(tc.attempt); got != tc.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
