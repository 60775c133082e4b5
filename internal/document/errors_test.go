package document

import (
	"errors"
	"testing"
)

func TestPipelineErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("stream truncated")
	err := NewPageError(ErrMalformedStructure, "parse", "failed to decode page", 3, cause)

	if got := err.Error(); got != "parse: failed to decode page: stream truncated" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap must expose the cause")
	}
	if err.Page != 3 {
		t.Errorf("Page = %d, want 3", err.Page)
	}

	bare := NewError(ErrCancelled, "translate", "run cancelled", nil)
	if got := bare.Error(); got != "translate: run cancelled" {
		t.Errorf("Error() without cause = %q", got)
	}
}

func TestIsFatal(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), true},
		{"parse error", NewError(ErrMalformedStructure, "parse", "bad", nil), true},
		{"cancellation", NewError(ErrCancelled, "translate", "cancelled", nil), true},
		{"batch transport error", NewError(ErrBatchFailed, "translate", "call failed", nil), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsFatal(tc.err); got != tc.want {
				t.Errorf("IsFatal = %v, want %v", got, tc.want)
			}
		})
	}
}
