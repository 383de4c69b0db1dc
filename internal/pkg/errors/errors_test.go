package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppError_Is(t *testing.T) {
	wrapped := fmt.Errorf("safe send: %w", ErrDuplicate.WithDetails(map[string]string{"fingerprint": "abc"}))

	if !stderrors.Is(wrapped, ErrDuplicate) {
		t.Error("errors.Is() should match by code through wrapping and WithDetails")
	}
	if stderrors.Is(wrapped, ErrRateLimited) {
		t.Error("errors.Is() should not match a different code")
	}
}

func TestIsRejection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limited", err: ErrRateLimited, want: true},
		{name: "wrapped suppression", err: fmt.Errorf("x: %w", ErrAllSuppressed), want: true},
		{name: "upstream", err: CostExplorerError(stderrors.New("throttled")), want: false},
		{name: "plain error", err: stderrors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRejection(tt.err); got != tt.want {
				t.Errorf("IsRejection() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap_ErrorAndUnwrap(t *testing.T) {
	inner := stderrors.New("access denied")
	err := OrganizationsError(inner)

	if err.Error() != "Failed to list organization accounts: access denied" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !stderrors.Is(err, inner) {
		t.Error("Unwrap() should expose the internal error")
	}
	if KindOf(err) != KindUpstream {
		t.Errorf("KindOf() = %s, want %s", KindOf(err), KindUpstream)
	}
	if CodeOf(stderrors.New("x")) != ErrCodeInternal {
		t.Error("CodeOf() should default to internal for foreign errors")
	}
}
