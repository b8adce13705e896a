package services_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/DanHUMassMed/sumtube/internal/queue"
	"github.com/DanHUMassMed/sumtube/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	inner := errors.New("chunk overlap too large")
	err := services.Wrap(services.ErrConfiguration, "chunking", "validate inputs", "bad geometry", inner)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
	if !errors.Is(err, inner) {
		t.Fatal("expected wrapped inner error to survive")
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "fetching", "download transcript", "", errors.New("boom"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestFailureStatus(t *testing.T) {
	cases := []struct {
		err      error
		expected queue.Status
	}{
		{services.Wrap(services.ErrConfiguration, "s", "o", "m", nil), queue.StatusReview},
		{services.Wrap(services.ErrBudget, "s", "o", "m", nil), queue.StatusReview},
		{services.Wrap(services.ErrNotFound, "s", "o", "m", nil), queue.StatusReview},
		{services.Wrap(services.ErrValidation, "s", "o", "m", nil), queue.StatusReview},
		{services.Wrap(services.ErrTransient, "s", "o", "m", nil), queue.StatusFailed},
		{services.Wrap(services.ErrTimeout, "s", "o", "m", nil), queue.StatusFailed},
		{errors.New("unclassified"), queue.StatusFailed},
	}
	for i, tc := range cases {
		if got := services.FailureStatus(tc.err); got != tc.expected {
			t.Fatalf("case %d: expected %s, got %s (err=%v)", i, tc.expected, got, tc.err)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if services.IsRetryable(services.Wrap(services.ErrConfiguration, "s", "o", "", nil)) {
		t.Fatal("configuration errors are not retryable")
	}
	for _, marker := range []error{services.ErrTransient, services.ErrTimeout, services.ErrRateLimited} {
		if !services.IsRetryable(fmt.Errorf("%w: call failed", marker)) {
			t.Fatalf("expected %v to be retryable", marker)
		}
	}
}

func TestDetailsStripsMarkerPrefix(t *testing.T) {
	err := services.Wrap(services.ErrBudget, "summarizing", "allocate budget", "too many chunks", nil)
	details := services.Details(err)
	if details.Message != "summarizing: allocate budget: too many chunks" {
		t.Fatalf("unexpected details: %q", details.Message)
	}
}
