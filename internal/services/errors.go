package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DanHUMassMed/sumtube/internal/queue"
)

var (
	// ErrConfiguration marks fatal pre-flight failures such as invalid chunk
	// geometry or malformed credentials. The pipeline halts before any stage runs.
	ErrConfiguration = errors.New("configuration error")
	// ErrBudget marks a context-window budget that cannot produce a viable
	// per-item response size for the current configuration.
	ErrBudget = errors.New("budget exceeded")
	// ErrValidation marks inputs that fail structural checks.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks missing external resources (video, transcript, track).
	ErrNotFound = errors.New("not found")
	// ErrRateLimited marks throttling responses from external services.
	ErrRateLimited = errors.New("rate limited")
	// ErrTimeout marks external calls that exceeded their deadline.
	ErrTimeout = errors.New("timeout")
	// ErrTransient marks retryable external-service failures.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a stage error to the queue status the workflow manager
// should persist after the stage fails. Configuration and validation problems
// need operator attention; everything else is retryable by re-invocation.
func FailureStatus(err error) queue.Status {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrBudget), errors.Is(err, ErrNotFound):
		return queue.StatusReview
	default:
		return queue.StatusFailed
	}
}

// IsRetryable reports whether re-invoking the pipeline could clear the failure
// without a configuration change.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// Details extracts the human-readable portion of a wrapped service error.
type ErrorDetails struct {
	Message string
}

// Details returns presentation details for an error produced by Wrap.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	msg := err.Error()
	for _, marker := range []error{ErrConfiguration, ErrBudget, ErrValidation, ErrNotFound, ErrRateLimited, ErrTimeout, ErrTransient} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			msg = strings.TrimPrefix(msg, prefix)
			break
		}
	}
	return ErrorDetails{Message: msg}
}
