package budget

import (
	"errors"
	"fmt"
	"math"
)

// The reserved fraction of the context window is held back from generated
// responses. The four sub-reservations are accounting labels for one shared
// pool, not separately enforced limits.
const (
	ReserveIntroduction = 0.10
	ReserveConclusion   = 0.10
	ReserveInstructions = 0.10
	ReserveSafetyMargin = 0.10

	DefaultReservedFraction = ReserveIntroduction + ReserveConclusion + ReserveInstructions + ReserveSafetyMargin
	DefaultBytesPerToken    = 4
)

// Plan computes the maximum byte size each generated response may occupy at a
// fan-in point. It is a pure function of configuration and item count, so it is
// recomputed at every fan-in point instead of being persisted.
type Plan struct {
	ContextWindowTokens int
	BytesPerToken       int
	ReservedFraction    float64
	FanInCount          int
	MinItemBytes        int
}

// ExceededError reports a configuration whose per-item budget falls below the
// minimum viable response size. It carries the offending fan-in count and
// window size so the caller can surface them instead of silently clamping.
type ExceededError struct {
	FanInCount          int
	ContextWindowTokens int
	ItemBytes           int
	MinItemBytes        int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf(
		"context budget exceeded: %d items in a %d-token window leave %d bytes per response (minimum %d)",
		e.FanInCount, e.ContextWindowTokens, e.ItemBytes, e.MinItemBytes,
	)
}

// ItemBudget returns the maximum response size in bytes for each of the
// plan's FanInCount items:
//
//	usable = context_window_tokens * bytes_per_token * (1 - reserved_fraction)
//	item   = floor(usable / fan_in_count)
//
// Dividing by the fan-in count guarantees the concatenation of all responses
// fits in the usable portion of the window regardless of item count. A result
// below MinItemBytes fails with *ExceededError rather than being clamped.
func (p Plan) ItemBudget() (int, error) {
	if p.ContextWindowTokens <= 0 {
		return 0, fmt.Errorf("context window tokens must be positive, got %d", p.ContextWindowTokens)
	}
	if p.FanInCount <= 0 {
		return 0, fmt.Errorf("fan-in count must be positive, got %d", p.FanInCount)
	}
	if p.ReservedFraction < 0 || p.ReservedFraction >= 1 {
		return 0, fmt.Errorf("reserved fraction must be in [0, 1), got %g", p.ReservedFraction)
	}
	bytesPerToken := p.BytesPerToken
	if bytesPerToken == 0 {
		bytesPerToken = DefaultBytesPerToken
	}
	if bytesPerToken < 0 {
		return 0, fmt.Errorf("bytes per token must be positive, got %d", bytesPerToken)
	}

	usable := float64(p.ContextWindowTokens) * float64(bytesPerToken) * (1 - p.ReservedFraction)
	item := int(math.Floor(usable / float64(p.FanInCount)))

	minBytes := p.MinItemBytes
	if minBytes < 1 {
		minBytes = 1
	}
	if item < minBytes {
		return 0, &ExceededError{
			FanInCount:          p.FanInCount,
			ContextWindowTokens: p.ContextWindowTokens,
			ItemBytes:           item,
			MinItemBytes:        minBytes,
		}
	}
	return item, nil
}

// IsExceeded reports whether err is a budget-exceeded failure.
func IsExceeded(err error) bool {
	var exceeded *ExceededError
	return errors.As(err, &exceeded)
}
