package gmail

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// Limiter gates outbound API calls so we stay under the per-user Gmail quota.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewLimiter returns a token bucket limiter releasing rps calls per second.
// A non-positive rps returns nil, which disables limiting.
func NewLimiter(rps float64) Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(math.Ceil(rps))
	return rate.NewLimiter(rate.Limit(rps), burst)
}
