package utils

import (
	"time"

	"github.com/warriorguo/autoflow/types"
)

// Backoff returns the wait before retry number attempt (zero based).
// Zero policy delays fall back to defaultDelay and maxDelay.
func Backoff(policy types.RetryPolicy, attempt int, defaultDelay, maxDelay time.Duration) time.Duration {
	base := policy.Delay
	if base <= 0 {
		base = defaultDelay
	}
	limit := policy.MaxDelay
	if limit <= 0 {
		limit = maxDelay
	}
	if limit > 0 && limit < base {
		limit = base
	}

	d := base
	if policy.Backoff == types.BackoffExponential {
		for i := 0; i < attempt; i++ {
			d <<= 1
			if d <= 0 || (limit > 0 && d >= limit) {
				d = limit
				break
			}
		}
	}
	if limit > 0 && d > limit {
		d = limit
	}
	return d
}
