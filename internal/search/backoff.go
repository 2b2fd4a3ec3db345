package search

import (
	"math"
	"time"
)

// Backoff is a capped exponential delay: Base, 2*Base, 4*Base, ... up to Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff waits 30s on the first retry and never more than 2m.
func DefaultBackoff() Backoff {
	return Backoff{Base: 30 * time.Second, Max: 2 * time.Minute}
}

// Delay returns the wait before retry number retry (0-based). Delays are
// non-decreasing in retry and never exceed Max when Max is set.
func (b Backoff) Delay(retry int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	d := b.Base
	for i := 0; i < retry; i++ {
		if b.Max > 0 && d >= b.Max {
			break
		}
		if d > math.MaxInt64/2 {
			break
		}
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}
