package search

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Budget is the request budget shared by every shard worker of a run. It
// paces requests to a steady rate and, once any worker learns that the
// provider's window is exhausted, holds every worker until the window
// resets. All methods are safe for concurrent use.
type Budget struct {
	limiter *rate.Limiter

	mu        sync.Mutex
	remaining int // -1 until the provider reports it
	reset     time.Time
	limited   int // number of times the window was reported exhausted
	now       func() time.Time
}

// BudgetState is a point-in-time copy of the budget.
type BudgetState struct {
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
	Limited   int       `json:"limited"`
}

// NewBudget returns a budget allowing perMinute requests per minute.
// perMinute <= 0 disables pacing; provider-reported exhaustion is still
// honoured.
func NewBudget(perMinute int) *Budget {
	lim := rate.NewLimiter(rate.Inf, 1)
	if perMinute > 0 {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	return &Budget{limiter: lim, remaining: -1, now: time.Now}
}

// Observe records the rate information of a successful response.
func (b *Budget) Observe(info RateInfo) {
	if b == nil || !info.Known() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining = info.Remaining
	if !info.Reset.IsZero() {
		b.reset = info.Reset
	}
}

// Exhaust marks the window as used up until reset. A zero reset leaves the
// previously known reset time in place.
func (b *Budget) Exhaust(reset time.Time) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining = 0
	b.limited++
	if reset.After(b.reset) {
		b.reset = reset
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (b *Budget) Wait(ctx context.Context) error {
	if b == nil {
		return ctx.Err()
	}
	for {
		b.mu.Lock()
		var d time.Duration
		if b.remaining == 0 && !b.reset.IsZero() {
			d = b.reset.Sub(b.now())
		}
		b.mu.Unlock()
		if d <= 0 {
			break
		}
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return b.limiter.Wait(ctx)
}

// Snapshot returns the current state.
func (b *Budget) Snapshot() BudgetState {
	if b == nil {
		return BudgetState{Remaining: -1}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return BudgetState{Remaining: b.remaining, Reset: b.reset, Limited: b.limited}
}
