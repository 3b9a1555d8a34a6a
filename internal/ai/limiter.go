package ai

import (
	"errors"
	"sync"
	"time"
)

// ErrBudgetExhausted means the daily call budget is spent. Callers treat the
// advisory layer as unavailable and fall back to pure technicals.
var ErrBudgetExhausted = errors.New("ai: daily call budget exhausted")

// Limiter caps the number of model calls per UTC day. API quotas are the
// scarce resource here, not latency, so this is a simple counter rather
// than a token bucket.
type Limiter struct {
	budget int
	used   int
	day    time.Time
	mu     sync.Mutex
	now    func() time.Time
}

func NewLimiter(budget int) *Limiter {
	return &Limiter{budget: budget, now: time.Now}
}

// Acquire consumes one call from the budget or reports exhaustion. The
// counter resets at the UTC day boundary.
func (l *Limiter) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.now().UTC().Truncate(24 * time.Hour)
	if !today.Equal(l.day) {
		l.day = today
		l.used = 0
	}
	if l.used >= l.budget {
		return ErrBudgetExhausted
	}
	l.used++
	return nil
}

// Remaining reports how many calls are left today.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	today := l.now().UTC().Truncate(24 * time.Hour)
	if !today.Equal(l.day) {
		return l.budget
	}
	if l.used >= l.budget {
		return 0
	}
	return l.budget - l.used
}
