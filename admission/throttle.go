package admission

import (
	"sync"

	"golang.org/x/time/rate"
)

// submissionRate and submissionBurst bound how fast one user may submit
// orders, so a runaway client can't starve the matcher inside a single
// busy transaction window.
const (
	submissionRate  = 20 // per second
	submissionBurst = 40
)

// Throttle holds one token-bucket limiter per user, created lazily on
// first submission.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewThrottle constructs an empty Throttle.
func NewThrottle() *Throttle {
	return &Throttle{limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether user may submit now, consuming a token if so.
func (t *Throttle) Allow(user string) bool {
	t.mu.Lock()
	limiter, ok := t.limiters[user]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(submissionRate), submissionBurst)
		t.limiters[user] = limiter
	}
	t.mu.Unlock()
	return limiter.Allow()
}
