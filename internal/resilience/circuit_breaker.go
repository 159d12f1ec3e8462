package resilience

import (
	"sync"
	"time"
)

// Breaker guards calls to an optional dependency. After a run of
// failures it opens and callers skip the dependency until the cooldown
// passes; a single probe then decides whether it closes again.
type Breaker struct {
	mu          sync.Mutex
	maxFailures int
	cooldown    time.Duration

	failures int
	open     bool
	openedAt time.Time
	probing  bool
}

// NewBreaker returns a closed breaker that opens after maxFailures
// consecutive failures and probes again after cooldown.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{maxFailures: maxFailures, cooldown: cooldown}
}

// Allow reports whether the caller should attempt the dependency.
// While open, exactly one caller per cooldown window gets a probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.probing || time.Since(b.openedAt) < b.cooldown {
		return false
	}
	b.probing = true
	return true
}

// Success records a successful call and closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.open = false
	b.probing = false
}

// Failure records a failed call, opening the breaker once the
// consecutive-failure threshold is hit.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.probing || b.failures >= b.maxFailures {
		b.open = true
		b.openedAt = time.Now()
		b.probing = false
	}
}

// State returns "closed", "open", or "half-open" for stats endpoints.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case !b.open:
		return "closed"
	case b.probing:
		return "half-open"
	default:
		return "open"
	}
}
