package discovery

import (
	"math/rand"
	"sync"
	"time"
)

// Retry delays after a failed browse round.
const (
	InitialRetry    = 1 * time.Second
	RetryMultiplier = 2.0
	RetryJitter     = 0.25
)

// Backoff computes exponential retry delays with jitter. The delay never
// exceeds the regular browse interval, so a failing interface is retried
// at least as often as a healthy one is browsed.
type Backoff struct {
	mu sync.Mutex

	current    time.Duration
	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64
	failures   int

	rng *rand.Rand
}

// NewBackoff creates a backoff capped at limit.
func NewBackoff(limit time.Duration) *Backoff {
	initial := min(InitialRetry, limit)
	return &Backoff{
		current:    initial,
		initial:    initial,
		max:        limit,
		multiplier: RetryMultiplier,
		jitter:     RetryJitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next delay (with jitter) and advances the backoff.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.current
	if b.jitter > 0 {
		delay += time.Duration(float64(delay) * b.jitter * b.rng.Float64())
	}
	delay = min(delay, b.max)

	b.failures++
	b.current = min(time.Duration(float64(b.current)*b.multiplier), b.max)
	return delay
}

// Reset returns to the initial delay after a successful round.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
	b.failures = 0
}

// Failures returns the number of consecutive failed rounds.
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Current returns the base delay (without jitter).
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
