package session

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultReconnectInterval is the fixed delay before a reconnect attempt.
const DefaultReconnectInterval = 3 * time.Second

// RetryPolicy decides when, and whether, the transport redials after a
// failed open or an abrupt close.
type RetryPolicy struct {
	// Interval is the first (or only) delay. Zero means
	// DefaultReconnectInterval.
	Interval time.Duration `yaml:"interval"`
	// Exponential doubles the delay after every failed attempt, capped at
	// MaxInterval.
	Exponential bool          `yaml:"exponential"`
	MaxInterval time.Duration `yaml:"max_interval"`
	// MaxAttempts bounds consecutive failed attempts. Zero is unbounded.
	MaxAttempts int `yaml:"max_attempts"`
	// Jitter randomizes each delay by up to this fraction (0..1).
	Jitter float64 `yaml:"jitter"`
}

// NewBackOff builds the backoff sequence for the policy.
func (p RetryPolicy) NewBackOff() backoff.BackOff {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultReconnectInterval
	}
	if !p.Exponential && p.Jitter <= 0 {
		return backoff.NewConstantBackOff(interval)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.RandomizationFactor = p.Jitter
	b.Multiplier = 1
	b.MaxInterval = interval
	if p.Exponential {
		b.Multiplier = 2
		b.MaxInterval = p.MaxInterval
		if b.MaxInterval < interval {
			b.MaxInterval = 60 * time.Second
		}
	}
	b.Reset()
	return b
}

// retrier counts consecutive attempts against one backoff sequence.
type retrier struct {
	policy   RetryPolicy
	backoff  backoff.BackOff
	attempts int
}

func newRetrier(p RetryPolicy) *retrier {
	return &retrier{policy: p, backoff: p.NewBackOff()}
}

// next returns the delay before the next attempt, or false when the policy
// gives up.
func (r *retrier) next() (time.Duration, bool) {
	if r.policy.MaxAttempts > 0 && r.attempts >= r.policy.MaxAttempts {
		return 0, false
	}
	d := r.backoff.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	r.attempts++
	return d, true
}

// reset starts a new sequence after a successful open.
func (r *retrier) reset() {
	r.attempts = 0
	r.backoff.Reset()
}
