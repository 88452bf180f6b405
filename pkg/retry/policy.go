package retry

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"cryptodata/pkg/config"
)

// ReasonExhausted ends a run when the consecutive retry allowance is spent.
const ReasonExhausted = "retries_exhausted"

// Decision is what the policy tells the caller to do after a failed fetch.
type Decision struct {
	Classification
	// Retry is true when the caller should sleep Delay and fetch again.
	Retry bool
	Delay time.Duration
	// Attempt counts consecutive retries, starting at 1.
	Attempt int
}

// Policy maps fetch errors to retry decisions. It is not safe for concurrent use.
type Policy struct {
	backoff     backoff.BackOff
	consecutive int
}

// NewPolicy builds a policy from configuration. A constant strategy waits
// Interval between attempts; exponential grows it up to MaxInterval.
// MaxConsecutive of zero retries forever.
func NewPolicy(cfg config.RetryConfig) *Policy {
	var b backoff.BackOff
	switch strings.ToLower(cfg.Strategy) {
	case "exponential":
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = cfg.Interval
		if cfg.MaxInterval > 0 {
			exp.MaxInterval = cfg.MaxInterval
		}
		if cfg.Multiplier >= 1 {
			exp.Multiplier = cfg.Multiplier
		}
		exp.MaxElapsedTime = 0
		b = exp
	default:
		b = backoff.NewConstantBackOff(cfg.Interval)
	}

	if cfg.MaxConsecutive > 0 {
		b = backoff.WithMaxRetries(b, uint64(cfg.MaxConsecutive))
	}

	return NewPolicyWithBackOff(b)
}

// NewPolicyWithBackOff wraps an arbitrary backoff strategy.
func NewPolicyWithBackOff(b backoff.BackOff) *Policy {
	b.Reset()
	return &Policy{backoff: b}
}

// DefaultPolicy waits a constant 10 seconds between attempts and never gives up.
func DefaultPolicy() *Policy {
	return NewPolicyWithBackOff(backoff.NewConstantBackOff(10 * time.Second))
}

// Next classifies err and, when it is retryable, returns the delay before the
// next attempt. A retryable error past the allowance comes back with
// Retry=false and Reason=ReasonExhausted.
func (p *Policy) Next(err error) Decision {
	d := Decision{Classification: Classify(err)}
	if !d.Retryable {
		return d
	}

	delay := p.backoff.NextBackOff()
	if delay == backoff.Stop {
		d.Reason = ReasonExhausted
		d.Attempt = p.consecutive
		return d
	}

	p.consecutive++
	d.Retry = true
	d.Delay = delay
	d.Attempt = p.consecutive
	return d
}

// Reset clears the consecutive retry count after a successful fetch.
func (p *Policy) Reset() {
	p.consecutive = 0
	p.backoff.Reset()
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
