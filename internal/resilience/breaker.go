// Package resilience wraps fallible external calls with retry,
// exponential backoff and a circuit breaker.  The breaker has two
// states: Closed (calls pass through, consecutive failures counted) and
// Open (calls rejected until the reset timeout elapses).  There is no
// half-open trial phase; once the timeout passes the next call is
// attempted directly and a failure re-opens the breaker immediately.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// attempting it.  Open rejections are never retried locally.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Policy configures retry and breaker behaviour for one dependency.
type Policy struct {
	MaxAttempts      int           // total attempts per logical call, minimum 1
	BackoffFactor    time.Duration // initial backoff, doubled after each failure
	MaxBackoff       time.Duration // backoff ceiling
	FailureThreshold int           // consecutive failures before the breaker opens
	ResetTimeout     time.Duration // how long the breaker stays open
}

// Breaker is a retrying circuit breaker guarding a single dependency.
// The zero value is not usable; construct one with New.
type Breaker struct {
	name   string
	policy Policy

	// OnStateChange, when set, is invoked after the breaker opens or
	// closes.  Used to export breaker state as a gauge.
	OnStateChange func(name string, open bool)

	mu        sync.Mutex
	failures  int
	openUntil time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Breaker applying the given policy.  The name appears in
// surfaced errors and state-change notifications.
func New(name string, p Policy) *Breaker {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.MaxBackoff < p.BackoffFactor {
		p.MaxBackoff = p.BackoffFactor
	}
	return &Breaker{
		name:   name,
		policy: p,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Do runs op under the breaker's retry policy.  Failed attempts are
// retried with exponential backoff up to MaxAttempts; every failure is
// reported to the breaker and the last one is surfaced to the caller.
// While the breaker is open, Do returns ErrCircuitOpen immediately.
func (b *Breaker) Do(ctx context.Context, op func() error) error {
	delay := b.policy.BackoffFactor
	for attempt := 1; ; attempt++ {
		if err := b.allow(); err != nil {
			return err
		}
		err := op()
		if err == nil {
			b.recordSuccess()
			return nil
		}
		b.recordFailure()
		if attempt >= b.policy.MaxAttempts {
			return fmt.Errorf("%s: %d attempt(s) failed: %w", b.name, attempt, err)
		}
		if err := b.sleep(ctx, delay); err != nil {
			return err
		}
		delay = 2 * delay
		if delay > b.policy.MaxBackoff {
			delay = b.policy.MaxBackoff
		}
	}
}

// Open reports whether the breaker currently rejects calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.openUntil.IsZero() && b.now().Before(b.openUntil)
}

// allow checks the breaker state before an attempt.  An elapsed open
// window closes the breaker and resets the failure counter.
func (b *Breaker) allow() error {
	b.mu.Lock()
	if !b.openUntil.IsZero() {
		if b.now().Before(b.openUntil) {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.failures = 0
		b.openUntil = time.Time{}
		b.mu.Unlock()
		b.notify(false)
		return nil
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	b.failures = 0
	b.openUntil = time.Time{}
	b.mu.Unlock()
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	b.failures++
	opened := b.failures >= b.policy.FailureThreshold
	if opened {
		b.openUntil = b.now().Add(b.policy.ResetTimeout)
	}
	b.mu.Unlock()
	if opened {
		b.notify(true)
	}
}

func (b *Breaker) notify(open bool) {
	if b.OnStateChange != nil {
		b.OnStateChange(b.name, open)
	}
}

// sleepCtx suspends only the calling goroutine and returns early when
// the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
