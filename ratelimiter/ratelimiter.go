// Package ratelimiter provides a token bucket used to cap the request rate
// against external model services.
package ratelimiter

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	DefaultBucketSize = 10
	DefaultRefillRate = time.Second
)

// ErrStopped is returned by Wait after the bucket has been stopped.
var ErrStopped = errors.New("ratelimiter: stopped")

// TokenBucket accrues one token per refill interval up to the bucket size.
// Tokens are accounted lazily from elapsed time on each call, so an idle
// bucket costs no goroutine.
type TokenBucket struct {
	bucketSize int
	refillRate time.Duration

	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
	stopped    bool
}

// NewTokenBucket creates a full bucket. Non-positive arguments fall back to
// the package defaults.
func NewTokenBucket(bucketSize int, refillRate time.Duration) *TokenBucket {
	if bucketSize <= 0 {
		bucketSize = DefaultBucketSize
	}
	if refillRate <= 0 {
		refillRate = DefaultRefillRate
	}

	return &TokenBucket{
		bucketSize: bucketSize,
		refillRate: refillRate,
		tokens:     bucketSize,
		lastRefill: time.Now(),
	}
}

// refillLocked credits tokens earned since the last refill. A full bucket
// does not bank elapsed time, so there is never a burst beyond bucketSize.
func (tb *TokenBucket) refillLocked(now time.Time) {
	if tb.tokens >= tb.bucketSize {
		tb.lastRefill = now
		return
	}
	earned := int(now.Sub(tb.lastRefill) / tb.refillRate)
	if earned <= 0 {
		return
	}
	tb.tokens += earned
	if tb.tokens >= tb.bucketSize {
		tb.tokens = tb.bucketSize
		tb.lastRefill = now
		return
	}
	tb.lastRefill = tb.lastRefill.Add(time.Duration(earned) * tb.refillRate)
}

// Allow takes a token without blocking; it reports false when none is
// available or the bucket is stopped.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.stopped {
		return false
	}
	tb.refillLocked(time.Now())
	if tb.tokens == 0 {
		return false
	}
	tb.tokens--
	return true
}

// Wait blocks until a token is available or the context is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		if tb.stopped {
			tb.mu.Unlock()
			return ErrStopped
		}
		now := time.Now()
		tb.refillLocked(now)
		if tb.tokens > 0 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		untilNext := tb.lastRefill.Add(tb.refillRate).Sub(now)
		tb.mu.Unlock()

		timer := time.NewTimer(untilNext)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Stop refuses all further tokens. Safe to call more than once.
func (tb *TokenBucket) Stop() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.stopped = true
}

// AvailableTokens returns the number of tokens currently in the bucket.
func (tb *TokenBucket) AvailableTokens() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refillLocked(time.Now())
	return tb.tokens
}

// BucketSize returns the configured capacity.
func (tb *TokenBucket) BucketSize() int {
	return tb.bucketSize
}

// RefillRate returns the configured refill interval.
func (tb *TokenBucket) RefillRate() time.Duration {
	return tb.refillRate
}
