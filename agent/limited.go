package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"workshop-matchmaker/ratelimiter"
)

const (
	DefaultRequestsPerMinute = 60
	DefaultCallTimeout       = 180 * time.Second
	DefaultMaxAttempts       = 3
)

// Limited wraps an Invoker with a request rate limit, a per-call timeout and
// a bounded retry of transport failures. It never retries a missing-session
// condition and decode failures happen downstream, so they are never retried
// by construction.
type Limited struct {
	inner          Invoker
	logger         *log.Logger
	requestLimiter *ratelimiter.TokenBucket
	callTimeout    time.Duration
	maxAttempts    int
}

// LimitedConfig configures a Limited wrapper. Zero values fall back to the
// package defaults.
type LimitedConfig struct {
	RequestsPerMinute int
	CallTimeout       time.Duration
	MaxAttempts       int
	Logger            *log.Logger
}

// NewLimited wraps inner with the given call policy.
func NewLimited(inner Invoker, config LimitedConfig) *Limited {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultCallTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	refillRate := time.Minute / time.Duration(config.RequestsPerMinute)

	return &Limited{
		inner:          inner,
		logger:         config.Logger,
		requestLimiter: ratelimiter.NewTokenBucket(config.RequestsPerMinute, refillRate),
		callTimeout:    config.CallTimeout,
		maxAttempts:    config.MaxAttempts,
	}
}

// Invoke implements Invoker.
func (l *Limited) Invoke(ctx context.Context, instruction, userMessage string) ([]Event, error) {
	var lastErr error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if err := l.requestLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("request rate limit exceeded: %w", err)
		}

		events, err := l.invokeOnce(ctx, instruction, userMessage)
		if err == nil {
			return events, nil
		}
		lastErr = err

		if errors.Is(err, ErrNoSession) || ctx.Err() != nil {
			return nil, err
		}

		l.logger.Warn("agent call failed",
			"attempt", attempt,
			"max_attempts", l.maxAttempts,
			"error", err,
		)
	}
	return nil, fmt.Errorf("agent call failed after %d attempts: %w", l.maxAttempts, lastErr)
}

func (l *Limited) invokeOnce(ctx context.Context, instruction, userMessage string) ([]Event, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()

	startTime := time.Now()
	events, err := l.inner.Invoke(callCtx, instruction, userMessage)
	duration := time.Since(startTime)

	if err != nil {
		l.logger.Error("agent request failed", "error", err, "duration", duration)
		return nil, err
	}

	l.logger.Info("agent request completed",
		"events", len(events),
		"duration", duration,
	)
	return events, nil
}

// Close stops the underlying rate limiter.
func (l *Limited) Close() {
	if l.requestLimiter != nil {
		l.requestLimiter.Stop()
	}
}

// AvailableRequestTokens reports how many requests may be issued immediately.
func (l *Limited) AvailableRequestTokens() int {
	return l.requestLimiter.AvailableTokens()
}
