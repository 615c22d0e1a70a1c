package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type flakyInvoker struct {
	calls    int
	failures int
}

func (f *flakyInvoker) Invoke(ctx context.Context, instruction, userMessage string) ([]Event, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("transport glitch %d", f.calls)
	}
	return []Event{TextEvent(`{"groups":[]}`)}, nil
}

type noSessionInvoker struct {
	calls int
}

func (n *noSessionInvoker) Invoke(ctx context.Context, instruction, userMessage string) ([]Event, error) {
	n.calls++
	return nil, fmt.Errorf("%w: Session not found", ErrNoSession)
}

func quietLogger() *log.Logger {
	logger := log.New(nil)
	logger.SetLevel(log.FatalLevel)
	return logger
}

func TestLimitedRetriesTransportFailures(t *testing.T) {
	inner := &flakyInvoker{failures: 2}
	limited := NewLimited(inner, LimitedConfig{
		RequestsPerMinute: 600,
		MaxAttempts:       3,
		Logger:            quietLogger(),
	})
	defer limited.Close()

	events, err := limited.Invoke(context.Background(), "instruction", "message")
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestLimitedGivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyInvoker{failures: 10}
	limited := NewLimited(inner, LimitedConfig{
		RequestsPerMinute: 600,
		MaxAttempts:       2,
		Logger:            quietLogger(),
	})
	defer limited.Close()

	_, err := limited.Invoke(context.Background(), "instruction", "message")
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", inner.calls)
	}
}

func TestLimitedNeverRetriesMissingSession(t *testing.T) {
	inner := &noSessionInvoker{}
	limited := NewLimited(inner, LimitedConfig{
		RequestsPerMinute: 600,
		MaxAttempts:       3,
		Logger:            quietLogger(),
	})
	defer limited.Close()

	_, err := limited.Invoke(context.Background(), "instruction", "message")
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected a single attempt, got %d", inner.calls)
	}
}

func TestLimitedStopsOnContextCancel(t *testing.T) {
	inner := &flakyInvoker{failures: 10}
	limited := NewLimited(inner, LimitedConfig{
		RequestsPerMinute: 600,
		MaxAttempts:       5,
		Logger:            quietLogger(),
	})
	defer limited.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := limited.Invoke(ctx, "instruction", "message")
	if err == nil {
		t.Fatal("expected error with canceled context")
	}
	if inner.calls > 1 {
		t.Errorf("expected at most one attempt after cancel, got %d", inner.calls)
	}
}

func TestUsageTracker(t *testing.T) {
	tracker := NewUsageTracker()
	tracker.Record("openai", "gpt-4o", 1000, 500)
	tracker.Record("gemini", "gemini-2.0-flash", 2000, 100)

	total := tracker.Total()
	if total.InputTokens != 3000 || total.OutputTokens != 600 {
		t.Errorf("unexpected totals: %+v", total)
	}
	if total.TotalTokens != 3600 {
		t.Errorf("expected 3600 total tokens, got %d", total.TotalTokens)
	}
	if total.Cost <= 0 {
		t.Errorf("expected positive cost, got %f", total.Cost)
	}

	openai := tracker.Backend("openai")
	if openai.InputTokens != 1000 {
		t.Errorf("unexpected openai usage: %+v", openai)
	}
	if unknown := tracker.Backend("nope"); unknown.TotalTokens != 0 {
		t.Errorf("expected zero usage for unknown backend, got %+v", unknown)
	}
	if tracker.SessionDuration() < 0 || tracker.SessionDuration() > time.Minute {
		t.Errorf("implausible session duration %v", tracker.SessionDuration())
	}
}
