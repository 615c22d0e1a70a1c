package agent

import (
	"sync"
	"time"
)

// Usage represents token consumption and cost for one backend.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost_usd"`
}

// per-1K-token pricing by model; unknown models cost zero rather than guessing.
var modelPricing = map[string]struct {
	InputCostPer1K  float64
	OutputCostPer1K float64
}{
	"gpt-4o":           {0.0025, 0.01},
	"gpt-4o-mini":      {0.00015, 0.0006},
	"gemini-2.0-flash": {0.0001, 0.0004},
	"gemini-1.5-pro":   {0.00125, 0.005},
}

// UsageTracker accumulates token usage per backend in a thread-safe manner.
type UsageTracker struct {
	mu           sync.RWMutex
	perBackend   map[string]*Usage
	total        Usage
	sessionStart time.Time
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		perBackend:   make(map[string]*Usage),
		sessionStart: time.Now(),
	}
}

// Record adds one call's token counts for the named backend.
func (t *UsageTracker) Record(backend, model string, inputTokens, outputTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cost := callCost(model, inputTokens, outputTokens)

	u := t.perBackend[backend]
	if u == nil {
		u = &Usage{}
		t.perBackend[backend] = u
	}
	u.InputTokens += inputTokens
	u.OutputTokens += outputTokens
	u.TotalTokens += inputTokens + outputTokens
	u.Cost += cost

	t.total.InputTokens += inputTokens
	t.total.OutputTokens += outputTokens
	t.total.TotalTokens += inputTokens + outputTokens
	t.total.Cost += cost
}

// Total returns a copy of the accumulated usage across all backends.
func (t *UsageTracker) Total() Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// Backend returns a copy of the accumulated usage for one backend.
func (t *UsageTracker) Backend(name string) Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if u, ok := t.perBackend[name]; ok {
		return *u
	}
	return Usage{}
}

// SessionDuration returns how long this tracker has been live.
func (t *UsageTracker) SessionDuration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return time.Since(t.sessionStart)
}

func callCost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1000.0*pricing.InputCostPer1K +
		float64(outputTokens)/1000.0*pricing.OutputCostPer1K
}
