// Package router fans matchmaking requests out over multiple backends
// round-robin, so several API keys or providers can share the load.
package router

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"workshop-matchmaker/agent"
)

var backendPalette = []string{"#7D56F4", "#04B575", "#F25D94", "#FFB454"}

type namedBackend struct {
	invoker agent.Invoker
	name    string
	style   lipgloss.Style
}

// Router is an agent.Invoker that rotates over its backends.
type Router struct {
	backends []namedBackend
	counter  uint64
	logger   *log.Logger
}

// Backend pairs an invoker with the name it is logged under.
type Backend struct {
	Name    string
	Invoker agent.Invoker
}

// NewRouter builds a round-robin router over the given backends.
func NewRouter(backends []Backend, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}

	named := make([]namedBackend, len(backends))
	for i, b := range backends {
		color := backendPalette[i%len(backendPalette)]
		named[i] = namedBackend{
			invoker: b.Invoker,
			name:    b.Name,
			style:   lipgloss.NewStyle().Foreground(lipgloss.Color(color)),
		}
	}

	return &Router{
		backends: named,
		logger:   logger,
	}
}

// Invoke implements agent.Invoker.
func (r *Router) Invoke(ctx context.Context, instruction, userMessage string) ([]agent.Event, error) {
	if len(r.backends) == 0 {
		return nil, fmt.Errorf("no backends available")
	}

	index := atomic.AddUint64(&r.counter, 1) - 1
	selected := r.backends[index%uint64(len(r.backends))]

	r.logger.Info(fmt.Sprintf("[ %s ] used to handle request", selected.style.Render(selected.name)))

	return selected.invoker.Invoke(ctx, instruction, userMessage)
}
