// Package agent defines the invocation boundary to the external matchmaker
// service and the backends that implement it.
package agent

import (
	"context"
)

// Invoker is the capability boundary to the external text-generation service.
// Implementations send the instruction plus a user message and return the
// ordered event sequence of the resulting turn; the final event of a
// successful turn carries the structured answer.
type Invoker interface {
	Invoke(ctx context.Context, instruction, userMessage string) ([]Event, error)
}

// Event is one response event from the service.
type Event struct {
	Author  string  `json:"author,omitempty"`
	Content Content `json:"content"`
}

// Content holds the parts of an event.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a single content part. Only text parts are consumed here.
type Part struct {
	Text string `json:"text"`
}

// TextEvent wraps a plain text payload in a single-part model event. Backends
// that answer in one shot use it to produce their final event.
func TextEvent(text string) Event {
	return Event{
		Content: Content{
			Role:  "model",
			Parts: []Part{{Text: text}},
		},
	}
}

// Config holds the shared configuration parameters for a backend.
type Config struct {
	Name   string
	Model  string
	APIKey string
}
