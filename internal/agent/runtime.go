package agent

import (
	"context"
	"errors"
)

// Message is one turn of a session's output stream.
type Message struct {
	Role    string
	Content string
}

// ErrStreamTimeout reports that the bounded wait for the next message
// expired. It is distinct from a runtime-reported stream error.
var ErrStreamTimeout = errors.New("timed out waiting for agent output")

// Session is a pull-based message sequence for one agent invocation.
// Next returns io.EOF once the stream has completed normally.
type Session interface {
	Next(ctx context.Context) (Message, error)
	Close() error
}

// Runtime creates agent sessions. Implementations carry their own
// configuration (endpoint, credentials, model); nothing here mutates
// process-wide state.
type Runtime interface {
	CreateSession(ctx context.Context, agentID, prompt string) (Session, error)
	Name() string
}

// contextWindows maps known model families to their context window sizes,
// used to resolve the compression budget dynamically.
var contextWindows = map[string]int{
	"claude-sonnet-4-20250514": 200000,
	"claude-opus-4-20250514":   200000,
	"claude-3-5-haiku":         200000,
}

// ContextWindow returns the context window for a model, or 0 when unknown.
func ContextWindow(model string) int {
	return contextWindows[model]
}
