// Package agent is the boundary to the reviewer-agent runtime.
//
// A Runtime creates one Session per agent and prompt; the session is a
// pull-based message sequence with an explicit terminal condition: io.EOF on
// completion, ErrStreamTimeout when the bounded wait expires, or the
// runtime's own error. Rate-limited calls are retried with exponential
// backoff; authentication failures are typed and never retried. WithBreaker
// wraps a runtime in a circuit breaker so a failing runtime stops being
// hammered across a multi-agent fan-out.
package agent
