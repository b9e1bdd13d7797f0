package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// breakerRuntime wraps a Runtime in a circuit breaker so that a runtime that
// keeps failing trips open instead of being called for every agent in a
// fan-out.
type breakerRuntime struct {
	inner Runtime
	cb    *gobreaker.CircuitBreaker
}

// WithBreaker wraps rt in a circuit breaker.
func WithBreaker(rt Runtime) Runtime {
	settings := gobreaker.Settings{
		Name:        rt.Name(),
		MaxRequests: 3,
		Timeout:     30 * time.Second,
	}
	return &breakerRuntime{
		inner: rt,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *breakerRuntime) Name() string { return b.inner.Name() }

func (b *breakerRuntime) CreateSession(ctx context.Context, agentID, prompt string) (Session, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.CreateSession(ctx, agentID, prompt)
	})
	if err != nil {
		return nil, err
	}
	sess, ok := out.(Session)
	if !ok {
		return nil, fmt.Errorf("unexpected circuit breaker result type %T", out)
	}
	return sess, nil
}
