package agent

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/drsproject/drs/internal/cache"
)

// cachedRuntime serves sessions from the response cache when the same agent
// has already reviewed the same prompt with the same model, and records
// fresh sessions on completion.
type cachedRuntime struct {
	inner Runtime
	cache *cache.Cache
	model string
}

// WithCache wraps rt in a response cache keyed by agent, model, and prompt.
// A nil or disabled cache returns rt unchanged.
func WithCache(rt Runtime, c *cache.Cache, model string) Runtime {
	if c == nil || !c.Enabled() {
		return rt
	}
	return &cachedRuntime{inner: rt, cache: c, model: model}
}

func (r *cachedRuntime) Name() string { return r.inner.Name() }

func (r *cachedRuntime) CreateSession(ctx context.Context, agentID, prompt string) (Session, error) {
	key := cache.BuildCacheKey(agentID, r.model, prompt)
	if content, ok := r.cache.Get(key); ok {
		slog.Debug("cache hit", "agent", agentID)
		return &replaySession{content: content}, nil
	}
	sess, err := r.inner.CreateSession(ctx, agentID, prompt)
	if err != nil {
		return nil, err
	}
	return &recordingSession{inner: sess, key: key, cache: r.cache}, nil
}

// replaySession yields a single cached assistant message.
type replaySession struct {
	content string
	done    bool
}

func (s *replaySession) Next(ctx context.Context) (Message, error) {
	if s.done {
		return Message{}, io.EOF
	}
	s.done = true
	return Message{Role: "assistant", Content: s.content}, nil
}

func (s *replaySession) Close() error { return nil }

// recordingSession accumulates assistant output and writes it to the cache
// when the stream completes normally. Errors and timeouts leave no entry.
type recordingSession struct {
	inner Session
	key   string
	cache *cache.Cache
	buf   strings.Builder
}

func (s *recordingSession) Next(ctx context.Context) (Message, error) {
	msg, err := s.inner.Next(ctx)
	if err == io.EOF {
		if s.buf.Len() > 0 {
			if perr := s.cache.Put(s.key, s.buf.String()); perr != nil {
				slog.Debug("cache write failed", "error", perr)
			}
		}
		return msg, err
	}
	if err != nil {
		return msg, err
	}
	if msg.Role == "assistant" {
		s.buf.WriteString(msg.Content)
		s.buf.WriteString("\n")
	}
	return msg, nil
}

func (s *recordingSession) Close() error { return s.inner.Close() }
