package agent

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewAnthropic_RequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewAnthropic(AnthropicConfig{Model: "claude-sonnet-4-20250514"})
	if !IsAuthError(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
}

func TestAnthropic_SessionStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"hello"},{"type":"text","text":"world"}],"usage":{"input_tokens":1,"output_tokens":2}}`))
	}))
	defer srv.Close()

	rt, err := NewAnthropic(AnthropicConfig{APIKey: "test-key", Model: "m", APIURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	sess, err := rt.CreateSession(context.Background(), "security", "review this")
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	var contents []string
	for {
		msg, err := sess.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if msg.Role != "assistant" {
			t.Errorf("role = %q", msg.Role)
		}
		contents = append(contents, msg.Content)
	}
	if len(contents) != 2 || contents[0] != "hello" {
		t.Errorf("contents = %v", contents)
	}
}

func TestAnthropic_AuthErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(401)
		w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	rt, _ := NewAnthropic(AnthropicConfig{APIKey: "k", Model: "m", APIURL: srv.URL})
	_, err := rt.CreateSession(context.Background(), "a", "p")
	if !IsAuthError(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
	if calls != 1 {
		t.Errorf("auth failure was retried %d times", calls)
	}
}

func TestSession_TimeoutDistinctFromError(t *testing.T) {
	sess := &bufferedSession{messages: []Message{{Role: "assistant", Content: "x"}}}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := sess.Next(ctx)
	if !errors.Is(err, ErrStreamTimeout) {
		t.Fatalf("err = %v, want ErrStreamTimeout", err)
	}

	ctx2, cancel2 := context.WithCancel(context.Background())
	cancel2()
	_, err = sess.Next(ctx2)
	if errors.Is(err, ErrStreamTimeout) {
		t.Error("cancellation should not be reported as a timeout")
	}
}

func TestRetryWithBackoff_OnlyRateLimits(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), 2, func() error {
		attempts++
		return errors.New("permanent")
	})
	if err == nil || attempts != 1 {
		t.Errorf("permanent error retried: attempts=%d err=%v", attempts, err)
	}

	attempts = 0
	err = retryWithBackoff(context.Background(), 1, func() error {
		attempts++
		if attempts == 1 {
			return &rateLimitError{}
		}
		return nil
	})
	if err != nil || attempts != 2 {
		t.Errorf("rate limit not retried: attempts=%d err=%v", attempts, err)
	}
}

type failingRuntime struct{ calls int }

func (f *failingRuntime) Name() string { return "failing" }
func (f *failingRuntime) CreateSession(ctx context.Context, agentID, prompt string) (Session, error) {
	f.calls++
	return nil, errors.New("boom")
}

func TestWithBreaker_TripsOpen(t *testing.T) {
	inner := &failingRuntime{}
	rt := WithBreaker(inner)

	for i := 0; i < 10; i++ {
		_, _ = rt.CreateSession(context.Background(), "a", "p")
	}
	if inner.calls >= 10 {
		t.Errorf("breaker never opened: inner called %d times", inner.calls)
	}
}

func TestContextWindow(t *testing.T) {
	if ContextWindow("claude-sonnet-4-20250514") == 0 {
		t.Error("known model has no context window")
	}
	if ContextWindow("mystery-model") != 0 {
		t.Error("unknown model should report 0")
	}
}
