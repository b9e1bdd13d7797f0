package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/drsproject/drs/internal/agent"
	"github.com/drsproject/drs/internal/agentout"
	"github.com/drsproject/drs/internal/compress"
	"github.com/drsproject/drs/internal/review"
)

const (
	// defaultMaxConcurrency limits parallel agent sessions.
	defaultMaxConcurrency = 4
	defaultSessionTimeout = 5 * time.Minute
)

// Options controls a dispatch run.
type Options struct {
	// Agents are the reviewer identities to run, e.g. "security", "quality".
	Agents []string
	// WorkDir anchors side-channel output resolution.
	WorkDir string
	// SessionTimeout bounds each agent session end to end.
	SessionTimeout time.Duration
	// MaxConcurrency caps parallel sessions; zero means the default.
	MaxConcurrency int
}

// Result is the joined outcome of all agent dispatches.
type Result struct {
	Issues   []review.Issue
	Summary  review.Summary
	Warnings []string
	AgentMs  int64
}

// Run dispatches one session per agent over the compressed file set and
// merges the validated issues. Individual agent failures never abort the
// run.
func Run(ctx context.Context, rt agent.Runtime, files []compress.FileWithDiff, opts Options) *Result {
	if len(opts.Agents) == 0 {
		opts.Agents = []string{"review"}
	}
	concurrency := opts.MaxConcurrency
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrency
	}
	timeout := opts.SessionTimeout
	if timeout <= 0 {
		timeout = defaultSessionTimeout
	}

	prompt := BuildPrompt(files)

	type agentResult struct {
		issues  []review.Issue
		warning string
	}

	results := make([]agentResult, len(opts.Agents))
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	var totalMs int64
	var mu sync.Mutex

	for i, agentID := range opts.Agents {
		wg.Add(1)
		go func(i int, agentID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			issues, err := runAgent(ctx, rt, agentID, prompt, opts.WorkDir, timeout)
			elapsed := time.Since(start).Milliseconds()

			mu.Lock()
			totalMs += elapsed
			mu.Unlock()

			if err != nil {
				slog.Warn("agent dispatch degraded", "agent", agentID, "err", err)
				results[i] = agentResult{warning: fmt.Sprintf("agent %s: %v", agentID, err)}
				return
			}
			results[i] = agentResult{issues: issues}
		}(i, agentID)
	}
	wg.Wait()

	res := &Result{AgentMs: totalMs}
	for _, r := range results {
		if r.warning != "" {
			res.Warnings = append(res.Warnings, r.warning)
		}
		res.Issues = append(res.Issues, r.issues...)
	}
	res.Summary = review.ComputeSummary(res.Issues, len(files))
	return res
}

// runAgent drives one session to completion and returns its issues with the
// agent field stamped.
func runAgent(parent context.Context, rt agent.Runtime, agentID, prompt, workDir string, timeout time.Duration) ([]review.Issue, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	sess, err := rt.CreateSession(ctx, agentID, prompt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	defer sess.Close()

	var parsed *agentout.Result
	var lastParseErr error
	for {
		msg, err := sess.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, agent.ErrStreamTimeout) {
				return nil, err
			}
			return nil, fmt.Errorf("reading stream: %w", err)
		}
		if msg.Role != "assistant" || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		res, err := agentout.ParseReview(msg.Content)
		if err != nil {
			lastParseErr = err
			continue
		}
		parsed = res
	}

	if parsed == nil {
		if lastParseErr != nil {
			return nil, lastParseErr
		}
		return nil, fmt.Errorf("agent produced no parseable output")
	}

	if parsed.Kind == agentout.KindPointer {
		parsed, err = agentout.ResolvePointer(*parsed.Pointer, workDir, agentout.OutputTypeReview)
		if err != nil {
			return nil, err
		}
	}

	issues := parsed.Issues
	for i := range issues {
		if issues[i].Agent == "" {
			issues[i].Agent = agentID
		}
	}
	return issues, nil
}

// BuildPrompt renders the compressed file set into the message an agent
// receives.
func BuildPrompt(files []compress.FileWithDiff) string {
	var b strings.Builder
	b.WriteString("Review the following changes and respond with a JSON object ")
	b.WriteString(`containing an "issues" array.` + "\n\n")
	for _, f := range files {
		if f.Patch == "" {
			continue
		}
		b.WriteString(compress.RenderFile(f))
		b.WriteString("\n\n")
	}
	return b.String()
}
