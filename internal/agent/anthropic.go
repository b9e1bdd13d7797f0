package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
	defaultMaxTokens    = 8192
)

// Anthropic implements Runtime over Anthropic's messages API. The call
// happens eagerly in CreateSession; the returned session replays the
// assistant messages and then completes.
type Anthropic struct {
	apiKey       string
	model        string
	apiURL       string
	systemPrompt string
	client       *http.Client
}

// AnthropicConfig carries the runtime configuration explicitly; the API key
// falls back to ANTHROPIC_API_KEY when unset.
type AnthropicConfig struct {
	APIKey       string
	Model        string
	APIURL       string
	SystemPrompt string
	Timeout      time.Duration
}

// NewAnthropic creates the Anthropic-backed runtime.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, &authError{message: "ANTHROPIC_API_KEY is not set"}
	}
	url := cfg.APIURL
	if url == "" {
		url = anthropicAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Anthropic{
		apiKey:       key,
		model:        cfg.Model,
		apiURL:       url,
		systemPrompt: cfg.SystemPrompt,
		client:       &http.Client{Timeout: timeout},
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

// CreateSession sends the prompt and buffers the response as a session.
func (a *Anthropic) CreateSession(ctx context.Context, agentID, prompt string) (Session, error) {
	body := anthropicRequest{
		Model:     a.model,
		MaxTokens: defaultMaxTokens,
		System:    a.systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var messages []Message
	err = retryWithBackoff(ctx, 3, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", a.apiURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", a.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

		httpResp, err := a.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if httpResp.StatusCode == 429 {
			return &rateLimitError{}
		}
		if httpResp.StatusCode == 401 || httpResp.StatusCode == 403 {
			return &authError{message: string(respBody)}
		}
		if httpResp.StatusCode != 200 {
			return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(respBody))
		}

		var result anthropicResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}

		messages = messages[:0]
		for _, block := range result.Content {
			if block.Type == "text" && block.Text != "" {
				messages = append(messages, Message{Role: "assistant", Content: block.Text})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &bufferedSession{agentID: agentID, messages: messages}, nil
}

// bufferedSession replays a fixed message list as a stream.
type bufferedSession struct {
	agentID  string
	messages []Message
	pos      int
}

func (s *bufferedSession) Next(ctx context.Context) (Message, error) {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Message{}, ErrStreamTimeout
		}
		return Message{}, err
	}
	if s.pos >= len(s.messages) {
		return Message{}, io.EOF
	}
	m := s.messages[s.pos]
	s.pos++
	return m, nil
}

func (s *bufferedSession) Close() error { return nil }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
	Usage   anthropicUsage   `json:"usage"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
