package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/drsproject/drs/internal/compress"
	"github.com/drsproject/drs/internal/platform"
	"github.com/drsproject/drs/internal/ratelimit"
)

const defaultAPIURL = "https://api.github.com"

// tokenSource yields the bearer token for each request. Static tokens and
// GitHub App installations both satisfy it.
type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

type staticToken string

func (t staticToken) Token(ctx context.Context) (string, error) { return string(t), nil }

// Options configures a client. Zero values fall back to the GITHUB_TOKEN and
// GITHUB_API_URL environment variables.
type Options struct {
	Token   string
	APIURL  string
	App     *AppAuth
	Limiter *ratelimit.Limiter
}

// Client is bound to a single pull request.
type Client struct {
	owner    string
	repo     string
	prNumber int
	apiURL   string
	auth     tokenSource
	httpCli  *http.Client
	limiter  *ratelimit.Limiter
}

// NewClient creates a client for one pull request. Without app credentials
// it requires a token, from Options or the GITHUB_TOKEN env var.
func NewClient(owner, repo string, prNumber int, opts Options) (*Client, error) {
	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = os.Getenv("GITHUB_API_URL")
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	apiURL = strings.TrimRight(apiURL, "/")

	var auth tokenSource
	switch {
	case opts.App != nil:
		auth = opts.App
	default:
		token := opts.Token
		if token == "" {
			token = os.Getenv("GITHUB_TOKEN")
		}
		if token == "" {
			return nil, fmt.Errorf("GITHUB_TOKEN environment variable is not set")
		}
		auth = staticToken(token)
	}

	return &Client{
		owner:    owner,
		repo:     repo,
		prNumber: prNumber,
		apiURL:   apiURL,
		auth:     auth,
		httpCli:  &http.Client{Timeout: 60 * time.Second},
		limiter:  opts.Limiter,
	}, nil
}

// Target identifies the pull request, e.g. "owner/repo#42".
func (c *Client) Target() string {
	return fmt.Sprintf("%s/%s#%d", c.owner, c.repo, c.prNumber)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Get(c.Target()).Wait(ctx)
}

// do issues one authenticated request and decodes a JSON response into out
// when out is non-nil.
func (c *Client) do(ctx context.Context, method, url, accept string, in, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	var payload io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	token, err := c.auth.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", accept)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == 404 {
		return fmt.Errorf("PR #%d not found in %s/%s", c.prNumber, c.owner, c.repo)
	}
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return fmt.Errorf("authentication failed: %s", string(body))
	}
	if resp.StatusCode == 422 {
		return fmt.Errorf("GitHub rejected request (422): %s", string(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GitHub API error (status %d): %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if s, ok := out.(*string); ok {
			*s = string(body)
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}

// GetDiff fetches the unified diff of the pull request.
func (c *Client) GetDiff(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.apiURL, c.owner, c.repo, c.prNumber)
	var diff string
	if err := c.do(ctx, "GET", url, "application/vnd.github.v3.diff", nil, &diff); err != nil {
		return "", fmt.Errorf("fetching PR diff: %w", err)
	}
	return diff, nil
}

type prFile struct {
	Filename string `json:"filename"`
	Patch    string `json:"patch"`
}

// GetFiles fetches the changed files with their per-file patches. Binary
// files come back without a patch.
func (c *Client) GetFiles(ctx context.Context) ([]compress.FileWithDiff, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files?per_page=100", c.apiURL, c.owner, c.repo, c.prNumber)
	var files []prFile
	if err := c.do(ctx, "GET", url, "application/vnd.github.v3+json", nil, &files); err != nil {
		return nil, fmt.Errorf("fetching PR files: %w", err)
	}

	out := make([]compress.FileWithDiff, len(files))
	for i, f := range files {
		out[i] = compress.FileWithDiff{Filename: f.Filename, Patch: f.Patch}
	}
	return out, nil
}

// HeadSHA fetches the SHA of the head commit, which inline comments must be
// keyed to.
func (c *Client) HeadSHA(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.apiURL, c.owner, c.repo, c.prNumber)
	var pr struct {
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
	}
	if err := c.do(ctx, "GET", url, "application/vnd.github.v3+json", nil, &pr); err != nil {
		return "", fmt.Errorf("fetching PR head: %w", err)
	}
	return pr.Head.SHA, nil
}

// Position returns a PositionFunc producing commit positions keyed to
// headSHA.
func Position(headSHA string) platform.PositionFunc {
	return func(path string, line int) platform.Position {
		return platform.CommitPosition{Path: path, Line: line, CommitSHA: headSHA}
	}
}

// GetComments merges the PR's issue comments and review comments, since a
// previous run's markers may live in either.
func (c *Client) GetComments(ctx context.Context) ([]platform.Comment, error) {
	var all []platform.Comment
	for _, url := range []string{
		fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments?per_page=100", c.apiURL, c.owner, c.repo, c.prNumber),
		fmt.Sprintf("%s/repos/%s/%s/pulls/%d/comments?per_page=100", c.apiURL, c.owner, c.repo, c.prNumber),
	} {
		var page []platform.Comment
		if err := c.do(ctx, "GET", url, "application/vnd.github.v3+json", nil, &page); err != nil {
			return nil, fmt.Errorf("fetching comments: %w", err)
		}
		all = append(all, page...)
	}
	return all, nil
}

// CreateComment posts a top-level issue comment on the PR.
func (c *Client) CreateComment(ctx context.Context, body string) error {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.apiURL, c.owner, c.repo, c.prNumber)
	in := map[string]string{"body": body}
	if err := c.do(ctx, "POST", url, "application/vnd.github.v3+json", in, nil); err != nil {
		return fmt.Errorf("creating comment: %w", err)
	}
	return nil
}

// UpdateComment replaces the body of an existing issue comment.
func (c *Client) UpdateComment(ctx context.Context, id int64, body string) error {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/comments/%d", c.apiURL, c.owner, c.repo, id)
	in := map[string]string{"body": body}
	if err := c.do(ctx, "PATCH", url, "application/vnd.github.v3+json", in, nil); err != nil {
		return fmt.Errorf("updating comment %d: %w", id, err)
	}
	return nil
}

type reviewComment struct {
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Side     string `json:"side"`
	CommitID string `json:"commit_id,omitempty"`
	Body     string `json:"body"`
}

// CreateInlineComment posts one review comment at a diff position.
func (c *Client) CreateInlineComment(ctx context.Context, comment platform.InlineComment) error {
	pos, ok := comment.Position.(platform.CommitPosition)
	if !ok {
		return fmt.Errorf("github requires a commit position, got %T", comment.Position)
	}
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/comments", c.apiURL, c.owner, c.repo, c.prNumber)
	in := reviewComment{
		Path:     pos.Path,
		Line:     pos.Line,
		Side:     "RIGHT",
		CommitID: pos.CommitSHA,
		Body:     comment.Body,
	}
	if err := c.do(ctx, "POST", url, "application/vnd.github.v3+json", in, nil); err != nil {
		return fmt.Errorf("creating inline comment: %w", err)
	}
	return nil
}

type reviewRequest struct {
	CommitID string          `json:"commit_id,omitempty"`
	Body     string          `json:"body"`
	Event    string          `json:"event"`
	Comments []reviewComment `json:"comments"`
}

// CreateBulkInlineComments posts all comments as one pull request review.
func (c *Client) CreateBulkInlineComments(ctx context.Context, comments []platform.InlineComment) error {
	req := reviewRequest{Event: "COMMENT"}
	for _, cm := range comments {
		pos, ok := cm.Position.(platform.CommitPosition)
		if !ok {
			return fmt.Errorf("github requires a commit position, got %T", cm.Position)
		}
		if req.CommitID == "" {
			req.CommitID = pos.CommitSHA
		}
		req.Comments = append(req.Comments, reviewComment{
			Path: pos.Path,
			Line: pos.Line,
			Side: "RIGHT",
			Body: cm.Body,
		})
	}
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/reviews", c.apiURL, c.owner, c.repo, c.prNumber)
	if err := c.do(ctx, "POST", url, "application/vnd.github.v3+json", req, nil); err != nil {
		return fmt.Errorf("posting review: %w", err)
	}
	return nil
}

// AddLabels attaches labels to the PR.
func (c *Client) AddLabels(ctx context.Context, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/labels", c.apiURL, c.owner, c.repo, c.prNumber)
	in := map[string][]string{"labels": labels}
	if err := c.do(ctx, "POST", url, "application/vnd.github.v3+json", in, nil); err != nil {
		return fmt.Errorf("adding labels: %w", err)
	}
	return nil
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/.\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/.\s]+)`)
)

// DetectRepo parses owner/repo from the git remote origin URL.
func DetectRepo() (owner, repo string, err error) {
	out, err := exec.Command("git", "remote", "get-url", "origin").Output()
	if err != nil {
		return "", "", fmt.Errorf("cannot detect repo: git remote get-url origin failed: %w", err)
	}
	return ParseRemoteURL(strings.TrimSpace(string(out)))
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(url string) (owner, repo string, err error) {
	url = strings.TrimSuffix(url, ".git")

	if m := httpsRemoteRe.FindStringSubmatch(url); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(url); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", url)
}
