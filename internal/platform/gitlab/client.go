package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/drsproject/drs/internal/compress"
	"github.com/drsproject/drs/internal/platform"
	"github.com/drsproject/drs/internal/ratelimit"
)

const defaultBaseURL = "https://gitlab.com/api/v4"

// Options configures a client. Zero values fall back to the GITLAB_TOKEN and
// CI_API_V4_URL environment variables.
type Options struct {
	Token   string
	BaseURL string
	Limiter *ratelimit.Limiter
}

// Client is bound to a single merge request.
type Client struct {
	project string
	mrIID   int
	baseURL string
	token   string
	httpCli *http.Client
	limiter *ratelimit.Limiter
}

// DiffRefs is the SHA triple GitLab keys positioned discussions to.
type DiffRefs struct {
	BaseSHA  string `json:"base_sha"`
	HeadSHA  string `json:"head_sha"`
	StartSHA string `json:"start_sha"`
}

// NewClient creates a client for one merge request. project is the
// namespaced path, e.g. "group/repo".
func NewClient(project string, mrIID int, opts Options) (*Client, error) {
	token := opts.Token
	if token == "" {
		token = os.Getenv("GITLAB_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("GITLAB_TOKEN environment variable is not set")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("CI_API_V4_URL")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		project: project,
		mrIID:   mrIID,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpCli: &http.Client{Timeout: 60 * time.Second},
		limiter: opts.Limiter,
	}, nil
}

// Target identifies the merge request, e.g. "group/repo!7".
func (c *Client) Target() string {
	return fmt.Sprintf("%s!%d", c.project, c.mrIID)
}

func (c *Client) mrURL(suffix string) string {
	return fmt.Sprintf("%s/projects/%s/merge_requests/%d%s",
		c.baseURL, url.PathEscape(c.project), c.mrIID, suffix)
}

func (c *Client) do(ctx context.Context, method, reqURL string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Get(c.Target()).Wait(ctx); err != nil {
			return err
		}
	}

	var payload io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, payload)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
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
		return fmt.Errorf("MR !%d not found in %s", c.mrIID, c.project)
	}
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return fmt.Errorf("authentication failed: %s", string(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GitLab API error (status %d): %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}

type mrChange struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	Diff        string `json:"diff"`
	DeletedFile bool   `json:"deleted_file"`
}

type mrChanges struct {
	Changes  []mrChange `json:"changes"`
	DiffRefs DiffRefs   `json:"diff_refs"`
}

// GetChanges fetches the changed files with per-file diffs plus the SHA
// triple inline discussions must be keyed to.
func (c *Client) GetChanges(ctx context.Context) ([]compress.FileWithDiff, DiffRefs, error) {
	var changes mrChanges
	if err := c.do(ctx, "GET", c.mrURL("/changes"), nil, &changes); err != nil {
		return nil, DiffRefs{}, fmt.Errorf("fetching MR changes: %w", err)
	}

	files := make([]compress.FileWithDiff, 0, len(changes.Changes))
	for _, ch := range changes.Changes {
		if ch.DeletedFile {
			continue
		}
		files = append(files, compress.FileWithDiff{Filename: ch.NewPath, Patch: ch.Diff})
	}
	return files, changes.DiffRefs, nil
}

// Position returns a PositionFunc producing range positions keyed to refs.
func Position(refs DiffRefs) platform.PositionFunc {
	return func(path string, line int) platform.Position {
		return platform.RangePosition{
			Path:     path,
			Line:     line,
			BaseSHA:  refs.BaseSHA,
			HeadSHA:  refs.HeadSHA,
			StartSHA: refs.StartSHA,
		}
	}
}

// GetComments returns the MR's notes.
func (c *Client) GetComments(ctx context.Context) ([]platform.Comment, error) {
	var notes []platform.Comment
	if err := c.do(ctx, "GET", c.mrURL("/notes?per_page=100"), nil, &notes); err != nil {
		return nil, fmt.Errorf("fetching notes: %w", err)
	}
	return notes, nil
}

// CreateComment posts a top-level note on the MR.
func (c *Client) CreateComment(ctx context.Context, body string) error {
	in := map[string]string{"body": body}
	if err := c.do(ctx, "POST", c.mrURL("/notes"), in, nil); err != nil {
		return fmt.Errorf("creating note: %w", err)
	}
	return nil
}

// UpdateComment replaces the body of an existing note.
func (c *Client) UpdateComment(ctx context.Context, id int64, body string) error {
	in := map[string]string{"body": body}
	if err := c.do(ctx, "PUT", c.mrURL(fmt.Sprintf("/notes/%d", id)), in, nil); err != nil {
		return fmt.Errorf("updating note %d: %w", id, err)
	}
	return nil
}

type discussionPosition struct {
	PositionType string `json:"position_type"`
	BaseSHA      string `json:"base_sha"`
	HeadSHA      string `json:"head_sha"`
	StartSHA     string `json:"start_sha"`
	NewPath      string `json:"new_path"`
	NewLine      int    `json:"new_line"`
}

type discussionRequest struct {
	Body     string             `json:"body"`
	Position discussionPosition `json:"position"`
}

// CreateInlineComment opens a positioned discussion on the MR diff.
func (c *Client) CreateInlineComment(ctx context.Context, comment platform.InlineComment) error {
	pos, ok := comment.Position.(platform.RangePosition)
	if !ok {
		return fmt.Errorf("gitlab requires a range position, got %T", comment.Position)
	}
	in := discussionRequest{
		Body: comment.Body,
		Position: discussionPosition{
			PositionType: "text",
			BaseSHA:      pos.BaseSHA,
			HeadSHA:      pos.HeadSHA,
			StartSHA:     pos.StartSHA,
			NewPath:      pos.Path,
			NewLine:      pos.Line,
		},
	}
	if err := c.do(ctx, "POST", c.mrURL("/discussions"), in, nil); err != nil {
		return fmt.Errorf("creating discussion: %w", err)
	}
	return nil
}

// CreateBulkInlineComments is unsupported; GitLab has no bulk discussion
// endpoint.
func (c *Client) CreateBulkInlineComments(ctx context.Context, comments []platform.InlineComment) error {
	return platform.ErrBulkUnsupported
}

// AddLabels attaches labels to the MR.
func (c *Client) AddLabels(ctx context.Context, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	in := map[string]string{"add_labels": strings.Join(labels, ",")}
	if err := c.do(ctx, "PUT", c.mrURL(""), in, nil); err != nil {
		return fmt.Errorf("adding labels: %w", err)
	}
	return nil
}
