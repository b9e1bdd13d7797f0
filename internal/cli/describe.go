package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/drsproject/drs/internal/agent"
	"github.com/drsproject/drs/internal/agentout"
	"github.com/drsproject/drs/internal/compress"
	"github.com/drsproject/drs/internal/config"
	"github.com/drsproject/drs/internal/gitctx"
	"github.com/drsproject/drs/internal/platform"
	"github.com/drsproject/drs/internal/platform/gitlab"
	"github.com/drsproject/drs/internal/redact"
)

const descriptionMarker = "<!-- drs-description -->"

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Generate a change description",
	Long:  "Generate a structured title, summary, and walkthrough for a set of changes, optionally posting it to the pull/merge request.",
}

// prepareFiles applies redaction and budget compression ahead of any agent
// call.
func prepareFiles(files []compress.FileWithDiff, cfg config.Config) compress.Result {
	if cfg.Privacy.RedactSecrets && !flagNoRedact {
		files = redact.Files(files, cfg.Privacy.RedactPaths)
	}
	budget := compress.ResolveBudget(cfg.Budget.Budget(), agent.ContextWindow(cfg.Model))
	return compress.Compress(files, budget)
}

// buildDescribePrompt renders the file set into the describe agent's message.
func buildDescribePrompt(files []compress.FileWithDiff) string {
	var b strings.Builder
	b.WriteString("Describe the following changes. Respond with a JSON object ")
	b.WriteString(`containing "type", "title", and "summary" fields, plus optional `)
	b.WriteString(`"walkthrough", "labels", and "recommendations".` + "\n\n")
	for _, f := range files {
		fmt.Fprintf(&b, "### %s\n\n```diff\n%s\n```\n\n", f.Filename, f.Patch)
	}
	return b.String()
}

// runDescribeAgent drives a single describe session to completion and
// returns the validated description.
func runDescribeAgent(parent context.Context, rt agent.Runtime, files []compress.FileWithDiff, timeout time.Duration) (*agentout.Description, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	sess, err := rt.CreateSession(ctx, "describe", buildDescribePrompt(files))
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
		res, err := agentout.ParseDescription(msg.Content)
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
		workDir, werr := os.Getwd()
		if werr != nil {
			workDir = "."
		}
		parsed, err = agentout.ResolvePointer(*parsed.Pointer, workDir, agentout.OutputTypeDescribe)
		if err != nil {
			return nil, err
		}
	}
	return parsed.Description, nil
}

// renderDescription formats a description as markdown.
func renderDescription(d *agentout.Description) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", d.Title)
	for _, s := range d.Summary {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	if len(d.Walkthrough) > 0 {
		b.WriteString("\n### Walkthrough\n\n")
		b.WriteString("| File | Change | Summary |\n")
		b.WriteString("|------|--------|--------|\n")
		for _, w := range d.Walkthrough {
			fmt.Fprintf(&b, "| `%s` | %s | %s |\n", w.File, w.ChangeType, w.Title)
		}
	}
	if len(d.Recommendations) > 0 {
		b.WriteString("\n### Recommendations\n\n")
		for _, r := range d.Recommendations {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return b.String()
}

// describe fetches nothing itself; callers supply the file set and an
// optional API for posting.
func describe(ctx context.Context, files []compress.FileWithDiff, cfg config.Config, api platform.API) error {
	comp := prepareFiles(files, cfg)

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	desc, err := runDescribeAgent(ctx, rt, comp.Files, time.Duration(cfg.Dispatch.TimeoutSeconds)*time.Second)
	if err != nil {
		return err
	}

	body := renderDescription(desc)
	fmt.Fprintln(os.Stdout, body)

	if api == nil || !flagPost {
		return nil
	}
	if err := upsertDescription(ctx, api, body); err != nil {
		return err
	}
	if len(desc.Labels) > 0 {
		if err := api.AddLabels(ctx, desc.Labels); err != nil {
			return fmt.Errorf("adding labels: %w", err)
		}
	}
	return nil
}

// upsertDescription updates the existing description comment when one is
// present, otherwise creates it.
func upsertDescription(ctx context.Context, api platform.API, body string) error {
	body = descriptionMarker + "\n" + body
	existing, err := api.GetComments(ctx)
	if err != nil {
		return fmt.Errorf("listing comments: %w", err)
	}
	for _, c := range existing {
		if strings.Contains(c.Body, descriptionMarker) {
			return api.UpdateComment(ctx, c.ID, body)
		}
	}
	return api.CreateComment(ctx, body)
}

var describeLocalCmd = &cobra.Command{
	Use:   "local",
	Short: "Describe all local changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		diffRes, err := gitctx.Local(buildDiffOpts(cfg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		if err := describe(context.Background(), diffRes.FileDiffs(), cfg, nil); err != nil {
			reportError(err)
		}
		return nil
	},
}

var describePRCmd = &cobra.Command{
	Use:   "pr <owner/repo#N | N>",
	Short: "Describe a GitHub pull request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		owner, repo, number, err := parseGitHubTarget(args[0])
		if err != nil {
			return err
		}
		client, err := githubClient(cfg, owner, repo, number)
		if err != nil {
			reportError(err)
			return nil
		}
		ctx := context.Background()
		files, err := client.GetFiles(ctx)
		if err != nil {
			reportError(err)
			return nil
		}
		if err := describe(ctx, files, cfg, client); err != nil {
			reportError(err)
		}
		return nil
	},
}

var describeMRCmd = &cobra.Command{
	Use:   "mr [project!N]",
	Short: "Describe a GitLab merge request (auto-detected in CI)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		target := ""
		if len(args) == 1 {
			target = args[0]
		}
		project, iid, err := parseGitLabTarget(target)
		if err != nil {
			return err
		}
		client, err := gitlab.NewClient(project, iid, gitlab.Options{
			BaseURL: cfg.GitLab.BaseURL,
			Limiter: apiLimiter,
		})
		if err != nil {
			reportError(err)
			return nil
		}
		ctx := context.Background()
		files, _, err := client.GetChanges(ctx)
		if err != nil {
			reportError(err)
			return nil
		}
		if err := describe(ctx, files, cfg, client); err != nil {
			reportError(err)
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{describeLocalCmd, describePRCmd, describeMRCmd} {
		addReviewFlags(cmd)
		describeCmd.AddCommand(cmd)
	}
	describePRCmd.Flags().BoolVar(&flagPost, "post", false, "Post the description to the pull/merge request")
	describeMRCmd.Flags().BoolVar(&flagPost, "post", false, "Post the description to the pull/merge request")
}
