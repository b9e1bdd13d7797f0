package cli

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/drsproject/drs/internal/agent"
	"github.com/drsproject/drs/internal/cache"
	"github.com/drsproject/drs/internal/compress"
	"github.com/drsproject/drs/internal/config"
	"github.com/drsproject/drs/internal/diff"
	"github.com/drsproject/drs/internal/dispatch"
	"github.com/drsproject/drs/internal/gitctx"
	"github.com/drsproject/drs/internal/output"
	"github.com/drsproject/drs/internal/platform"
	"github.com/drsproject/drs/internal/platform/github"
	"github.com/drsproject/drs/internal/platform/gitlab"
	"github.com/drsproject/drs/internal/ratelimit"
	"github.com/drsproject/drs/internal/review"
)

// Shared review flags
var (
	flagPaths         string
	flagExclude       string
	flagContextLines  int
	flagMaxDiffBytes  int
	flagModel         string
	flagAgents        string
	flagFormat        string
	flagOut           string
	flagFailOn        string
	flagPost          bool
	flagPostThreshold string
	flagNoRedact      bool
	flagNoCache       bool
)

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagPaths, "paths", "", "Include file path globs (comma-separated)")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "Exclude file path globs (comma-separated)")
	cmd.Flags().IntVar(&flagContextLines, "context-lines", 0, "Number of context lines in diff")
	cmd.Flags().IntVar(&flagMaxDiffBytes, "max-diff-bytes", 0, "Maximum diff size in bytes")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagAgents, "agents", "", "Review agents to run (comma-separated)")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (auto, text, json, markdown, sarif)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "", "Fail on severity threshold (none, LOW, MEDIUM, HIGH, CRITICAL)")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the response cache")
}

func addPostFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&flagPost, "post", false, "Post findings back to the pull/merge request")
	cmd.Flags().StringVar(&flagPostThreshold, "post-threshold", "", "Minimum severity for inline comments (LOW, MEDIUM, HIGH, CRITICAL)")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagAgents != "" {
		m["agents"] = flagAgents
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagFailOn != "" {
		m["failOn"] = flagFailOn
	}
	if flagPostThreshold != "" {
		m["postThreshold"] = flagPostThreshold
	}
	if flagContextLines > 0 {
		m["contextLines"] = fmt.Sprintf("%d", flagContextLines)
	}
	if flagMaxDiffBytes > 0 {
		m["maxDiffBytes"] = fmt.Sprintf("%d", flagMaxDiffBytes)
	}
	return m
}

func buildDiffOpts(cfg config.Config) gitctx.DiffOptions {
	opts := gitctx.DiffOptions{
		ContextLines: cfg.ContextLines,
		MaxDiffBytes: cfg.MaxDiffBytes,
		Include:      cfg.Include,
		Exclude:      cfg.Exclude,
	}
	if flagPaths != "" {
		opts.Include = splitComma(flagPaths)
	}
	if flagExclude != "" {
		opts.Exclude = append(opts.Exclude, splitComma(flagExclude)...)
	}
	return opts
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// resolveFormat maps "auto" to json inside CI and text everywhere else.
func resolveFormat(format string) string {
	if format != "auto" && format != "" {
		return format
	}
	if gitctx.DetectCI().IsCI {
		return "json"
	}
	return "text"
}

// buildRuntime assembles the agent runtime stack: Anthropic transport,
// circuit breaker, then the response cache on the outside so cache hits
// never touch the breaker.
func buildRuntime(cfg config.Config) (agent.Runtime, error) {
	anthropic, err := agent.NewAnthropic(agent.AnthropicConfig{Model: cfg.Model})
	if err != nil {
		return nil, err
	}
	rt := agent.WithBreaker(anthropic)
	if cfg.Cache.Enabled && !flagNoCache {
		c, err := cache.New(true, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cache unavailable: %v\n", err)
		} else {
			rt = agent.WithCache(rt, c, cfg.Model)
		}
	}
	return rt, nil
}

// buildReport runs the full pipeline over an already-gathered file set:
// redaction, budget compression, agent dispatch, and report assembly.
func buildReport(ctx context.Context, files []compress.FileWithDiff, mode string, gitMs int64, cfg config.Config) (*review.Report, error) {
	start := time.Now()

	if flagNoRedact {
		fmt.Fprintln(os.Stderr, "WARNING: secret redaction is disabled")
	}
	comp := prepareFiles(files, cfg)

	rt, err := buildRuntime(cfg)
	if err != nil {
		return nil, err
	}

	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}
	res := dispatch.Run(ctx, rt, comp.Files, dispatch.Options{
		Agents:         cfg.Agents,
		WorkDir:        workDir,
		SessionTimeout: time.Duration(cfg.Dispatch.TimeoutSeconds) * time.Second,
		MaxConcurrency: cfg.Dispatch.MaxConcurrency,
	})

	review.SortIssues(res.Issues)
	return &review.Report{
		Tool:      "drs",
		Version:   version,
		RunID:     review.NewRunID(),
		Mode:      mode,
		Timestamp: time.Now().UTC(),
		Summary:   res.Summary,
		Issues:    res.Issues,
		Omitted:   comp.Omitted,
		Warnings:  res.Warnings,
		Timing: review.Timing{
			GitMs:   gitMs,
			AgentMs: res.AgentMs,
			TotalMs: gitMs + time.Since(start).Milliseconds(),
		},
	}, nil
}

// finishReview writes the report and applies the fail-on threshold.
func finishReview(report *review.Report, cfg config.Config) {
	if err := output.WriteReport(report, resolveFormat(cfg.Format), flagOut); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	if cfg.FailOn != "" && !strings.EqualFold(cfg.FailOn, "none") && len(report.Issues) > 0 {
		threshold := review.Severity(strings.ToUpper(cfg.FailOn))
		if !review.ValidSeverity(threshold) {
			fmt.Fprintf(os.Stderr, "Warning: ignoring invalid fail-on threshold %q\n", cfg.FailOn)
			return
		}
		if review.MeetsThreshold(review.HighestSeverity(report.Issues), threshold) {
			exitCode = ExitFindings
		}
	}
}

// runGitReview drives the pipeline for a locally gathered diff.
func runGitReview(diffRes gitctx.DiffResult, gitMs int64, cfg config.Config) {
	report, err := buildReport(context.Background(), diffRes.FileDiffs(), diffRes.Mode, gitMs, cfg)
	if err != nil {
		reportError(err)
		return
	}
	finishReview(report, cfg)
}

func reportError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if agent.IsAuthError(err) {
		exitCode = ExitAuthError
		return
	}
	exitCode = ExitRuntimeError
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review code changes",
	Long:  "Review code changes with review agents. Use subcommands to specify what to review.",
}

func gitSubcommand(use, short string, gather func(gitctx.DiffOptions) (gitctx.DiffResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(buildOverrides())
			if err != nil {
				return err
			}
			gitStart := time.Now()
			diffRes, err := gather(buildDiffOpts(cfg))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				exitCode = ExitRuntimeError
				return nil
			}
			runGitReview(diffRes, time.Since(gitStart).Milliseconds(), cfg)
			return nil
		},
	}
}

var reviewLocalCmd = gitSubcommand("local", "Review all local changes (staged, unstaged, and untracked)", gitctx.Local)
var reviewStagedCmd = gitSubcommand("staged", "Review staged changes (index vs HEAD)", gitctx.Staged)
var reviewUnstagedCmd = gitSubcommand("unstaged", "Review unstaged changes (working tree vs index)", gitctx.Unstaged)

var flagMergeBase bool

var reviewRangeCmd = &cobra.Command{
	Use:   "range <revRange>",
	Short: "Review a revision range (e.g., origin/main..HEAD)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		gitStart := time.Now()
		diffRes, err := gitctx.Range(args[0], flagMergeBase, buildDiffOpts(cfg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		runGitReview(diffRes, time.Since(gitStart).Milliseconds(), cfg)
		return nil
	},
}

var ghTargetRe = regexp.MustCompile(`^([^/#]+)/([^/#]+)#(\d+)$`)

// parseGitHubTarget accepts "owner/repo#123" or a bare PR number (repo
// detected from the origin remote).
func parseGitHubTarget(arg string) (owner, repo string, number int, err error) {
	if m := ghTargetRe.FindStringSubmatch(arg); m != nil {
		n, _ := strconv.Atoi(m[3])
		return m[1], m[2], n, nil
	}
	n, convErr := strconv.Atoi(arg)
	if convErr != nil || n <= 0 {
		return "", "", 0, fmt.Errorf("invalid pull request target %q (want owner/repo#N or a PR number)", arg)
	}
	owner, repo, err = github.DetectRepo()
	if err != nil {
		return "", "", 0, err
	}
	return owner, repo, n, nil
}

var glTargetRe = regexp.MustCompile(`^(.+)!(\d+)$`)

// parseGitLabTarget accepts "group/project!7". An empty target falls back to
// the GitLab CI merge request environment.
func parseGitLabTarget(arg string) (project string, iid int, err error) {
	if arg != "" {
		m := glTargetRe.FindStringSubmatch(arg)
		if m == nil {
			return "", 0, fmt.Errorf("invalid merge request target %q (want project!N)", arg)
		}
		n, _ := strconv.Atoi(m[2])
		return m[1], n, nil
	}
	ci := gitctx.DetectCI()
	if !ci.IsMR || ci.ProjectPath == "" || ci.MRIID == "" {
		return "", 0, fmt.Errorf("no merge request target given and none detected from CI environment")
	}
	n, convErr := strconv.Atoi(ci.MRIID)
	if convErr != nil {
		return "", 0, fmt.Errorf("invalid CI merge request iid %q", ci.MRIID)
	}
	return ci.ProjectPath, n, nil
}

// lineValidatorFor parses the per-file patches back into structured diffs so
// inline comments can be checked against commentable lines.
func lineValidatorFor(files []compress.FileWithDiff) *diff.LineValidator {
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", f.Filename, f.Filename)
		b.WriteString(f.Patch)
		if !strings.HasSuffix(f.Patch, "\n") {
			b.WriteString("\n")
		}
	}
	return diff.NewLineValidator(diff.Parse(b.String()))
}

func postThreshold(cfg config.Config) (review.Severity, error) {
	s := review.Severity(strings.ToUpper(cfg.PostThreshold))
	if !review.ValidSeverity(s) {
		return "", fmt.Errorf("invalid post threshold %q", cfg.PostThreshold)
	}
	return s, nil
}

// postFindings publishes the report through the platform poster and prints
// what happened to stderr.
func postFindings(ctx context.Context, api platform.API, position platform.PositionFunc, files []compress.FileWithDiff, report *review.Report, cfg config.Config) error {
	threshold, err := postThreshold(cfg)
	if err != nil {
		return err
	}
	poster := platform.NewPoster(api, lineValidatorFor(files), position, threshold)
	res, err := poster.Post(ctx, report)
	if res != nil {
		fmt.Fprintf(os.Stderr, "Posted %d inline comments (%d duplicates, %d below threshold, %d off-diff, %d failed)\n",
			res.Posted, res.SkippedDuplicate, res.SkippedThreshold, res.SkippedLine+res.SkippedPosition, res.FailedInline)
	}
	return err
}

// apiLimiter throttles all platform API calls, keyed per target.
var apiLimiter = ratelimit.New(5, 10)

func githubClient(cfg config.Config, owner, repo string, number int) (*github.Client, error) {
	opts := github.Options{
		APIURL:  cfg.GitHub.APIURL,
		Limiter: apiLimiter,
	}
	if cfg.GitHub.AppID != "" {
		app, err := github.NewAppAuth(cfg.GitHub.AppID, cfg.GitHub.InstallationID, cfg.GitHub.PrivateKeyPath, cfg.GitHub.APIURL)
		if err != nil {
			return nil, err
		}
		opts.App = app
	}
	return github.NewClient(owner, repo, number, opts)
}

var reviewPRCmd = &cobra.Command{
	Use:   "pr <owner/repo#N | N>",
	Short: "Review a GitHub pull request",
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
		fetchStart := time.Now()
		files, err := client.GetFiles(ctx)
		if err != nil {
			reportError(err)
			return nil
		}
		fetchMs := time.Since(fetchStart).Milliseconds()

		report, err := buildReport(ctx, files, "pr", fetchMs, cfg)
		if err != nil {
			reportError(err)
			return nil
		}
		finishReview(report, cfg)

		if flagPost {
			headSHA, err := client.HeadSHA(ctx)
			if err != nil {
				reportError(err)
				return nil
			}
			if err := postFindings(ctx, client, github.Position(headSHA), files, report, cfg); err != nil {
				reportError(err)
			}
		}
		return nil
	},
}

var reviewMRCmd = &cobra.Command{
	Use:   "mr [project!N]",
	Short: "Review a GitLab merge request (auto-detected in CI)",
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
		fetchStart := time.Now()
		files, refs, err := client.GetChanges(ctx)
		if err != nil {
			reportError(err)
			return nil
		}
		fetchMs := time.Since(fetchStart).Milliseconds()

		report, err := buildReport(ctx, files, "mr", fetchMs, cfg)
		if err != nil {
			reportError(err)
			return nil
		}
		finishReview(report, cfg)

		if flagPost {
			if err := postFindings(ctx, client, gitlab.Position(refs), files, report, cfg); err != nil {
				reportError(err)
			}
		}
		return nil
	},
}

func init() {
	reviewRangeCmd.Flags().BoolVar(&flagMergeBase, "merge-base", false, "Use merge-base (three-dot) comparison")

	for _, cmd := range []*cobra.Command{reviewLocalCmd, reviewStagedCmd, reviewUnstagedCmd, reviewRangeCmd, reviewPRCmd, reviewMRCmd} {
		addReviewFlags(cmd)
		reviewCmd.AddCommand(cmd)
	}
	addPostFlags(reviewPRCmd)
	addPostFlags(reviewMRCmd)
}
