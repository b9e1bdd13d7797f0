package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/drsproject/drs/internal/diff"
	"github.com/drsproject/drs/internal/review"
)

const summaryMarker = "<!-- drs-summary -->"

var fingerprintRe = regexp.MustCompile(`<!-- drs-fingerprint: (.+?) -->`)

// fingerprintMarker embeds the dedup key into a comment body so later runs
// can recognize it.
func fingerprintMarker(fp string) string {
	return fmt.Sprintf("<!-- drs-fingerprint: %s -->", fp)
}

// Poster posts review findings to a platform: inline comments for findings
// at or above the severity threshold, deduplicated by fingerprint against
// comments already on the target, plus one summary comment updated in place
// across runs.
type Poster struct {
	api       API
	validator *diff.LineValidator
	position  PositionFunc
	threshold review.Severity
}

// NewPoster builds a poster. An empty threshold defaults to HIGH, so only
// CRITICAL and HIGH findings become inline comments.
func NewPoster(api API, validator *diff.LineValidator, position PositionFunc, threshold review.Severity) *Poster {
	if threshold == "" {
		threshold = review.SeverityHigh
	}
	return &Poster{api: api, validator: validator, position: position, threshold: threshold}
}

// PostResult summarizes one posting run.
type PostResult struct {
	Posted           int
	SkippedDuplicate int
	SkippedThreshold int
	SkippedLine      int
	SkippedPosition  int
	FailedInline     int
	SummaryUpdated   bool
}

// Post publishes the report. Inline-comment failures are logged and counted,
// never fatal. The summary comment is attempted regardless of how the inline
// batch went; its error is the only one that surfaces alongside a failure to
// list existing comments.
func (p *Poster) Post(ctx context.Context, rep *review.Report) (*PostResult, error) {
	existing, err := p.api.GetComments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing existing comments: %w", err)
	}

	posted := postedFingerprints(existing)
	res := &PostResult{}
	seen := make(map[string]bool)
	var batch []InlineComment

	for _, issue := range rep.Issues {
		if !review.MeetsThreshold(issue.Severity, p.threshold) {
			res.SkippedThreshold++
			continue
		}
		if issue.Line <= 0 || !p.validator.IsValidLine(issue.File, issue.Line) {
			res.SkippedLine++
			continue
		}
		fp := review.Fingerprint(issue)
		if posted[fp] || seen[fp] {
			res.SkippedDuplicate++
			continue
		}
		seen[fp] = true

		pos := p.position(issue.File, issue.Line)
		if err := pos.Validate(); err != nil {
			slog.Warn("skipping inline comment", "file", issue.File, "line", issue.Line, "err", err)
			res.SkippedPosition++
			continue
		}
		batch = append(batch, InlineComment{
			Body:     renderInline(issue) + "\n\n" + fingerprintMarker(fp),
			Position: pos,
		})
	}

	res.Posted, res.FailedInline = p.postInline(ctx, batch)

	updated, sumErr := p.upsertSummary(ctx, existing, rep)
	res.SummaryUpdated = updated
	if sumErr != nil {
		return res, fmt.Errorf("posting summary: %w", sumErr)
	}
	return res, nil
}

// postInline tries one bulk call, then falls back to sequential posting when
// the bulk call fails for any reason. Individual failures do not stop the
// batch.
func (p *Poster) postInline(ctx context.Context, batch []InlineComment) (posted, failed int) {
	if len(batch) == 0 {
		return 0, 0
	}

	err := p.api.CreateBulkInlineComments(ctx, batch)
	if err == nil {
		return len(batch), 0
	}
	if !errors.Is(err, ErrBulkUnsupported) {
		slog.Warn("bulk inline post failed, falling back to sequential", "err", err)
	}

	for _, c := range batch {
		if err := p.api.CreateInlineComment(ctx, c); err != nil {
			path, line := c.Position.Target()
			slog.Warn("inline comment failed", "file", path, "line", line, "err", err)
			failed++
			continue
		}
		posted++
	}
	return posted, failed
}

// upsertSummary creates the summary comment, or updates the one a previous
// run left behind. Returns true when an existing summary was updated.
func (p *Poster) upsertSummary(ctx context.Context, existing []Comment, rep *review.Report) (bool, error) {
	body := RenderSummary(rep) + "\n" + summaryMarker
	for _, c := range existing {
		if strings.Contains(c.Body, summaryMarker) {
			return true, p.api.UpdateComment(ctx, c.ID, body)
		}
	}
	return false, p.api.CreateComment(ctx, body)
}

// postedFingerprints extracts every embedded fingerprint marker from the
// existing comments.
func postedFingerprints(comments []Comment) map[string]bool {
	fps := make(map[string]bool)
	for _, c := range comments {
		for _, m := range fingerprintRe.FindAllStringSubmatch(c.Body, -1) {
			fps[m[1]] = true
		}
	}
	return fps
}

// renderInline formats one finding as an inline comment body.
func renderInline(i review.Issue) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**%s** (%s, %s)\n\n", i.Title, i.Severity, i.Category))
	sb.WriteString(i.Problem)
	if i.Solution != "" {
		sb.WriteString(fmt.Sprintf("\n\n**Suggestion:** %s", i.Solution))
	}
	for _, ref := range i.References {
		sb.WriteString(fmt.Sprintf("\n- %s", ref))
	}
	return sb.String()
}

// RenderSummary formats the report as the top-level summary comment.
func RenderSummary(rep *review.Report) string {
	var sb strings.Builder
	sb.WriteString("## DRS Code Review\n\n")
	sb.WriteString(fmt.Sprintf("Reviewed %d files, found %d issues.\n\n", rep.Summary.FilesReviewed, rep.Summary.IssuesFound))

	sb.WriteString("| Severity | Count |\n|----------|-------|\n")
	for _, sev := range review.Severities {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", sev, rep.Summary.BySeverity[sev]))
	}

	if general := generalFindings(rep.Issues); len(general) > 0 {
		sb.WriteString("\n### General Findings\n\n")
		for _, i := range general {
			sb.WriteString(fmt.Sprintf("- **%s** (%s, %s): %s\n", i.Title, i.Severity, i.Category, i.Problem))
		}
	}

	if !rep.Omitted.Empty() {
		sb.WriteString("\n### Not Reviewed\n\n")
		for _, name := range rep.Omitted.Generated {
			sb.WriteString(fmt.Sprintf("- `%s` (generated)\n", name))
		}
		for _, name := range rep.Omitted.DeletionsOnly {
			sb.WriteString(fmt.Sprintf("- `%s` (deletions only)\n", name))
		}
		for _, o := range rep.Omitted.DueToBudget {
			sb.WriteString(fmt.Sprintf("- `%s` (over token budget, ~%d tokens)\n", o.Filename, o.EstimatedTokens))
		}
	}

	if len(rep.Warnings) > 0 {
		sb.WriteString("\n### Warnings\n\n")
		for _, w := range rep.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
	}
	return sb.String()
}

// generalFindings returns the issues that could not be attached inline, so
// they still show up in the summary.
func generalFindings(issues []review.Issue) []review.Issue {
	var out []review.Issue
	for _, i := range issues {
		if i.Line == 0 {
			out = append(out, i)
		}
	}
	return out
}
