package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/drsproject/drs/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *review.Report) error {
	fmt.Fprintf(w, "## DRS Code Review\n\n")

	fmt.Fprintf(w, "| Severity | Count |\n")
	fmt.Fprintf(w, "|----------|-------|\n")
	for _, sev := range review.Severities {
		fmt.Fprintf(w, "| %s | %d |\n", sev, report.Summary.BySeverity[sev])
	}
	fmt.Fprintf(w, "| **Total** | **%d** |\n\n", report.Summary.IssuesFound)

	if report.Summary.IssuesFound == 0 {
		fmt.Fprintln(w, "No issues found. :white_check_mark:")
	} else {
		m.writeSections(w, report.Issues)
	}

	if !report.Omitted.Empty() {
		fmt.Fprintf(w, "### Not Reviewed\n\n")
		for _, name := range report.Omitted.Generated {
			fmt.Fprintf(w, "- `%s` (generated)\n", name)
		}
		for _, name := range report.Omitted.DeletionsOnly {
			fmt.Fprintf(w, "- `%s` (deletions only)\n", name)
		}
		for _, o := range report.Omitted.DueToBudget {
			fmt.Fprintf(w, "- `%s` (over token budget, ~%d tokens)\n", o.Filename, o.EstimatedTokens)
		}
		fmt.Fprintln(w)
	}

	if len(report.Warnings) > 0 {
		fmt.Fprintf(w, "### Warnings\n\n")
		for _, warn := range report.Warnings {
			fmt.Fprintf(w, "- %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "*Reviewed %d files in %dms (git: %dms, agents: %dms)*\n",
		report.Summary.FilesReviewed, report.Timing.TotalMs, report.Timing.GitMs, report.Timing.AgentMs)

	return nil
}

func (m *MarkdownWriter) writeSections(w io.Writer, issues []review.Issue) {
	grouped := make(map[review.Severity][]review.Issue)
	for _, i := range issues {
		grouped[i.Severity] = append(grouped[i.Severity], i)
	}

	for _, sev := range review.Severities {
		sevIssues := grouped[sev]
		if len(sevIssues) == 0 {
			continue
		}

		fmt.Fprintf(w, "<details>\n<summary>%s (%d)</summary>\n\n", sev, len(sevIssues))

		sort.Slice(sevIssues, func(i, j int) bool {
			if sevIssues[i].File != sevIssues[j].File {
				return sevIssues[i].File < sevIssues[j].File
			}
			return sevIssues[i].Line < sevIssues[j].Line
		})

		for _, i := range sevIssues {
			fmt.Fprintf(w, "### %s\n\n", i.Title)
			loc := i.File
			if i.Line > 0 {
				loc = fmt.Sprintf("%s:%d", i.File, i.Line)
			}
			fmt.Fprintf(w, "**`%s`** | %s | agent: %s\n\n", loc, i.Category, i.Agent)
			fmt.Fprintf(w, "%s\n\n", i.Problem)

			if i.Solution != "" {
				fmt.Fprintf(w, "**Suggestion:**\n\n")
				fmt.Fprintf(w, "> %s\n\n", strings.ReplaceAll(i.Solution, "\n", "\n> "))
			}
			for _, ref := range i.References {
				fmt.Fprintf(w, "- %s\n", ref)
			}

			fmt.Fprintf(w, "---\n\n")
		}

		fmt.Fprintf(w, "</details>\n\n")
	}
}
