package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/logrusorgru/aurora"

	"github.com/drsproject/drs/internal/review"
)

// TextWriter outputs a human-readable terminal report, grouped by file.
type TextWriter struct {
	// NoColor disables ANSI escapes, for piped output.
	NoColor bool
}

func (t *TextWriter) Write(w io.Writer, report *review.Report) error {
	au := aurora.NewAurora(!t.NoColor)
	ew := &errWriter{w: w}

	ew.printf("drs review (%s mode)\n", report.Mode)
	ew.println(strings.Repeat("─", 60))
	ew.printf("Files reviewed: %d | Issues: %d\n",
		report.Summary.FilesReviewed, report.Summary.IssuesFound)
	if report.Summary.IssuesFound > 0 {
		var parts []string
		for _, sev := range review.Severities {
			if n := report.Summary.BySeverity[sev]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(string(sev))))
			}
		}
		ew.printf("Breakdown: %s\n", strings.Join(parts, ", "))
	}
	ew.println(strings.Repeat("─", 60))

	if report.Summary.IssuesFound == 0 {
		ew.printf("\n%s\n", au.Green("No issues found. Looks good!"))
	} else {
		t.writeIssues(ew, au, report.Issues)
	}

	if !report.Omitted.Empty() {
		ew.printf("\n%s\n", au.Yellow("Not reviewed:"))
		for _, name := range report.Omitted.Generated {
			ew.printf("  %s (generated)\n", name)
		}
		for _, name := range report.Omitted.DeletionsOnly {
			ew.printf("  %s (deletions only)\n", name)
		}
		for _, o := range report.Omitted.DueToBudget {
			ew.printf("  %s (over token budget, ~%d tokens)\n", o.Filename, o.EstimatedTokens)
		}
	}

	for _, warn := range report.Warnings {
		ew.printf("\n%s %s\n", au.Yellow("warning:"), warn)
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	ew.printf("Completed in %dms (git: %dms, agents: %dms)\n",
		report.Timing.TotalMs, report.Timing.GitMs, report.Timing.AgentMs)

	return ew.err
}

func (t *TextWriter) writeIssues(ew *errWriter, au aurora.Aurora, issues []review.Issue) {
	byFile := make(map[string][]review.Issue)
	for _, i := range issues {
		byFile[i.File] = append(byFile[i.File], i)
	}
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, file := range files {
		fileIssues := byFile[file]
		sort.Slice(fileIssues, func(i, j int) bool {
			return fileIssues[i].Line < fileIssues[j].Line
		})

		ew.printf("\n%s\n", au.Bold(file))
		ew.println(strings.Repeat("─", 40))

		for _, i := range fileIssues {
			loc := "general"
			if i.Line > 0 {
				loc = fmt.Sprintf("line %d", i.Line)
			}
			ew.printf("  %s %s  %s [%s, agent: %s]\n",
				severityLabel(au, i.Severity), loc, i.Title, i.Category, i.Agent)
			for _, line := range wrapText(i.Problem, 70) {
				ew.printf("    %s\n", line)
			}
			if i.Solution != "" {
				ew.println("  Suggestion:")
				for _, line := range wrapText(i.Solution, 70) {
					ew.printf("    %s\n", line)
				}
			}
			for _, ref := range i.References {
				ew.printf("    see: %s\n", ref)
			}
			ew.println("")
		}
	}
}

func severityLabel(au aurora.Aurora, s review.Severity) aurora.Value {
	switch s {
	case review.SeverityCritical:
		return au.Red(string(s)).Bold()
	case review.SeverityHigh:
		return au.Red(string(s))
	case review.SeverityMedium:
		return au.Yellow(string(s))
	case review.SeverityLow:
		return au.Blue(string(s))
	default:
		return au.Gray(12, string(s))
	}
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
