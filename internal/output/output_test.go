package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/drsproject/drs/internal/compress"
	"github.com/drsproject/drs/internal/review"
)

func sampleReport() *review.Report {
	issues := []review.Issue{
		{
			Category: review.CategorySecurity,
			Severity: review.SeverityCritical,
			Title:    "sql injection",
			File:     "db.go",
			Line:     12,
			Problem:  "query built by string concatenation",
			Solution: "use a parameterized query",
			Agent:    "security",
		},
		{
			Category: review.CategoryStyle,
			Severity: review.SeverityLow,
			Title:    "naming",
			File:     "db.go",
			Problem:  "exported function lacks a doc comment",
			Solution: "add one",
			Agent:    "quality",
		},
	}
	return &review.Report{
		Tool:    "drs",
		Version: "1.0.0",
		Mode:    "pr",
		Summary: review.ComputeSummary(issues, 3),
		Issues:  issues,
		Omitted: compress.Omissions{
			Generated:     []string{"gen.pb.go"},
			DeletionsOnly: []string{"legacy.go"},
			DueToBudget:   []compress.OmittedFile{{Filename: "big.go", EstimatedTokens: 9000}},
		},
		Warnings: []string{"agent style: timed out"},
	}
}

func TestGetWriter(t *testing.T) {
	for _, format := range []string{"text", "json", "markdown", "sarif"} {
		if _, err := GetWriter(format); err != nil {
			t.Errorf("GetWriter(%q) error: %v", format, err)
		}
	}
	if _, err := GetWriter("xml"); err == nil {
		t.Error("unsupported format accepted")
	}
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &TextWriter{NoColor: true}
	if err := w.Write(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"db.go", "CRITICAL", "sql injection", "line 12", "general", "gen.pb.go (generated)", "legacy.go (deletions only)", "big.go", "timed out"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("NoColor output contains ANSI escapes")
	}
}

func TestTextWriter_NoIssues(t *testing.T) {
	var buf bytes.Buffer
	rep := &review.Report{Mode: "staged", Summary: review.ComputeSummary(nil, 0)}
	if err := (&TextWriter{NoColor: true}).Write(&buf, rep); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No issues found") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestJSONWriter_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONWriter{}).Write(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}
	var decoded review.Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Summary.IssuesFound != 2 || len(decoded.Issues) != 2 {
		t.Errorf("decoded = %+v", decoded.Summary)
	}
}

func TestMarkdownWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownWriter{}).Write(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"| CRITICAL | 1 |", "<details>", "`db.go:12`", "### Not Reviewed", "### Warnings"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestSARIFWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&SARIFWriter{}).Write(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}

	var log sarifLog
	if err := json.Unmarshal(buf.Bytes(), &log); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if log.Version != "2.1.0" || len(log.Runs) != 1 {
		t.Fatalf("log = %+v", log)
	}
	run := log.Runs[0]
	if run.Tool.Driver.Name != "drs" || len(run.Results) != 2 {
		t.Errorf("run = %+v", run)
	}
	if run.Results[0].Level != "error" {
		t.Errorf("critical should map to error, got %q", run.Results[0].Level)
	}
	// The general (line 0) issue carries no location.
	if len(run.Results[1].Locations) != 0 {
		t.Errorf("line-less issue has locations: %+v", run.Results[1].Locations)
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six seven eight nine ten", 20)
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	if strings.Join(lines, " ") != "one two three four five six seven eight nine ten" {
		t.Errorf("content lost: %v", lines)
	}
}
