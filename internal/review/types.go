package review

import (
	"fmt"
	"strconv"
)

// Severity represents the severity level of an issue.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Severities lists all valid severities, most severe first.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ValidSeverity reports whether s is a member of the severity enumeration.
func ValidSeverity(s Severity) bool {
	return SeverityRank(s) > 0
}

// MeetsThreshold returns true if severity is at or above the threshold.
func MeetsThreshold(s Severity, threshold Severity) bool {
	if threshold == "" || threshold == "none" {
		return false
	}
	return SeverityRank(s) >= SeverityRank(threshold)
}

// Category represents the type of issue.
type Category string

const (
	CategorySecurity      Category = "SECURITY"
	CategoryQuality       Category = "QUALITY"
	CategoryStyle         Category = "STYLE"
	CategoryPerformance   Category = "PERFORMANCE"
	CategoryDocumentation Category = "DOCUMENTATION"
)

// Categories lists all valid categories.
var Categories = []Category{
	CategorySecurity,
	CategoryQuality,
	CategoryStyle,
	CategoryPerformance,
	CategoryDocumentation,
}

// ValidCategory reports whether c is a member of the category enumeration.
func ValidCategory(c Category) bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Issue is a single finding returned by a reviewer agent. Line is zero for
// file-level findings. Agent is always populated by the time an issue leaves
// the dispatch layer.
type Issue struct {
	Category   Category `json:"category"`
	Severity   Severity `json:"severity"`
	Title      string   `json:"title"`
	File       string   `json:"file"`
	Line       int      `json:"line,omitempty"`
	Problem    string   `json:"problem"`
	Solution   string   `json:"solution"`
	References []string `json:"references,omitempty"`
	Agent      string   `json:"agent"`
}

// Fingerprint derives the deterministic dedup key for an issue from its
// file, line, category, and title. Issues without a line number share the
// "general" slot per file.
func Fingerprint(i Issue) string {
	line := "general"
	if i.Line > 0 {
		line = strconv.Itoa(i.Line)
	}
	return fmt.Sprintf("%s:%s:%s:%s", i.File, line, i.Category, i.Title)
}

// Summary holds aggregate statistics over a set of issues.
type Summary struct {
	FilesReviewed int              `json:"filesReviewed"`
	IssuesFound   int              `json:"issuesFound"`
	BySeverity    map[Severity]int `json:"bySeverity"`
	ByCategory    map[Category]int `json:"byCategory"`
}

// ComputeSummary counts issues by severity and category. The sums over
// BySeverity and ByCategory both equal IssuesFound.
func ComputeSummary(issues []Issue, filesReviewed int) Summary {
	s := Summary{
		FilesReviewed: filesReviewed,
		IssuesFound:   len(issues),
		BySeverity:    make(map[Severity]int),
		ByCategory:    make(map[Category]int),
	}
	for _, i := range issues {
		s.BySeverity[i.Severity]++
		s.ByCategory[i.Category]++
	}
	return s
}

// HighestSeverity returns the most severe level present, or "" when issues
// is empty.
func HighestSeverity(issues []Issue) Severity {
	var highest Severity
	for _, i := range issues {
		if SeverityRank(i.Severity) > SeverityRank(highest) {
			highest = i.Severity
		}
	}
	return highest
}
