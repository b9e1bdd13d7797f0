package review

import (
	"math/rand"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/drsproject/drs/internal/compress"
)

// Timing contains performance metrics for a run.
type Timing struct {
	GitMs   int64 `json:"gitMs"`
	AgentMs int64 `json:"agentMs"`
	TotalMs int64 `json:"totalMs"`
}

// Report is the top-level output of a review run.
type Report struct {
	Tool      string             `json:"tool"`
	Version   string             `json:"version"`
	RunID     string             `json:"runId"`
	Mode      string             `json:"mode"`
	Timestamp time.Time          `json:"timestamp"`
	Summary   Summary            `json:"summary"`
	Issues    []Issue            `json:"issues"`
	Omitted   compress.Omissions `json:"omitted"`
	Warnings  []string           `json:"warnings,omitempty"`
	Timing    Timing             `json:"timing"`
}

// NewRunID returns a lexically sortable run identifier.
func NewRunID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// SortIssues orders issues by severity (most severe first), then file, then
// line, then title.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		ri, rj := SeverityRank(issues[i].Severity), SeverityRank(issues[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if issues[i].File != issues[j].File {
			return issues[i].File < issues[j].File
		}
		if issues[i].Line != issues[j].Line {
			return issues[i].Line < issues[j].Line
		}
		return issues[i].Title < issues[j].Title
	})
}
