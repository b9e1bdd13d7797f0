package agentout

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/drsproject/drs/internal/review"
)

// reviewEnvelopeKeys is the closed key set of the review_output schema.
var reviewEnvelopeKeys = map[string]bool{
	"timestamp": true,
	"summary":   true,
	"issues":    true,
	"metadata":  true,
}

// describeEnvelopeKeys is the closed key set of the describe_output schema.
var describeEnvelopeKeys = map[string]bool{
	"type":            true,
	"title":           true,
	"summary":         true,
	"walkthrough":     true,
	"labels":          true,
	"recommendations": true,
}

// Description is a validated describe_output document.
type Description struct {
	Type            string            `json:"type"`
	Title           string            `json:"title"`
	Summary         []string          `json:"summary"`
	Walkthrough     []WalkthroughItem `json:"walkthrough,omitempty"`
	Labels          []string          `json:"labels,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
}

// WalkthroughItem describes one file's changes in a description.
type WalkthroughItem struct {
	File          string   `json:"file"`
	ChangeType    string   `json:"changeType"`
	SemanticLabel string   `json:"semanticLabel"`
	Title         string   `json:"title"`
	Changes       []string `json:"changes,omitempty"`
	Significance  string   `json:"significance,omitempty"`
}

// rawIssue mirrors review.Issue with loose types so one bad field does not
// poison the whole batch during decoding.
type rawIssue struct {
	Category   string          `json:"category"`
	Severity   string          `json:"severity"`
	Title      string          `json:"title"`
	File       string          `json:"file"`
	Line       json.RawMessage `json:"line"`
	Problem    string          `json:"problem"`
	Solution   string          `json:"solution"`
	References []string        `json:"references"`
	Agent      string          `json:"agent"`
}

// checkClosedEnvelope rejects unrecognized top-level keys.
func checkClosedEnvelope(obj map[string]json.RawMessage, allowed map[string]bool) error {
	for k := range obj {
		if !allowed[k] {
			return fmt.Errorf("unrecognized property %q", k)
		}
	}
	return nil
}

// validateIssues decodes and validates the issues array of a review
// envelope. Items failing validation are dropped and logged; dropped counts
// are returned so callers can surface them.
func validateIssues(raw json.RawMessage) ([]review.Issue, int, error) {
	var rawItems []rawIssue
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		return nil, 0, fmt.Errorf("issues is not an array of objects: %w", err)
	}

	issues := make([]review.Issue, 0, len(rawItems))
	dropped := 0
	for idx, r := range rawItems {
		issue, err := validateIssue(r)
		if err != nil {
			dropped++
			slog.Warn("dropping invalid issue", "index", idx, "title", r.Title, "err", err)
			continue
		}
		issues = append(issues, issue)
	}
	return issues, dropped, nil
}

func validateIssue(r rawIssue) (review.Issue, error) {
	if r.Title == "" {
		return review.Issue{}, fmt.Errorf("missing title")
	}
	if r.File == "" {
		return review.Issue{}, fmt.Errorf("missing file")
	}
	if r.Problem == "" {
		return review.Issue{}, fmt.Errorf("missing problem")
	}
	if r.Solution == "" {
		return review.Issue{}, fmt.Errorf("missing solution")
	}
	cat := review.Category(r.Category)
	if !review.ValidCategory(cat) {
		return review.Issue{}, fmt.Errorf("invalid category %q", r.Category)
	}
	sev := review.Severity(r.Severity)
	if !review.ValidSeverity(sev) {
		return review.Issue{}, fmt.Errorf("invalid severity %q", r.Severity)
	}

	line := 0
	if len(r.Line) > 0 && string(r.Line) != "null" {
		var n float64
		if err := json.Unmarshal(r.Line, &n); err != nil {
			return review.Issue{}, fmt.Errorf("line is not numeric: %s", string(r.Line))
		}
		line = int(n)
	}

	return review.Issue{
		Category:   cat,
		Severity:   sev,
		Title:      r.Title,
		File:       r.File,
		Line:       line,
		Problem:    r.Problem,
		Solution:   r.Solution,
		References: r.References,
		Agent:      r.Agent,
	}, nil
}

// validateDescription decodes and validates a describe_output envelope.
func validateDescription(obj map[string]json.RawMessage, raw string) (*Description, error) {
	if err := checkClosedEnvelope(obj, describeEnvelopeKeys); err != nil {
		return nil, &SchemaError{Raw: raw, Reason: err.Error()}
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, &SchemaError{Raw: raw, Reason: err.Error()}
	}
	var d Description
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, &SchemaError{Raw: raw, Reason: fmt.Sprintf("describe fields: %v", err)}
	}
	if d.Type == "" {
		return nil, &SchemaError{Raw: raw, Reason: "missing type"}
	}
	if d.Title == "" {
		return nil, &SchemaError{Raw: raw, Reason: "missing title"}
	}
	if len(d.Summary) == 0 {
		return nil, &SchemaError{Raw: raw, Reason: "missing summary"}
	}
	for i, w := range d.Walkthrough {
		if w.File == "" || w.ChangeType == "" || w.Title == "" {
			return nil, &SchemaError{Raw: raw, Reason: fmt.Sprintf("walkthrough[%d] missing required fields", i)}
		}
	}
	return &d, nil
}
