package agentout

import (
	"encoding/json"
	"strings"

	"github.com/drsproject/drs/internal/review"
)

// Kind discriminates what a parse attempt produced.
type Kind int

const (
	KindIssues Kind = iota
	KindDescription
	KindPointer
)

// Result is the discriminated outcome of a successful parse.
type Result struct {
	Kind        Kind
	Issues      []review.Issue
	Description *Description
	Pointer     *Pointer
	// Dropped counts issues rejected by item-level validation.
	Dropped int
}

// ParseReview extracts a validated issue list, or a side-channel pointer,
// from raw agent text.
func ParseReview(text string) (*Result, error) {
	return parse(text, "issues", decodeReview)
}

// ParseDescription extracts a validated description, or a side-channel
// pointer, from raw agent text.
func ParseDescription(text string) (*Result, error) {
	return parse(text, "title", decodeDescription)
}

type decoder func(obj map[string]json.RawMessage, raw string) (*Result, error)

// parse runs the extraction strategies in order: fenced blocks, the whole
// text, then a balanced-brace scan. The first candidate that decodes and
// carries either the discriminating key or a pointer wins.
func parse(text, discriminator string, decode decoder) (*Result, error) {
	var lastSyntaxErr error
	var lastSchemaErr error

	try := func(candidate string) *Result {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
			if lastSyntaxErr == nil {
				lastSyntaxErr = err
			}
			return nil
		}
		if _, ok := obj["outputType"]; ok {
			if res, err := decodePointer(obj, candidate); err == nil {
				return res
			} else if lastSchemaErr == nil {
				lastSchemaErr = err
			}
			return nil
		}
		if _, ok := obj[discriminator]; !ok {
			return nil
		}
		res, err := decode(obj, candidate)
		if err != nil {
			if lastSchemaErr == nil {
				lastSchemaErr = err
			}
			return nil
		}
		return res
	}

	for _, block := range fencedBlocks(text) {
		if res := try(block); res != nil {
			return res, nil
		}
	}
	if res := try(strings.TrimSpace(text)); res != nil {
		return res, nil
	}
	for _, candidate := range braceCandidates(text) {
		if res := try(candidate); res != nil {
			return res, nil
		}
	}

	if lastSchemaErr != nil {
		return nil, lastSchemaErr
	}
	if lastSyntaxErr != nil {
		return nil, &SyntaxError{Raw: text, Err: lastSyntaxErr}
	}
	return nil, &SchemaError{Raw: text, Reason: "no candidate contained the expected structure"}
}

func decodeReview(obj map[string]json.RawMessage, raw string) (*Result, error) {
	if err := checkClosedEnvelope(obj, reviewEnvelopeKeys); err != nil {
		return nil, &SchemaError{Raw: raw, Reason: err.Error()}
	}
	issuesRaw, ok := obj["issues"]
	if !ok {
		return nil, &SchemaError{Raw: raw, Reason: "missing issues"}
	}
	issues, dropped, err := validateIssues(issuesRaw)
	if err != nil {
		return nil, &SchemaError{Raw: raw, Reason: err.Error()}
	}
	return &Result{Kind: KindIssues, Issues: issues, Dropped: dropped}, nil
}

func decodeDescription(obj map[string]json.RawMessage, raw string) (*Result, error) {
	d, err := validateDescription(obj, raw)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: KindDescription, Description: d}, nil
}

// fencedBlocks returns the bodies of code fences tagged as structured data.
func fencedBlocks(text string) []string {
	var blocks []string
	lines := strings.Split(text, "\n")
	var body []string
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !inBlock {
			if tag, ok := strings.CutPrefix(trimmed, "```"); ok {
				tag = strings.TrimSpace(tag)
				if tag == "json" || tag == "jsonc" || tag == "" {
					inBlock = true
					body = body[:0]
				}
			}
			continue
		}
		if trimmed == "```" {
			inBlock = false
			blocks = append(blocks, strings.Join(body, "\n"))
			continue
		}
		body = append(body, line)
	}
	return blocks
}

// braceCandidates scans for balanced top-level JSON object literals,
// tracking nesting depth and string state.
func braceCandidates(text string) []string {
	var out []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				out = append(out, text[start:i+1])
				start = -1
			}
		}
	}
	return out
}
