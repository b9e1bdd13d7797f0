package agentout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputType names the document kind a side-channel file holds.
type OutputType string

const (
	OutputTypeReview   OutputType = "review"
	OutputTypeDescribe OutputType = "describe"
)

// Pointer is the small indirection object an agent may emit instead of
// answering inline, naming where its real output was written.
type Pointer struct {
	OutputType OutputType `json:"outputType"`
	OutputPath string     `json:"outputPath,omitempty"`
}

// pointerKeys is the closed key set of the pointer object.
var pointerKeys = map[string]bool{
	"outputType": true,
	"outputPath": true,
}

func decodePointer(obj map[string]json.RawMessage, raw string) (*Result, error) {
	if err := checkClosedEnvelope(obj, pointerKeys); err != nil {
		return nil, &SchemaError{Raw: raw, Reason: err.Error()}
	}
	data, _ := json.Marshal(obj)
	var p Pointer
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &SchemaError{Raw: raw, Reason: fmt.Sprintf("pointer fields: %v", err)}
	}
	switch p.OutputType {
	case OutputTypeReview, OutputTypeDescribe:
	default:
		return nil, &SchemaError{Raw: raw, Reason: fmt.Sprintf("unknown outputType %q", p.OutputType)}
	}
	return &Result{Kind: KindPointer, Pointer: &p}, nil
}

// DefaultPointerPath returns the conventional side-channel location for an
// output type inside workDir.
func DefaultPointerPath(workDir string, t OutputType) string {
	return filepath.Join(workDir, ".drs", string(t)+"_output.json")
}

// ResolvePointer reads and validates the side-channel file a pointer names.
// The resolved path must stay inside workDir; an explicit path that does not
// exist falls back to the conventional default before failing. The file's
// content must match the output type the caller expected.
func ResolvePointer(p Pointer, workDir string, want OutputType) (*Result, error) {
	if p.OutputType != want {
		return nil, fmt.Errorf("agent wrote %q output but %q was expected", p.OutputType, want)
	}

	paths := []string{}
	if p.OutputPath != "" {
		paths = append(paths, p.OutputPath)
	}
	paths = append(paths, DefaultPointerPath(workDir, p.OutputType))

	var lastErr error
	for _, path := range paths {
		resolved, err := confine(workDir, path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			lastErr = err
			continue
		}
		return parseSideChannel(data, want)
	}
	return nil, fmt.Errorf("reading side-channel output: %w", lastErr)
}

// parseSideChannel validates a side-channel document against the closed
// schema for its type.
func parseSideChannel(data []byte, want OutputType) (*Result, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, &SyntaxError{Raw: string(data), Err: err}
	}
	switch want {
	case OutputTypeReview:
		return decodeReview(obj, string(data))
	case OutputTypeDescribe:
		return decodeDescription(obj, string(data))
	default:
		return nil, fmt.Errorf("unsupported output type %q", want)
	}
}

// confine resolves path relative to workDir and rejects anything escaping it.
func confine(workDir, path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	absWork, err := filepath.Abs(workDir)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absWork, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("output path %q escapes the working directory", path)
	}
	return absPath, nil
}
