package platform

import (
	"errors"
	"fmt"
	"strings"
)

// Position addresses an inline comment on a specific platform. Each variant
// carries only the identity fields its platform requires, and Validate is
// called before any network attempt.
type Position interface {
	// Validate reports a named error for any missing required field.
	Validate() error
	// Target returns the file path and line the position points at.
	Target() (path string, line int)
}

// PositionFunc builds the platform's position variant for a file and line.
type PositionFunc func(path string, line int) Position

// CommitPosition addresses a comment by a single commit SHA, the GitHub
// model.
type CommitPosition struct {
	Path      string
	Line      int
	CommitSHA string
}

// Validate checks the required commit identity.
func (p CommitPosition) Validate() error {
	if p.Path == "" {
		return errors.New("file path required")
	}
	if p.Line <= 0 {
		return fmt.Errorf("positive line required, got %d", p.Line)
	}
	if p.CommitSHA == "" {
		return errors.New("commit SHA required")
	}
	return nil
}

// Target returns the addressed file and line.
func (p CommitPosition) Target() (string, int) { return p.Path, p.Line }

// RangePosition addresses a comment by a base/head/start SHA triple, the
// GitLab model.
type RangePosition struct {
	Path     string
	Line     int
	BaseSHA  string
	HeadSHA  string
	StartSHA string
}

// Validate checks the required range identity, naming every missing field.
func (p RangePosition) Validate() error {
	if p.Path == "" {
		return errors.New("file path required")
	}
	if p.Line <= 0 {
		return fmt.Errorf("positive line required, got %d", p.Line)
	}
	var missing []string
	if p.BaseSHA == "" {
		missing = append(missing, "baseSha")
	}
	if p.HeadSHA == "" {
		missing = append(missing, "headSha")
	}
	if p.StartSHA == "" {
		missing = append(missing, "startSha")
	}
	if len(missing) > 0 {
		return fmt.Errorf("base/head/start SHA triple required: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Target returns the addressed file and line.
func (p RangePosition) Target() (string, int) { return p.Path, p.Line }
