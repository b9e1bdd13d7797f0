package diff

// LineValidator answers whether a file/line pair appears on the new side of
// a parsed diff. Platforms only accept inline comments on lines present in
// the diff, so posting is gated on this index.
type LineValidator struct {
	valid map[string]map[int]bool
}

// NewLineValidator indexes the add and context lines of the parsed files.
// Deleted lines and lines outside any hunk are never valid targets.
func NewLineValidator(files []FileDiff) *LineValidator {
	v := &LineValidator{valid: make(map[string]map[int]bool)}
	for _, f := range files {
		path := f.NewPath
		if path == "" || path == NullPath {
			continue
		}
		lines := v.valid[path]
		if lines == nil {
			lines = make(map[int]bool)
			v.valid[path] = lines
		}
		for _, h := range f.Hunks {
			for _, l := range h.Lines {
				if l.Type == LineAdd || l.Type == LineContext {
					lines[l.NewNumber] = true
				}
			}
		}
	}
	return v
}

// IsValidLine reports whether line appears as an add or context line in the
// diff for file.
func (v *LineValidator) IsValidLine(file string, line int) bool {
	return v.valid[file][line]
}

// ValidLineCount returns the number of commentable lines indexed for file.
func (v *LineValidator) ValidLineCount(file string) int {
	return len(v.valid[file])
}
