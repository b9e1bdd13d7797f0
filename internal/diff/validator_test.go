package diff

import "testing"

func TestLineValidator_AddAndContextOnly(t *testing.T) {
	files := Parse("--- a/a.go\n+++ b/a.go\n@@ -1,2 +1,3 @@\n context1\n+added\n context2\n")
	v := NewLineValidator(files)

	for _, line := range []int{1, 2, 3} {
		if !v.IsValidLine("a.go", line) {
			t.Errorf("line %d should be valid", line)
		}
	}
	if v.IsValidLine("a.go", 4) {
		t.Error("line 4 is outside the hunk")
	}
	if v.IsValidLine("b.go", 1) {
		t.Error("unknown file should have no valid lines")
	}
	if got := v.ValidLineCount("a.go"); got != 3 {
		t.Errorf("ValidLineCount = %d, want 3", got)
	}
}

func TestLineValidator_BlankContextLineKeepsNumbering(t *testing.T) {
	// The blank line between added and context2 lost its leading space; the
	// lines after it must still map to the right new-side numbers.
	files := Parse("--- a/a.go\n+++ b/a.go\n@@ -1,3 +1,4 @@\n context1\n+added\n\n context2\n")
	v := NewLineValidator(files)

	for _, line := range []int{1, 2, 3, 4} {
		if !v.IsValidLine("a.go", line) {
			t.Errorf("line %d should be valid", line)
		}
	}
	if v.IsValidLine("a.go", 5) {
		t.Error("line 5 is outside the hunk")
	}
}

func TestLineValidator_DeletedLinesInvalid(t *testing.T) {
	files := Parse("--- a/a.go\n+++ b/a.go\n@@ -10,3 +10,2 @@\n keep\n-dropped\n keep2\n")
	v := NewLineValidator(files)

	// Old line 11 was deleted; it has no new-side number.
	if v.IsValidLine("a.go", 12) {
		t.Error("line beyond the new-side hunk should be invalid")
	}
	if !v.IsValidLine("a.go", 10) || !v.IsValidLine("a.go", 11) {
		t.Error("context lines should be valid")
	}
}

func TestLineValidator_SkipsDeletedFiles(t *testing.T) {
	files := Parse("--- a/gone.go\n+++ /dev/null\n@@ -1,1 +0,0 @@\n-bye\n")
	v := NewLineValidator(files)
	if v.IsValidLine("gone.go", 1) || v.IsValidLine(NullPath, 1) {
		t.Error("deleted files have no commentable lines")
	}
}
