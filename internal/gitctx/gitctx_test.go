package gitctx

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractFiles(t *testing.T) {
	diff := `diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
+import "fmt"
diff --git a/util.go b/util.go
--- a/util.go
+++ b/util.go
@@ -5,3 +5,4 @@
+func helper() {}
`
	files := extractFiles(diff)
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[0] != "main.go" {
		t.Errorf("files[0] = %q, want %q", files[0], "main.go")
	}
	if files[1] != "util.go" {
		t.Errorf("files[1] = %q, want %q", files[1], "util.go")
	}
}

func TestExtractFiles_Dedup(t *testing.T) {
	diff := `+++ b/main.go
+++ b/main.go
`
	files := extractFiles(diff)
	if len(files) != 1 {
		t.Errorf("got %d files, want 1 (should dedup)", len(files))
	}
}

func TestFilterExcluded(t *testing.T) {
	diff := `diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
+import "fmt"
diff --git a/vendor/lib.go b/vendor/lib.go
--- a/vendor/lib.go
+++ b/vendor/lib.go
@@ -1,3 +1,4 @@
+package lib
`
	result := filterExcluded(diff, []string{"vendor/**"})
	if strings.Contains(result, "vendor/lib.go") {
		t.Error("vendor/lib.go should be excluded")
	}
	if !strings.Contains(result, "main.go") {
		t.Error("main.go should be kept")
	}
}

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		path     string
		patterns []string
		want     bool
	}{
		{"vendor/lib.go", []string{"vendor/**"}, true},
		{"main.go", []string{"vendor/**"}, false},
		{"foo.gen.go", []string{"**/*.gen.go"}, true},
		{"pkg/foo.gen.go", []string{"**/*.gen.go"}, true},
		{"dist/bundle.js", []string{"**/dist/**"}, true},
		{"main.go", []string{"*.go"}, true},
	}
	for _, tt := range tests {
		got := MatchesAny(tt.path, tt.patterns)
		if got != tt.want {
			t.Errorf("MatchesAny(%q, %v) = %v, want %v", tt.path, tt.patterns, got, tt.want)
		}
	}
}

func TestSplitDiffSections(t *testing.T) {
	diff := `diff --git a/a.go b/a.go
--- a/a.go
+++ b/a.go
@@ -1,3 +1,4 @@
+line1
diff --git a/b.go b/b.go
--- a/b.go
+++ b/b.go
@@ -1,3 +1,4 @@
+line2
`
	sections := splitDiffSections(diff)
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}
	if !strings.Contains(sections[0], "a.go") {
		t.Error("section 0 should contain a.go")
	}
	if !strings.Contains(sections[1], "b.go") {
		t.Error("section 1 should contain b.go")
	}
}

func TestBuildDiffArgs(t *testing.T) {
	args := buildDiffArgs(DiffOptions{ContextLines: 5, Include: []string{"*.go"}})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-U5") {
		t.Errorf("args %v missing -U5", args)
	}
	if !strings.Contains(joined, "*.go") {
		t.Errorf("args %v missing include pattern", args)
	}
}

func TestBuildDiffArgs_DefaultInclude(t *testing.T) {
	args := buildDiffArgs(DiffOptions{Include: []string{"**/*"}})
	for _, a := range args {
		if a == "**/*" {
			t.Error("catch-all include should not be passed to git")
		}
	}
}

func TestNewFileDiff(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fresh.go")
	if err := os.WriteFile(path, []byte("package fresh\n\nfunc New() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	section, err := newFileDiff(path, 3)
	if err != nil {
		t.Fatalf("newFileDiff error: %v", err)
	}
	if !strings.Contains(section, "new file mode 100644") {
		t.Error("missing new file mode line")
	}
	if !strings.Contains(section, "--- /dev/null") {
		t.Error("missing /dev/null old side")
	}
	if !strings.Contains(section, "+package fresh") {
		t.Errorf("content not rendered as additions:\n%s", section)
	}
}

func TestNewFileDiff_Binary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	if err := os.WriteFile(path, []byte{0x00, 0x01, 0x02}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := newFileDiff(path, 3); err == nil {
		t.Error("binary file should be rejected")
	}
}

// initTestRepo creates a git repo with one committed file.
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")

	if err := os.WriteFile(filepath.Join(dir, "tracked.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "tracked.go")
	run("commit", "-m", "initial")

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(cwd) })
	return dir
}

func TestUntracked(t *testing.T) {
	dir := initTestRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "new.go"), []byte("package new\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Untracked(DiffOptions{})
	if err != nil {
		t.Fatalf("Untracked error: %v", err)
	}
	if res.Mode != "untracked" {
		t.Errorf("mode = %q", res.Mode)
	}
	if len(res.Files) != 1 || res.Files[0] != "new.go" {
		t.Errorf("files = %v", res.Files)
	}
	if !strings.Contains(res.Diff, "+package new") {
		t.Errorf("diff missing synthesized content:\n%s", res.Diff)
	}
}

func TestLocal_CombinesAllSources(t *testing.T) {
	dir := initTestRepo(t)

	// Unstaged edit to the tracked file, plus a brand new file.
	if err := os.WriteFile(filepath.Join(dir, "tracked.go"), []byte("package main\n\nvar x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "new.go"), []byte("package new\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Local(DiffOptions{})
	if err != nil {
		t.Fatalf("Local error: %v", err)
	}
	if res.Mode != "local" {
		t.Errorf("mode = %q", res.Mode)
	}
	if !strings.Contains(res.Diff, "tracked.go") || !strings.Contains(res.Diff, "new.go") {
		t.Errorf("diff missing a source:\nfiles=%v", res.Files)
	}
}

func TestBuildResult_ExcludeBeforeTruncate(t *testing.T) {
	diff := `diff --git a/keep.go b/keep.go
--- a/keep.go
+++ b/keep.go
@@ -1 +1,2 @@
+kept
diff --git a/vendor/big.go b/vendor/big.go
--- a/vendor/big.go
+++ b/vendor/big.go
@@ -1 +1,2 @@
+` + strings.Repeat("x", 500) + `
`
	res, err := buildResult(diff, "unstaged", "", DiffOptions{
		Exclude:      []string{"vendor/**"},
		MaxDiffBytes: 200,
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(res.Diff, "vendor/big.go") {
		t.Error("excluded section survived")
	}
	if !strings.Contains(res.Diff, "keep.go") {
		t.Error("kept section lost to truncation that the exclude should have prevented")
	}
}

func TestBuildResult_Truncation(t *testing.T) {
	diff := strings.Repeat("x", 1000)
	res, err := buildResult(diff, "unstaged", "", DiffOptions{MaxDiffBytes: 100})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Diff, "truncated at max-diff-bytes") {
		t.Error("missing truncation marker")
	}
	if len(res.Diff) > 200 {
		t.Errorf("diff not truncated, len = %d", len(res.Diff))
	}
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")
	t.Setenv("CI_PIPELINE_SOURCE", "merge_request_event")
	t.Setenv("CI_MERGE_REQUEST_IID", "7")
	t.Setenv("CI_PROJECT_PATH", "group/repo")
	t.Setenv("CI_COMMIT_SHA", "abc123")

	ci := DetectCI()
	if !ci.IsCI || !ci.IsMR {
		t.Errorf("ci = %+v", ci)
	}
	if ci.MRIID != "7" || ci.ProjectPath != "group/repo" || ci.CommitSHA != "abc123" {
		t.Errorf("ci = %+v", ci)
	}
}

func TestDetectCI_OutsideCI(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("CI_PIPELINE_SOURCE", "")
	t.Setenv("CI_MERGE_REQUEST_IID", "")
	t.Setenv("CI_MERGE_REQUEST_ID", "")

	ci := DetectCI()
	if ci.IsCI || ci.IsMR || ci.MRIID != "" {
		t.Errorf("ci = %+v, want zero outside CI", ci)
	}
}
