package compress

import (
	"fmt"
	"strings"
	"testing"
)

func filePatch(name string, addLines int) FileWithDiff {
	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n@@ -1,1 +1,%d @@\n context\n", name, name, addLines+1)
	for i := 0; i < addLines; i++ {
		fmt.Fprintf(&b, "+line %d\n", i)
	}
	return FileWithDiff{Filename: name, Patch: b.String()}
}

func TestIsGenerated(t *testing.T) {
	if !IsGenerated("+// Code generated by protoc. DO NOT EDIT.\n") {
		t.Error("marker not detected")
	}
	if IsGenerated("+func handwritten() {}\n") {
		t.Error("false positive on handwritten code")
	}
}

func TestCompress_GeneratedFilter(t *testing.T) {
	files := []FileWithDiff{
		{Filename: "gen.pb.go", Patch: "+++ b/gen.pb.go\n@@ -1,1 +1,2 @@\n context\n+// @generated\n"},
		filePatch("real.go", 2),
	}
	res := Compress(files, DefaultBudget())
	if len(res.Files) != 1 || res.Files[0].Filename != "real.go" {
		t.Fatalf("kept = %+v", res.Files)
	}
	if len(res.Omitted.Generated) != 1 || res.Omitted.Generated[0] != "gen.pb.go" {
		t.Errorf("Generated = %v", res.Omitted.Generated)
	}
}

func TestStripDeletionOnlyHunks_AllDeleted(t *testing.T) {
	patch := "--- a/a.go\n+++ b/a.go\n@@ -1,2 +1,0 @@\n-x\n-y\n"
	if got := StripDeletionOnlyHunks(patch); got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}

func TestStripDeletionOnlyHunks_KeepsSurvivors(t *testing.T) {
	surviving := "@@ -10,2 +9,3 @@\n context\n+added\n context2\n"
	patch := "--- a/a.go\n+++ b/a.go\n@@ -1,2 +1,1 @@\n-gone\n context\n" + surviving
	got := StripDeletionOnlyHunks(patch)

	if !strings.Contains(got, surviving) {
		t.Errorf("surviving hunk not preserved verbatim:\n%s", got)
	}
	if strings.Contains(got, "-gone") {
		t.Error("deletion-only hunk not stripped")
	}
	if !strings.HasPrefix(got, "--- a/a.go\n+++ b/a.go\n") {
		t.Error("prefix material not preserved")
	}
}

func TestCompress_DeletionOnlyFileOmitted(t *testing.T) {
	files := []FileWithDiff{
		{Filename: "del.go", Patch: "--- a/del.go\n+++ b/del.go\n@@ -1,2 +1,0 @@\n-x\n-y\n"},
		filePatch("keep.go", 1),
	}
	res := Compress(files, DefaultBudget())
	if len(res.Omitted.DeletionsOnly) != 1 || res.Omitted.DeletionsOnly[0] != "del.go" {
		t.Errorf("DeletionsOnly = %v", res.Omitted.DeletionsOnly)
	}
	if len(res.Files) != 1 || res.Files[0].Filename != "keep.go" {
		t.Errorf("kept = %+v", res.Files)
	}
}

func TestCompress_UnderBudgetKeepsEverything(t *testing.T) {
	files := []FileWithDiff{filePatch("a.go", 5), filePatch("b.go", 3)}

	total := 0
	for _, f := range files {
		total += EstimateTokens(f, 4)
	}
	budget := Budget{MaxTokens: total + 100, SoftBufferTokens: 50, HardBufferTokens: 80, TokenEstimateDivisor: 4}

	res := Compress(files, budget)
	if len(res.Files) != 2 {
		t.Fatalf("kept %d files, want 2", len(res.Files))
	}
	for i, f := range files {
		if res.Files[i].Patch != f.Patch {
			t.Errorf("patch for %s modified", f.Filename)
		}
	}
	if !res.Omitted.Empty() {
		t.Errorf("Omitted = %+v, want empty", res.Omitted)
	}
}

func TestCompress_BudgetOrderingAndBound(t *testing.T) {
	files := []FileWithDiff{
		filePatch("small.go", 2),
		filePatch("huge.go", 400),
		filePatch("medium.go", 40),
	}
	budget := Budget{MaxTokens: 300, SoftBufferTokens: 20, HardBufferTokens: 60, TokenEstimateDivisor: 4}
	res := Compress(files, budget)

	if len(res.Omitted.DueToBudget) == 0 {
		t.Fatal("expected budget omissions")
	}
	// Omissions are reported most expensive first.
	for i := 1; i < len(res.Omitted.DueToBudget); i++ {
		prev, cur := res.Omitted.DueToBudget[i-1], res.Omitted.DueToBudget[i]
		if prev.EstimatedTokens < cur.EstimatedTokens {
			t.Errorf("omissions out of order: %+v before %+v", prev, cur)
		}
		if prev.EstimatedTokens == cur.EstimatedTokens && prev.Filename > cur.Filename {
			t.Errorf("tie not broken by filename: %q before %q", prev.Filename, cur.Filename)
		}
	}

	// huge.go alone exceeds the budget, so it must be the first omission.
	if res.Omitted.DueToBudget[0].Filename != "huge.go" {
		t.Errorf("first omission = %q, want huge.go", res.Omitted.DueToBudget[0].Filename)
	}
	if res.Omitted.DueToBudget[0].Additions != 400 {
		t.Errorf("Additions = %d, want 400", res.Omitted.DueToBudget[0].Additions)
	}

	// The kept set total never exceeds the hard limit plus one crossing file.
	kept := 0
	maxCost := 0
	for _, f := range res.Files {
		c := EstimateTokens(f, 4)
		kept += c
		if c > maxCost {
			maxCost = c
		}
	}
	if kept > budget.MaxTokens-budget.HardBufferTokens+maxCost {
		t.Errorf("kept total %d exceeds hard bound", kept)
	}
	if kept > budget.MaxTokens-budget.SoftBufferTokens {
		t.Errorf("kept total %d exceeds soft limit", kept)
	}
}

func TestResolveBudget(t *testing.T) {
	static := Budget{MaxTokens: 50000, SoftBufferTokens: 1000, HardBufferTokens: 4000, TokenEstimateDivisor: 4, ThresholdPercent: 0.5}

	// No context window known: unchanged.
	if got := ResolveBudget(static, 0); got != static {
		t.Errorf("got %+v, want static", got)
	}

	// No threshold configured: unchanged.
	noThreshold := static
	noThreshold.ThresholdPercent = 0
	if got := ResolveBudget(noThreshold, 200000); got != noThreshold {
		t.Errorf("got %+v, want static", got)
	}

	// Smaller computed budget scales buffers proportionally, half-up.
	got := ResolveBudget(static, 50000) // 50000 * 0.5 = 25000, ratio 0.5
	if got.MaxTokens != 25000 {
		t.Errorf("MaxTokens = %d, want 25000", got.MaxTokens)
	}
	if got.SoftBufferTokens != 500 || got.HardBufferTokens != 2000 {
		t.Errorf("buffers = %d/%d, want 500/2000", got.SoftBufferTokens, got.HardBufferTokens)
	}

	// Larger computed budget keeps the static buffers.
	got = ResolveBudget(static, 400000)
	if got.MaxTokens != 200000 {
		t.Errorf("MaxTokens = %d, want 200000", got.MaxTokens)
	}
	if got.SoftBufferTokens != 1000 || got.HardBufferTokens != 4000 {
		t.Errorf("buffers rescaled upward: %d/%d", got.SoftBufferTokens, got.HardBufferTokens)
	}
}

func TestScaleHalfUp(t *testing.T) {
	if got := scaleHalfUp(3, 0.5); got != 2 {
		t.Errorf("scaleHalfUp(3, 0.5) = %d, want 2", got)
	}
	if got := scaleHalfUp(5, 0.3); got != 2 {
		t.Errorf("scaleHalfUp(5, 0.3) = %d, want 2", got)
	}
}

func TestDescribeOmission_BarePatch(t *testing.T) {
	// Platform APIs return patches that start at the hunk header with no
	// ---/+++ lines.
	f := FileWithDiff{Filename: "a.go", Patch: "@@ -1,2 +1,3 @@\n context\n+added one\n+added two\n-dropped\n"}
	o := describeOmission(f, 7)
	if o.Additions != 2 || o.Deletions != 1 {
		t.Errorf("counts = +%d/-%d, want +2/-1", o.Additions, o.Deletions)
	}
	if o.EstimatedTokens != 7 {
		t.Errorf("EstimatedTokens = %d, want 7", o.EstimatedTokens)
	}
	if o.IsNew {
		t.Error("modified file reported as new")
	}
}

func TestDescribeOmission_NewFile(t *testing.T) {
	f := FileWithDiff{
		Filename: "b.go",
		Patch:    "diff --git a/b.go b/b.go\nnew file mode 100644\n--- /dev/null\n+++ b/b.go\n@@ -0,0 +1,2 @@\n+one\n+two\n",
	}
	o := describeOmission(f, 3)
	if !o.IsNew {
		t.Error("new file not detected")
	}
	if o.Additions != 2 || o.Deletions != 0 {
		t.Errorf("counts = +%d/-%d, want +2/-0", o.Additions, o.Deletions)
	}
}
