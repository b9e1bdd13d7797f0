package review

import "testing"

func TestFingerprint_Deterministic(t *testing.T) {
	i := Issue{Category: CategorySecurity, Severity: SeverityHigh, Title: "X", File: "a.ts", Line: 3}
	if Fingerprint(i) != Fingerprint(i) {
		t.Fatal("fingerprint is not deterministic")
	}
	if got := Fingerprint(i); got != "a.ts:3:SECURITY:X" {
		t.Errorf("Fingerprint = %q", got)
	}
}

func TestFingerprint_EachInputChangesOutput(t *testing.T) {
	base := Issue{Category: CategorySecurity, Severity: SeverityHigh, Title: "X", File: "a.ts", Line: 3}
	variants := []Issue{
		{Category: CategoryQuality, Severity: base.Severity, Title: base.Title, File: base.File, Line: base.Line},
		{Category: base.Category, Severity: base.Severity, Title: "Y", File: base.File, Line: base.Line},
		{Category: base.Category, Severity: base.Severity, Title: base.Title, File: "b.ts", Line: base.Line},
		{Category: base.Category, Severity: base.Severity, Title: base.Title, File: base.File, Line: 4},
	}
	for _, v := range variants {
		if Fingerprint(v) == Fingerprint(base) {
			t.Errorf("fingerprint collision for %+v", v)
		}
	}
}

func TestFingerprint_NoLineUsesGeneral(t *testing.T) {
	i := Issue{Category: CategoryStyle, Title: "T", File: "f.go"}
	if got := Fingerprint(i); got != "f.go:general:STYLE:T" {
		t.Errorf("Fingerprint = %q", got)
	}
	// Problem text does not affect the fingerprint.
	j := i
	j.Problem = "completely different explanation"
	if Fingerprint(i) != Fingerprint(j) {
		t.Error("problem text changed the fingerprint")
	}
}

func TestMeetsThreshold(t *testing.T) {
	cases := []struct {
		sev       Severity
		threshold Severity
		want      bool
	}{
		{SeverityCritical, SeverityHigh, true},
		{SeverityHigh, SeverityHigh, true},
		{SeverityMedium, SeverityHigh, false},
		{SeverityLow, "none", false},
		{SeverityCritical, "", false},
	}
	for _, c := range cases {
		if got := MeetsThreshold(c.sev, c.threshold); got != c.want {
			t.Errorf("MeetsThreshold(%s, %s) = %v, want %v", c.sev, c.threshold, got, c.want)
		}
	}
}

func TestComputeSummary_SumsMatch(t *testing.T) {
	issues := []Issue{
		{Category: CategorySecurity, Severity: SeverityCritical},
		{Category: CategorySecurity, Severity: SeverityHigh},
		{Category: CategoryStyle, Severity: SeverityLow},
	}
	s := ComputeSummary(issues, 2)

	if s.IssuesFound != 3 || s.FilesReviewed != 2 {
		t.Errorf("summary = %+v", s)
	}
	var bySev, byCat int
	for _, n := range s.BySeverity {
		bySev += n
	}
	for _, n := range s.ByCategory {
		byCat += n
	}
	if bySev != s.IssuesFound || byCat != s.IssuesFound {
		t.Errorf("sum(bySeverity)=%d sum(byCategory)=%d issuesFound=%d", bySev, byCat, s.IssuesFound)
	}
	if s.ByCategory[CategorySecurity] != 2 {
		t.Errorf("SECURITY count = %d, want 2", s.ByCategory[CategorySecurity])
	}
}

func TestValidEnums(t *testing.T) {
	if !ValidSeverity(SeverityMedium) || ValidSeverity("BOGUS") {
		t.Error("ValidSeverity misbehaves")
	}
	if !ValidCategory(CategoryPerformance) || ValidCategory("OTHER") {
		t.Error("ValidCategory misbehaves")
	}
}

func TestSortIssues(t *testing.T) {
	issues := []Issue{
		{Severity: SeverityLow, File: "b.go", Line: 2, Title: "b"},
		{Severity: SeverityCritical, File: "z.go", Line: 9, Title: "z"},
		{Severity: SeverityLow, File: "a.go", Line: 5, Title: "a"},
	}
	SortIssues(issues)
	if issues[0].Severity != SeverityCritical {
		t.Errorf("first issue = %+v", issues[0])
	}
	if issues[1].File != "a.go" || issues[2].File != "b.go" {
		t.Errorf("file tiebreak wrong: %+v", issues)
	}
}
