package compress

import (
	"fmt"
	"sort"
	"strings"
)

// FileWithDiff is the unit of diff content exchanged with agents. Patch is
// empty once a file has been compressed away.
type FileWithDiff struct {
	Filename string `json:"filename"`
	Patch    string `json:"patch,omitempty"`
}

// OmittedFile describes a file dropped by budget fitting, with enough detail
// for reporting.
type OmittedFile struct {
	Filename        string `json:"filename"`
	Additions       int    `json:"additions"`
	Deletions       int    `json:"deletions"`
	IsNew           bool   `json:"isNew"`
	EstimatedTokens int    `json:"estimatedTokens"`
}

// Omissions records everything compression removed, by reason.
type Omissions struct {
	Generated     []string      `json:"generated,omitempty"`
	DeletionsOnly []string      `json:"deletionsOnly,omitempty"`
	DueToBudget   []OmittedFile `json:"dueToBudget,omitempty"`
}

// Result is the outcome of a compression pass.
type Result struct {
	Files   []FileWithDiff `json:"files"`
	Omitted Omissions      `json:"omitted"`
}

// Empty reports whether compression removed nothing.
func (o Omissions) Empty() bool {
	return len(o.Generated) == 0 && len(o.DeletionsOnly) == 0 && len(o.DueToBudget) == 0
}

// generatedMarkers are patch substrings that identify machine-written files.
var generatedMarkers = []string{
	"@generated",
	"DO NOT EDIT",
	"Code generated by",
	"Autogenerated by",
	"This file was automatically generated",
}

// IsGenerated reports whether a patch carries a generated-code marker.
func IsGenerated(patch string) bool {
	for _, m := range generatedMarkers {
		if strings.Contains(patch, m) {
			return true
		}
	}
	return false
}

// StripDeletionOnlyHunks removes hunks that contain no added lines from a
// patch. Prefix material before the first hunk is preserved verbatim, as are
// surviving hunks. Returns the empty string when no hunk survives.
func StripDeletionOnlyHunks(patch string) string {
	lines := strings.Split(patch, "\n")

	var prefix []string
	var hunks [][]string
	var cur []string
	seenHunk := false

	for _, l := range lines {
		if strings.HasPrefix(l, "@@") {
			if seenHunk {
				hunks = append(hunks, cur)
			}
			seenHunk = true
			cur = []string{l}
			continue
		}
		if !seenHunk {
			prefix = append(prefix, l)
			continue
		}
		cur = append(cur, l)
	}
	if seenHunk {
		hunks = append(hunks, cur)
	}

	var kept [][]string
	for _, h := range hunks {
		for _, l := range h[1:] {
			if strings.HasPrefix(l, "+") {
				kept = append(kept, h)
				break
			}
		}
	}
	if len(kept) == 0 {
		return ""
	}

	var b strings.Builder
	for _, l := range prefix {
		b.WriteString(l)
		b.WriteString("\n")
	}
	for i, h := range kept {
		for j, l := range h {
			// The final hunk's trailing empty split element would otherwise
			// double the terminating newline.
			if i == len(kept)-1 && j == len(h)-1 && l == "" {
				continue
			}
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderFile wraps a file's patch in the template agents receive.
func RenderFile(f FileWithDiff) string {
	return fmt.Sprintf("### %s\n```diff\n%s\n```", f.Filename, f.Patch)
}

// EstimateTokens returns the token cost of a rendered file: its length
// divided by divisor, rounded up.
func EstimateTokens(f FileWithDiff, divisor int) int {
	if divisor <= 0 {
		divisor = DefaultBudget().TokenEstimateDivisor
	}
	n := len(RenderFile(f))
	return (n + divisor - 1) / divisor
}

// Compress runs the full pipeline: generated-file filtering, deletion-only
// stripping, then budget fitting. It never fails; omitted files are recorded
// with their reason.
func Compress(files []FileWithDiff, budget Budget) Result {
	res := Result{}

	// Stage 1: drop generated files.
	var afterGenerated []FileWithDiff
	for _, f := range files {
		if f.Patch != "" && IsGenerated(f.Patch) {
			res.Omitted.Generated = append(res.Omitted.Generated, f.Filename)
			continue
		}
		afterGenerated = append(afterGenerated, f)
	}

	// Stage 2: strip deletion-only hunks.
	var candidates []FileWithDiff
	for _, f := range afterGenerated {
		if f.Patch == "" {
			candidates = append(candidates, f)
			continue
		}
		stripped := StripDeletionOnlyHunks(f.Patch)
		if stripped == "" {
			res.Omitted.DeletionsOnly = append(res.Omitted.DeletionsOnly, f.Filename)
			continue
		}
		candidates = append(candidates, FileWithDiff{Filename: f.Filename, Patch: stripped})
	}

	// Stage 3: budget fitting.
	res.Files, res.Omitted.DueToBudget = fitBudget(candidates, budget)
	return res
}

type costedFile struct {
	file FileWithDiff
	cost int
}

func fitBudget(files []FileWithDiff, budget Budget) ([]FileWithDiff, []OmittedFile) {
	costed := make([]costedFile, len(files))
	total := 0
	for i, f := range files {
		costed[i] = costedFile{file: f, cost: EstimateTokens(f, budget.TokenEstimateDivisor)}
		total += costed[i].cost
	}

	softLimit := budget.MaxTokens - budget.SoftBufferTokens
	if total <= softLimit {
		return files, nil
	}

	// Over budget: take the most expensive files first so the report shows
	// the big offenders, ties broken by filename for determinism.
	sort.SliceStable(costed, func(i, j int) bool {
		if costed[i].cost != costed[j].cost {
			return costed[i].cost > costed[j].cost
		}
		return costed[i].file.Filename < costed[j].file.Filename
	})

	hardLimit := budget.MaxTokens - budget.HardBufferTokens

	var kept []FileWithDiff
	var omitted []OmittedFile
	running := 0
	for _, c := range costed {
		if running+c.cost <= softLimit && running <= hardLimit {
			kept = append(kept, c.file)
			running += c.cost
			continue
		}
		omitted = append(omitted, describeOmission(c.file, c.cost))
	}

	// Restore the caller's ordering for the kept set.
	index := make(map[string]int, len(files))
	for i, f := range files {
		index[f.Filename] = i
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return index[kept[i].Filename] < index[kept[j].Filename]
	})

	return kept, omitted
}

// describeOmission counts hunk lines on the raw patch text, which works for
// both full diff sections and the bare "@@"-first patches the platform APIs
// return.
func describeOmission(f FileWithDiff, cost int) OmittedFile {
	o := OmittedFile{Filename: f.Filename, EstimatedTokens: cost}
	inHunk := false
	for _, line := range strings.Split(f.Patch, "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			inHunk = true
		case strings.HasPrefix(line, "new file mode "), strings.HasPrefix(line, "--- /dev/null"):
			o.IsNew = true
		case !inHunk:
		case strings.HasPrefix(line, "+"):
			o.Additions++
		case strings.HasPrefix(line, "-"):
			o.Deletions++
		}
	}
	return o
}
