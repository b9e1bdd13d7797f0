package gitctx

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/drsproject/drs/internal/compress"
)

// DiffOptions controls how diffs are gathered.
type DiffOptions struct {
	ContextLines int
	MaxDiffBytes int
	Include      []string
	Exclude      []string
}

// DiffResult holds the collected diff and metadata.
type DiffResult struct {
	Diff  string
	Files []string
	Mode  string
	Range string
	Repo  RepoMeta
}

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
}

// GetRepoMeta collects repository metadata from git.
func GetRepoMeta() (RepoMeta, error) {
	root, err := gitOutput("rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, fmt.Errorf("not a git repository: %w", err)
	}
	head, err := gitOutput("rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := gitOutput("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	return RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

// Unstaged returns the diff of working tree vs index.
func Unstaged(opts DiffOptions) (DiffResult, error) {
	args := buildDiffArgs(opts)
	diff, err := gitOutput(append([]string{"diff"}, args...)...)
	if err != nil {
		return DiffResult{}, fmt.Errorf("git diff: %w", err)
	}
	return buildResult(diff, "unstaged", "", opts)
}

// Staged returns the diff of index vs HEAD.
func Staged(opts DiffOptions) (DiffResult, error) {
	args := buildDiffArgs(opts)
	diff, err := gitOutput(append([]string{"diff", "--cached"}, args...)...)
	if err != nil {
		return DiffResult{}, fmt.Errorf("git diff --cached: %w", err)
	}
	return buildResult(diff, "staged", "", opts)
}

// Untracked synthesizes new-file diffs for files git does not track yet,
// since `git diff` never covers them.
func Untracked(opts DiffOptions) (DiffResult, error) {
	out, err := gitOutput("ls-files", "--others", "--exclude-standard")
	if err != nil {
		return DiffResult{}, fmt.Errorf("git ls-files --others: %w", err)
	}

	context := opts.ContextLines
	if context <= 0 {
		context = 3
	}

	var combined strings.Builder
	for _, path := range strings.Split(strings.TrimSpace(out), "\n") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if len(opts.Include) > 0 && !MatchesAny(path, opts.Include) {
			continue
		}
		section, err := newFileDiff(path, context)
		if err != nil {
			continue // unreadable or binary, skip
		}
		combined.WriteString(section)
	}
	return buildResult(combined.String(), "untracked", "", opts)
}

// Local combines unstaged, staged, and untracked changes into one diff, the
// full picture of uncommitted work.
func Local(opts DiffOptions) (DiffResult, error) {
	staged, err := Staged(opts)
	if err != nil {
		return DiffResult{}, err
	}
	unstaged, err := Unstaged(opts)
	if err != nil {
		return DiffResult{}, err
	}
	untracked, err := Untracked(opts)
	if err != nil {
		return DiffResult{}, err
	}

	combined := staged.Diff + unstaged.Diff + untracked.Diff
	res, err := buildResult(combined, "local", "", opts)
	if err != nil {
		return DiffResult{}, err
	}
	return res, nil
}

// FileDiffs splits the collected diff into per-file patches.
func (r DiffResult) FileDiffs() []compress.FileWithDiff {
	sections := splitDiffSections(r.Diff)
	out := make([]compress.FileWithDiff, 0, len(sections))
	for _, s := range sections {
		path := extractPathFromSection(s)
		if path == "" {
			continue
		}
		out = append(out, compress.FileWithDiff{Filename: path, Patch: s})
	}
	return out
}

// Range returns the combined diff for a revision range.
func Range(revRange string, mergeBase bool, opts DiffOptions) (DiffResult, error) {
	args := buildDiffArgs(opts)
	diffRange := revRange
	if mergeBase && strings.Contains(revRange, "..") && !strings.Contains(revRange, "...") {
		diffRange = strings.Replace(revRange, "..", "...", 1)
	}
	cmdArgs := append([]string{"diff", diffRange}, args...)
	diff, err := gitOutput(cmdArgs...)
	if err != nil {
		return DiffResult{}, fmt.Errorf("git diff %s: %w", revRange, err)
	}
	return buildResult(diff, "range", revRange, opts)
}

// maxSynthBytes caps the size of a file we synthesize a diff for.
const maxSynthBytes = 1 << 20 // 1MB

// newFileDiff renders an untracked file as a unified new-file diff.
func newFileDiff(path string, context int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) > maxSynthBytes {
		return "", fmt.Errorf("%s exceeds synthesis size limit", path)
	}
	if strings.ContainsRune(string(data), '\x00') {
		return "", fmt.Errorf("%s looks binary", path)
	}

	body, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        []string{},
		B:        splitLinesKeepNL(string(data)),
		FromFile: "/dev/null",
		ToFile:   "b/" + path,
		Context:  context,
	})
	if err != nil || body == "" {
		return "", fmt.Errorf("diffing %s: %w", path, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", path, path)
	fmt.Fprintf(&b, "new file mode 100644\n")
	b.WriteString(body)
	return b.String(), nil
}

func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.SplitAfter(s, "\n")
}

func buildDiffArgs(opts DiffOptions) []string {
	var args []string
	if opts.ContextLines > 0 {
		args = append(args, fmt.Sprintf("-U%d", opts.ContextLines))
	}
	args = append(args, "--")
	if len(opts.Include) > 0 {
		for _, p := range opts.Include {
			if p != "**/*" {
				args = append(args, p)
			}
		}
	}
	return args
}

func buildResult(diff, mode, rangeStr string, opts DiffOptions) (DiffResult, error) {
	meta, err := GetRepoMeta()
	if err != nil {
		meta = RepoMeta{}
	}

	files := extractFiles(diff)

	// Filter excludes before truncating so excluded files don't consume the byte budget
	if len(opts.Exclude) > 0 {
		diff = filterExcluded(diff, opts.Exclude)
		files = filterFileList(files, opts.Exclude)
	}

	if opts.MaxDiffBytes > 0 && len(diff) > opts.MaxDiffBytes {
		diff = diff[:opts.MaxDiffBytes] + "\n... (diff truncated at max-diff-bytes limit)\n"
	}

	return DiffResult{
		Diff:  diff,
		Files: files,
		Mode:  mode,
		Range: rangeStr,
		Repo:  meta,
	}, nil
}

func extractFiles(diff string) []string {
	var files []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+++ b/") {
			f := strings.TrimPrefix(line, "+++ b/")
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files
}

func filterExcluded(diff string, excludes []string) string {
	sections := splitDiffSections(diff)
	var kept []string
	for _, section := range sections {
		path := extractPathFromSection(section)
		if path == "" || !MatchesAny(path, excludes) {
			kept = append(kept, section)
		}
	}
	return strings.Join(kept, "")
}

func splitDiffSections(diff string) []string {
	var sections []string
	lines := strings.Split(diff, "\n")
	var current strings.Builder
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	return sections
}

func extractPathFromSection(section string) string {
	for _, line := range strings.Split(section, "\n") {
		if strings.HasPrefix(line, "+++ b/") {
			return strings.TrimPrefix(line, "+++ b/")
		}
	}
	return ""
}

func filterFileList(files []string, excludes []string) []string {
	var result []string
	for _, f := range files {
		if !MatchesAny(f, excludes) {
			result = append(result, f)
		}
	}
	return result
}

// MatchesAny returns true if the path matches any of the given glob patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

func gitOutput(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), fmt.Errorf("%s: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}
