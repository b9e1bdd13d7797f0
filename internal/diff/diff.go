package diff

import (
	"regexp"
	"strconv"
	"strings"
)

// NullPath is the null-device sentinel git uses for created and deleted files.
const NullPath = "/dev/null"

// LineType classifies a single diff line.
type LineType string

const (
	LineAdd     LineType = "add"
	LineDelete  LineType = "delete"
	LineContext LineType = "context"
)

// Line is one content line inside a hunk. OldNumber is zero for added lines
// and NewNumber is zero for deleted lines.
type Line struct {
	Type      LineType
	Content   string
	OldNumber int
	NewNumber int
}

// Hunk is a contiguous block of changes anchored by an @@ header.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// FileDiff is the parsed diff for a single file.
type FileDiff struct {
	OldPath   string
	NewPath   string
	Hunks     []Hunk
	IsNew     bool
	IsDeleted bool
	IsRenamed bool
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parse converts unified-diff text into one FileDiff per file encountered.
// A file begins at a "diff --git" header or at a bare ---/+++ pair. Lines
// that do not fit the format are skipped.
func Parse(text string) []FileDiff {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var files []FileDiff
	var cur *FileDiff
	var hunk *Hunk
	// Remaining line counts of the open hunk; when both reach zero the hunk
	// is closed and ---/+++ lines belong to the next file header again.
	var oldLeft, newLeft int
	// Running counters seeded from the hunk header.
	var oldNum, newNum int

	flushFile := func() {
		if cur != nil {
			files = append(files, *cur)
			cur = nil
		}
		hunk = nil
		oldLeft, newLeft = 0, 0
	}
	flushHunk := func() {
		if hunk != nil && cur != nil {
			cur.Hunks = append(cur.Hunks, *hunk)
		}
		hunk = nil
	}

	inHunk := func() bool { return hunk != nil && (oldLeft > 0 || newLeft > 0) }

	for _, raw := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(raw, "diff --git "):
			flushHunk()
			flushFile()
			cur = &FileDiff{}

		case strings.HasPrefix(raw, "rename from ") && cur != nil:
			cur.IsRenamed = true

		case strings.HasPrefix(raw, "--- ") && !inHunk():
			flushHunk()
			// A bare ---/+++ pair starts a new file when there is no open
			// header or the current file already has content.
			if cur == nil || len(cur.Hunks) > 0 || cur.OldPath != "" {
				flushFile()
				cur = &FileDiff{}
			}
			cur.OldPath = parsePathHeader(raw[len("--- "):])
			cur.IsNew = cur.OldPath == NullPath

		case strings.HasPrefix(raw, "+++ ") && !inHunk() && cur != nil:
			cur.NewPath = parsePathHeader(raw[len("+++ "):])
			cur.IsDeleted = cur.NewPath == NullPath

		case strings.HasPrefix(raw, "@@"):
			m := hunkHeaderRe.FindStringSubmatch(raw)
			if m == nil || cur == nil {
				continue
			}
			flushHunk()
			h := Hunk{
				OldStart: atoi(m[1], 0),
				OldLines: atoi(m[2], 1),
				NewStart: atoi(m[3], 0),
				NewLines: atoi(m[4], 1),
			}
			hunk = &h
			oldLeft, newLeft = h.OldLines, h.NewLines
			oldNum, newNum = h.OldStart, h.NewStart

		default:
			if !inHunk() {
				continue
			}
			if len(raw) == 0 {
				// A blank context line whose leading space was stripped in
				// transit still occupies a line on both sides.
				hunk.Lines = append(hunk.Lines, Line{Type: LineContext, OldNumber: oldNum, NewNumber: newNum})
				oldNum++
				newNum++
				oldLeft--
				newLeft--
				continue
			}
			switch raw[0] {
			case '+':
				if newLeft <= 0 {
					continue
				}
				hunk.Lines = append(hunk.Lines, Line{Type: LineAdd, Content: raw[1:], NewNumber: newNum})
				newNum++
				newLeft--
			case '-':
				if oldLeft <= 0 {
					continue
				}
				hunk.Lines = append(hunk.Lines, Line{Type: LineDelete, Content: raw[1:], OldNumber: oldNum})
				oldNum++
				oldLeft--
			case ' ':
				hunk.Lines = append(hunk.Lines, Line{Type: LineContext, Content: raw[1:], OldNumber: oldNum, NewNumber: newNum})
				oldNum++
				newNum++
				oldLeft--
				newLeft--
			case '\\':
				// "\ No newline at end of file" is metadata, not content.
			default:
				// Malformed content line; skip it.
			}
		}
	}
	flushHunk()
	flushFile()

	return files
}

// parsePathHeader strips the a/ or b/ prefix and any trailing metadata from
// a ---/+++ header value.
func parsePathHeader(p string) string {
	if i := strings.IndexByte(p, '\t'); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)
	if p == NullPath {
		return p
	}
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		return p[2:]
	}
	return p
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ChangedFiles returns the new-side paths of all parsed files, excluding
// deletions. Result never contains the null-device sentinel.
func ChangedFiles(files []FileDiff) []string {
	var out []string
	for _, f := range files {
		if f.IsDeleted || f.NewPath == "" || f.NewPath == NullPath {
			continue
		}
		out = append(out, f.NewPath)
	}
	return out
}

// AddedLine pairs an added line's new-file number with its content.
type AddedLine struct {
	Line    int
	Content string
}

// AddedLines returns all added lines of a single file diff, in order.
func AddedLines(f FileDiff) []AddedLine {
	var out []AddedLine
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			if l.Type == LineAdd {
				out = append(out, AddedLine{Line: l.NewNumber, Content: l.Content})
			}
		}
	}
	return out
}

// ContainsPattern reports whether the pattern matches any added line in any
// of the parsed files. Deleted and context lines are never tested.
func ContainsPattern(files []FileDiff, re *regexp.Regexp) bool {
	for _, f := range files {
		for _, h := range f.Hunks {
			for _, l := range h.Lines {
				if l.Type == LineAdd && re.MatchString(l.Content) {
					return true
				}
			}
		}
	}
	return false
}
