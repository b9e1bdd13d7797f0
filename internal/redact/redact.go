package redact

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/drsproject/drs/internal/compress"
)

const placeholder = "[REDACTED]"

type pattern struct {
	name string
	re   *regexp.Regexp
}

// secretPatterns are regex heuristics for common secret types.
var secretPatterns = []pattern{
	{"generic api key", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]{1,2}\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`)},
	{"aws access key id", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws secret access key", regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]{1,2}\s*["']?([A-Za-z0-9/+=]{40})["']?`)},
	{"generic credential assignment", regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]{1,2}\s*["']([^"']{8,})["']`)},
	{"bearer token", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{"private key block", regexp.MustCompile(`-----BEGIN\s+(RSA\s+)?PRIVATE KEY-----`)},
	{"github token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
	{"slack token", regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`)},
	{"anthropic api key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai api key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"hex secret assignment", regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]{1,2}\s*["']?[0-9a-f]{32,}["']?`)},
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	result := text
	for _, p := range secretPatterns {
		result = p.re.ReplaceAllString(result, placeholder)
	}
	return result
}

// ShouldRedactPath checks if a file path matches any of the redaction path patterns.
func ShouldRedactPath(path string, patterns []string) bool {
	for _, pat := range patterns {
		matched, err := filepath.Match(pat, path)
		if err == nil && matched {
			return true
		}
		// Also try matching just the filename for patterns like "**/.env"
		cleanPattern := strings.TrimPrefix(pat, "**/")
		if cleanPattern != pat {
			base := filepath.Base(path)
			matched, err = filepath.Match(cleanPattern, base)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

// Content redacts secrets from content, or replaces it entirely when the
// file path matches a redaction pattern.
func Content(content, path string, redactPaths []string) string {
	if ShouldRedactPath(path, redactPaths) {
		return placeholder + " (file content redacted by path policy)\n"
	}
	return Secrets(content)
}

// Files redacts every patch in the set before it is handed to compression
// and dispatch.
func Files(files []compress.FileWithDiff, redactPaths []string) []compress.FileWithDiff {
	out := make([]compress.FileWithDiff, len(files))
	for i, f := range files {
		out[i] = compress.FileWithDiff{
			Filename: f.Filename,
			Patch:    Content(f.Patch, f.Filename, redactPaths),
		}
	}
	return out
}
