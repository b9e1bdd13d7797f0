// Package gitctx extracts diffs from a local git repository and detects the
// CI environment a review is running in.
//
// Local review modes (unstaged, staged, untracked, and the combined local
// mode) shell out to git; untracked files have no git diff, so their patches
// are synthesized. Results are filtered by include/exclude glob patterns and
// truncated to a configurable maximum byte size.
package gitctx
