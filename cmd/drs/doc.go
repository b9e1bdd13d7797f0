// Drs is a CLI for reviewing code changes with specialized review agents.
//
// It reviews local, staged, unstaged, and range diffs as well as GitHub pull
// requests and GitLab merge requests, emitting structured findings with
// deterministic exit codes and optionally posting deduplicated inline
// comments back to the platform.
//
// Usage:
//
//	drs review local                  # review staged, unstaged, and untracked changes
//	drs review staged                 # review staged changes
//	drs review unstaged               # review working tree changes
//	drs review range origin/main..HEAD  # review a revision range
//	drs review pr owner/repo#42 --post  # review a GitHub PR and post findings
//	drs review mr                     # review the current GitLab MR in CI
//	drs describe pr owner/repo#42     # generate a PR description
//
// See https://github.com/drsproject/drs for full documentation.
package main
