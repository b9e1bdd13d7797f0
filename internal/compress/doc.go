// Package compress fits a set of per-file diffs into a model token budget.
//
// Compression is a pure three-stage pipeline with no error path: files whose
// patches carry generated-code markers are dropped, hunks containing no added
// lines are stripped, and the remainder is greedily packed against the token
// budget, largest files first. Every omission is recorded with enough detail
// (additions, deletions, estimated tokens) to render a report of what got
// cut and why.
//
// Token costs are estimated as the rendered patch length divided by a
// configured characters-per-token divisor, rounded up.
package compress
