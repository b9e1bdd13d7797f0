// Package review defines the issue model shared by the whole pipeline: the
// ReviewIssue shape agents return, severity and category enumerations,
// summary statistics, and the deterministic fingerprint used to suppress
// duplicate postings.
package review
