// Package output renders review reports in the supported formats: colored
// terminal text, JSON, PR-comment markdown, and SARIF v2.1.0.
//
// The "auto" format is resolved by the CLI before it reaches this package:
// text for terminals, JSON in CI.
package output
