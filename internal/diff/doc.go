// Package diff parses unified-diff text into structured per-file hunks and
// lines, and answers line-validity queries against the parsed result.
//
// The parser is tolerant by design: malformed or unrecognized lines are
// skipped, never reported as errors, and empty input yields an empty result.
// Added and context lines carry new-file line numbers, deleted and context
// lines carry old-file line numbers, both seeded from each hunk's @@ header.
//
// LineValidator indexes the add/context lines of a parsed diff so callers can
// check whether a given file/line pair is a legal target for an inline
// comment before talking to a platform API.
package diff
