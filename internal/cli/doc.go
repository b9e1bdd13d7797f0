// Package cli wires together the Cobra command tree for the drs binary.
//
// It defines the root command and all subcommands (review, describe, config,
// cache, version), binds flags, reads configuration, drives the review
// pipeline, and returns deterministic exit codes for CI gating.
package cli
