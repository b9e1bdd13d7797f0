// Package config loads and merges drs configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (DRS_MODEL, DRS_FAIL_ON, etc.)
//  3. Config file ($XDG_CONFIG_HOME/drs/config.json)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Save] to persist one, and
// [SetField] to update a single key.
package config
