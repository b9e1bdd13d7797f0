// Package platform defines the uniform comment API the poster drives and
// the deduplicating, position-validating poster itself. Platform adapters
// (GitHub, GitLab) implement the API in subpackages.
package platform
