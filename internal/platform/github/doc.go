// Package github implements the platform API against the GitHub REST API.
// Authentication is either a personal access token or a GitHub App
// installation.
package github
