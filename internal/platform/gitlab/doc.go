// Package gitlab implements the platform API against the GitLab REST API.
// GitLab has no bulk inline-comment endpoint, so bulk posting reports
// platform.ErrBulkUnsupported and the poster degrades to sequential
// discussions.
package gitlab
