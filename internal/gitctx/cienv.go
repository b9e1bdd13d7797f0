package gitctx

import "os"

// CIContext describes the GitLab CI/CD environment a review may be running
// in. Outside CI every field is zero.
type CIContext struct {
	IsCI         bool
	IsMR         bool
	MRIID        string
	SourceBranch string
	TargetBranch string
	ProjectPath  string
	CommitSHA    string
}

// DetectCI reads the GitLab-provided pipeline variables.
func DetectCI() CIContext {
	mrIID := os.Getenv("CI_MERGE_REQUEST_IID")
	if mrIID == "" {
		mrIID = os.Getenv("CI_MERGE_REQUEST_ID")
	}
	return CIContext{
		IsCI:         os.Getenv("CI") != "",
		IsMR:         os.Getenv("CI_PIPELINE_SOURCE") == "merge_request_event",
		MRIID:        mrIID,
		SourceBranch: os.Getenv("CI_MERGE_REQUEST_SOURCE_BRANCH_NAME"),
		TargetBranch: os.Getenv("CI_MERGE_REQUEST_TARGET_BRANCH_NAME"),
		ProjectPath:  os.Getenv("CI_PROJECT_PATH"),
		CommitSHA:    os.Getenv("CI_COMMIT_SHA"),
	}
}
