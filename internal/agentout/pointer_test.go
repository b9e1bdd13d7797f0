package agentout

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sideChannelReview = `{"timestamp":"2025-01-02T03:04:05Z","summary":{"filesReviewed":1,"issuesFound":1,"bySeverity":{"CRITICAL":0,"HIGH":1,"MEDIUM":0,"LOW":0},"byCategory":{"SECURITY":1,"QUALITY":0,"STYLE":0,"PERFORMANCE":0,"DOCUMENTATION":0}},"issues":[{"category":"SECURITY","severity":"HIGH","title":"X","file":"a.go","problem":"p","solution":"s"}]}`

func TestResolvePointer_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "review.json")
	require.NoError(t, os.WriteFile(path, []byte(sideChannelReview), 0o644))

	res, err := ResolvePointer(Pointer{OutputType: OutputTypeReview, OutputPath: "review.json"}, dir, OutputTypeReview)
	require.NoError(t, err)
	require.Equal(t, KindIssues, res.Kind)
	require.Len(t, res.Issues, 1)
}

func TestResolvePointer_TypeMismatchIsHardError(t *testing.T) {
	dir := t.TempDir()
	_, err := ResolvePointer(Pointer{OutputType: OutputTypeDescribe}, dir, OutputTypeReview)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected")
}

func TestResolvePointer_FallsBackToDefaultPath(t *testing.T) {
	dir := t.TempDir()
	def := DefaultPointerPath(dir, OutputTypeReview)
	require.NoError(t, os.MkdirAll(filepath.Dir(def), 0o755))
	require.NoError(t, os.WriteFile(def, []byte(sideChannelReview), 0o644))

	// Explicit path is missing; the default location still satisfies it.
	res, err := ResolvePointer(Pointer{OutputType: OutputTypeReview, OutputPath: "nowhere.json"}, dir, OutputTypeReview)
	require.NoError(t, err)
	require.Len(t, res.Issues, 1)
}

func TestResolvePointer_MissingEverywhereFails(t *testing.T) {
	dir := t.TempDir()
	_, err := ResolvePointer(Pointer{OutputType: OutputTypeReview}, dir, OutputTypeReview)
	require.Error(t, err)
}

func TestResolvePointer_RejectsEscapingPath(t *testing.T) {
	dir := t.TempDir()
	_, err := ResolvePointer(Pointer{OutputType: OutputTypeReview, OutputPath: "../outside.json"}, dir, OutputTypeReview)
	require.Error(t, err)
	require.Contains(t, err.Error(), "escapes")

	_, err = ResolvePointer(Pointer{OutputType: OutputTypeReview, OutputPath: "/etc/passwd"}, dir, OutputTypeReview)
	require.Error(t, err)
}

func TestResolvePointer_SideChannelSchemaIsClosed(t *testing.T) {
	dir := t.TempDir()
	bad := strings.Replace(sideChannelReview, `"timestamp"`, `"unexpected"`, 1)
	path := filepath.Join(dir, "review.json")
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := ResolvePointer(Pointer{OutputType: OutputTypeReview, OutputPath: "review.json"}, dir, OutputTypeReview)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
}
