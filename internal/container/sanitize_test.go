package container

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeDockerErrorRedactsQuotedUnixPath(t *testing.T) {
	sensitive := "/home/user/secret/case/data"
	err := errors.New("Bind mount failed: '" + sensitive + "' does not exist")
	out := SanitizeDockerError(err)
	assert.NotContains(t, out, sensitive)
	assert.Contains(t, out, redactedPath)
	assert.Contains(t, out, "Bind mount failed")
}

func TestSanitizeDockerErrorRedactsQuotedWindowsPath(t *testing.T) {
	sensitive := `C:\Users\Admin\Secret\Case`
	err := errors.New("Bind mount failed: '" + sensitive + "' does not exist")
	out := SanitizeDockerError(err)
	assert.NotContains(t, out, sensitive)
	assert.Contains(t, out, redactedPath)
}

func TestSanitizeDockerErrorRedactsPathWithSpaces(t *testing.T) {
	sensitive := "/home/user/my secret project/case data"
	err := errors.New("Bind mount failed: '" + sensitive + "' does not exist")
	out := SanitizeDockerError(err)
	assert.NotContains(t, out, sensitive)
	assert.Contains(t, out, redactedPath)
}

func TestSanitizeDockerErrorRedactsUnquotedUnixPath(t *testing.T) {
	sensitive := "/home/user/secret/case/data"
	err := errors.New("bind source path does not exist: " + sensitive)
	out := SanitizeDockerError(err)
	assert.NotContains(t, out, sensitive)
	assert.Contains(t, out, redactedPath)
}

func TestSanitizeDockerErrorRedactsUnquotedWindowsPath(t *testing.T) {
	sensitive := `C:\Users\Admin\Secret\Case`
	err := errors.New("bind source path does not exist: " + sensitive)
	out := SanitizeDockerError(err)
	assert.NotContains(t, out, sensitive)
	assert.Contains(t, out, redactedPath)
}

func TestSanitizeDockerErrorRedactsUnquotedPathWithSpaces(t *testing.T) {
	sensitive := "/home/user/My Documents/file"
	err := errors.New("bind source path does not exist: " + sensitive)
	out := SanitizeDockerError(err)
	assert.NotContains(t, out, sensitive)
	assert.NotContains(t, out, "Documents")
	assert.Contains(t, out, redactedPath)
}

func TestSanitizeDockerErrorPreservesMessageWithoutPath(t *testing.T) {
	err := errors.New("Connection refused")
	assert.Equal(t, "Connection refused", SanitizeDockerError(err))
}

func TestSanitizeDockerErrorPreservesURL(t *testing.T) {
	err := errors.New("failed to pull image from http://registry.internal/foamcore/solver")
	out := SanitizeDockerError(err)
	assert.Contains(t, out, "http://registry.internal/foamcore/solver")
}
