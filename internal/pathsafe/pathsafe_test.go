package pathsafe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRejectsTraversal(t *testing.T) {
	base := t.TempDir()
	_, err := Resolve(base, "../x")
	require.Error(t, err)
}

func TestResolveRejectsAbsoluteEscape(t *testing.T) {
	base := t.TempDir()
	_, err := Resolve(base, "/etc/passwd")
	require.Error(t, err)
}

func TestResolveRejectsAbsolutePathEvenWhenNameCollidesWithDescendant(t *testing.T) {
	base := t.TempDir()
	// "/etc" must never be silently folded under base, even though
	// filepath.Join(base, "/etc") would otherwise land inside it.
	_, err := Resolve(base, "/etc")
	require.Error(t, err)
}

func TestResolveRejectsHidden(t *testing.T) {
	base := t.TempDir()
	_, err := Resolve(base, ".hidden")
	require.Error(t, err)
}

func TestResolveAllowsPermissionProbe(t *testing.T) {
	base := t.TempDir()
	p, err := Resolve(base, ".permission_test_123e4567-e89b-12d3-a456-426614174000")
	require.NoError(t, err)
	assert.Contains(t, p, "permission_test")
}

func TestResolveAcceptsDescendant(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "case1", "0.1"), 0o755))
	p, err := Resolve(base, filepath.Join("case1", "0.1"))
	require.NoError(t, err)
	assert.True(t, isDescendant(base, p))
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o644))
	link := filepath.Join(base, "escape")
	require.NoError(t, os.Symlink(outside, link))

	_, err := Resolve(base, "escape/secret")
	require.Error(t, err)
}

func TestAssertSafeRootRejectsFilesystemRoot(t *testing.T) {
	require.Error(t, AssertSafeRoot(string(filepath.Separator)))
}

func TestAssertSafeRootRejectsSystemDir(t *testing.T) {
	if _, err := os.Stat("/etc"); err != nil {
		t.Skip("no /etc on this platform")
	}
	require.Error(t, AssertSafeRoot("/etc"))
}

func TestAssertSafeRootAllowsOrdinaryDir(t *testing.T) {
	require.NoError(t, AssertSafeRoot(t.TempDir()))
}
