// Package pathsafe resolves and validates every user-supplied path against
// a configured root. No path derived from a client request reaches
// internal/field, internal/timeindex, internal/logparser, or
// internal/container without having passed through Resolve first.
package pathsafe

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/pkg/errors"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/apperrors"
)

// permissionProbe matches the startup probe directory carved out of the
// hidden-segment rule.
var permissionProbe = regexp.MustCompile(`^\.permission_test_[0-9a-fA-F-]{36}$`)

// posixSystemRoots and windowsSystemPrefixes are rejected by
// AssertSafeRoot. The Windows prefixes are matched case-insensitively; the
// POSIX roots are compared after normalize, which folds case only on
// Windows and macOS.
var posixSystemRoots = []string{"/etc", "/bin", "/usr", "/var", "/proc", "/sys", "/boot", "/dev"}
var windowsSystemPrefixes = []string{`c:\windows`, `c:\program files`}

// Resolve joins user onto base, rejects traversal and hidden segments
// before touching the filesystem, then canonicalizes (resolving symlinks)
// and asserts the result is base or a descendant of it.
//
// Traversal and hidden-segment checks run on the *unresolved* input first
// so that a request containing ".." never causes so much as a stat call.
func Resolve(base, user string) (string, error) {
	if user == "" {
		return "", apperrors.InvalidPath(errors.New("empty path"))
	}

	cleanUser := filepath.ToSlash(user)
	for _, seg := range strings.Split(cleanUser, "/") {
		if seg == ".." {
			return "", apperrors.InvalidPath(errors.New("path traversal segment"))
		}
		if strings.HasPrefix(seg, ".") && seg != "" && seg != "." && !permissionProbe.MatchString(seg) {
			return "", apperrors.InvalidPath(errors.New("hidden path segment"))
		}
	}

	if filepath.IsAbs(filepath.FromSlash(cleanUser)) {
		return "", apperrors.InvalidPath(errors.New("absolute path not allowed"))
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", apperrors.InvalidPath(errors.Wrap(err, "resolving base"))
	}
	joined := filepath.Join(absBase, filepath.FromSlash(cleanUser))

	canonical, err := canonicalize(joined)
	if err != nil {
		return "", apperrors.InvalidPath(errors.Wrap(err, "canonicalizing path"))
	}
	canonicalBase, err := canonicalize(absBase)
	if err != nil {
		return "", apperrors.InvalidPath(errors.Wrap(err, "canonicalizing base"))
	}

	if !isDescendant(canonicalBase, canonical) {
		return "", apperrors.InvalidPath(errors.New("path escapes configured root"))
	}
	return canonical, nil
}

// canonicalize resolves symlinks where the path exists; for a path that
// does not yet exist (e.g. a file about to be created) it walks up to the
// nearest existing ancestor, resolves that, and rejoins the remainder —
// mirroring the common "resolve as much as exists" idiom so callers can
// validate a not-yet-created output path.
func canonicalize(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return normalize(resolved), nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	parent, base := filepath.Split(path)
	parent = strings.TrimSuffix(parent, string(filepath.Separator))
	if parent == "" || parent == path {
		return "", err
	}
	resolvedParent, err2 := canonicalize(parent)
	if err2 != nil {
		return "", err2
	}
	return filepath.Join(resolvedParent, base), nil
}

// normalize applies the case folding needed for correct prefix comparison
// on case-insensitive filesystems (Windows, default macOS).
func normalize(p string) string {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return strings.ToLower(filepath.Clean(p))
	}
	return filepath.Clean(p)
}

// isDescendant reports whether candidate is base or a descendant of base,
// comparing normalized path segments rather than raw string prefixes (a
// string-prefix check would wrongly accept "/case-root-evil" against base
// "/case-root").
func isDescendant(base, candidate string) bool {
	nb, nc := normalize(base), normalize(candidate)
	if nb == nc {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(nc, nb+sep)
}

// AssertSafeRoot rejects the filesystem root, the user's home directory,
// and well-known system directories as a configured case root.
func AssertSafeRoot(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return apperrors.UnsafeRoot(errors.Wrap(err, "resolving candidate root"))
	}
	clean := normalize(abs)

	if clean == normalize(string(filepath.Separator)) || clean == normalize(`C:\`) {
		return apperrors.UnsafeRoot(errors.New("root is filesystem root"))
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if clean == normalize(home) {
			return apperrors.UnsafeRoot(errors.New("root is user home directory"))
		}
	}

	if runtime.GOOS == "windows" {
		lower := strings.ToLower(clean)
		for _, prefix := range windowsSystemPrefixes {
			if strings.HasPrefix(lower, prefix) {
				return apperrors.UnsafeRoot(errors.New("root is a Windows system directory"))
			}
		}
		return nil
	}

	for _, sysRoot := range posixSystemRoots {
		if clean == sysRoot || strings.HasPrefix(clean, sysRoot+"/") {
			return apperrors.UnsafeRoot(errors.New("root is a POSIX system directory"))
		}
	}
	return nil
}

// RequireExists is a thin convenience wrapper: Resolve then stat, turning a
// missing path into apperrors.NotFound instead of leaving callers to do it
// ad hoc at every call site.
func RequireExists(base, user string) (string, os.FileInfo, error) {
	resolved, err := Resolve(base, user)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, apperrors.NotFound("path", err)
		}
		return "", nil, apperrors.IOFailure(err)
	}
	return resolved, info, nil
}
