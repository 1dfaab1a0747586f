package container

import "regexp"

// quotedPathPattern matches a single- or double-quoted absolute path
// (POSIX or Windows, spaces allowed inside the quotes) and is replaced
// whole, quotes included.
var quotedPathPattern = regexp.MustCompile(`(['"])(?:/|[A-Za-z]:\\)[^'"]*['"]`)

// posixPathPattern and windowsPathPattern only match an absolute path
// that starts right after whitespace or the beginning of the string, so a
// URL's "://" never qualifies as a match start and is left untouched.
// Each path segment (split on "/" or "\") may contain embedded spaces, so
// an unquoted path with spaces is redacted in full rather than only up to
// its first space; matching stops at a colon, comma, quote, or newline,
// which are never legal path characters but do mark clause boundaries.
var posixPathPattern = regexp.MustCompile(`(^|\s)((?:/[^/:,'"\n]*)+)`)
var windowsPathPattern = regexp.MustCompile(`(^|\s)([A-Za-z]:(?:\\[^\\:,'"\n]*)+)`)

const redactedPath = "[REDACTED_PATH]"

// SanitizeDockerError strips filesystem paths out of a container-runtime
// error message before it reaches apperrors.Docker, so a failing bind
// mount never echoes the host's directory layout to a client.
func SanitizeDockerError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = quotedPathPattern.ReplaceAllString(msg, redactedPath)
	msg = windowsPathPattern.ReplaceAllString(msg, "${1}"+redactedPath)
	msg = posixPathPattern.ReplaceAllString(msg, "${1}"+redactedPath)
	return msg
}
