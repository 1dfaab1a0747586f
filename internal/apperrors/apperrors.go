// Package apperrors defines the error taxonomy shared by every FoamCore
// component. Components return *Coded values that carry an HTTP status
// and a public-safe message; internal/api is the only place that writes
// them to a client, which keeps the taxonomy small and keeps filesystem
// paths and other sensitive detail out of anything a client can see.
package apperrors

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Sentinel kinds. Use errors.Is against these, never string comparison.
var (
	ErrInvalidPath         = errors.New("invalid path")
	ErrUnsafeRoot          = errors.New("unsafe root")
	ErrNotFound            = errors.New("not found")
	ErrParse               = errors.New("parse error")
	ErrRuntimeUnavailable  = errors.New("container runtime unavailable")
	ErrCommandRejected     = errors.New("command rejected")
	ErrIO                  = errors.New("io error")
	ErrDocker              = errors.New("docker error")
)

// Coded wraps a sentinel with the HTTP status and the public-safe message
// it should surface. The underlying cause (which may carry a filesystem
// path) is kept only for logs via Unwrap/errors.Cause, never rendered.
type Coded struct {
	cause   error
	Status  int
	Public  string
}

func (c *Coded) Error() string { return c.cause.Error() }
func (c *Coded) Unwrap() error { return c.cause }
func (c *Coded) Cause() error  { return c.cause }

func newCoded(sentinel error, status int, public string, cause error) *Coded {
	if cause == nil {
		cause = sentinel
	}
	return &Coded{cause: errors.Wrap(cause, sentinel.Error()), Status: status, Public: public}
}

// InvalidPath reports a traversal, hidden-segment, or outside-root violation.
// The offending path is never included in Public.
func InvalidPath(cause error) *Coded {
	return newCoded(ErrInvalidPath, http.StatusBadRequest, "Invalid tutorial path", cause)
}

// UnsafeRoot reports an attempt to set the case root to a system directory.
func UnsafeRoot(cause error) *Coded {
	return newCoded(ErrUnsafeRoot, http.StatusBadRequest, "Cannot set case root to system directory", cause)
}

// NotFound reports a missing case or file.
func NotFound(what string, cause error) *Coded {
	return newCoded(ErrNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", what), cause)
}

// RuntimeUnavailable reports that the container runtime could not be reached.
func RuntimeUnavailable(cause error) *Coded {
	return newCoded(ErrRuntimeUnavailable, http.StatusServiceUnavailable, "Docker daemon not available", cause)
}

// CommandRejected reports a command validator failure.
func CommandRejected(public string, cause error) *Coded {
	if public == "" {
		public = "Unsafe command detected"
	}
	return newCoded(ErrCommandRejected, http.StatusBadRequest, public, cause)
}

// IOFailure reports any other host I/O failure. Never carries a path in Public.
func IOFailure(cause error) *Coded {
	return newCoded(ErrIO, http.StatusInternalServerError, "An I/O error occurred.", cause)
}

// Docker reports a container-runtime error. The caller is expected to have
// already sanitized cause's message (see internal/container/sanitize.go)
// before it reaches here, so Public can safely echo it.
func Docker(sanitizedMessage string, cause error) *Coded {
	return newCoded(ErrDocker, http.StatusInternalServerError, sanitizedMessage, cause)
}

// IsParse reports whether err is (or wraps) a parse error. Parse errors are
// recovered locally by callers (treated as zero) and are never surfaced to
// HTTP clients, so there is no corresponding Coded constructor.
func IsParse(err error) bool { return errors.Is(err, ErrParse) }

// Parse wraps a field-file or log-line parse failure.
func Parse(cause error) error { return errors.Wrap(cause, ErrParse.Error()) }
