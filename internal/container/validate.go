package container

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/apperrors"
)

const maxCommandLength = 100
const maxScriptNameLength = 50

// dangerousChars blocks shell metacharacters, brace/quote expansion,
// redirection, and comment/escape characters from ever reaching a
// command argument, even though argv composition binds every argument to
// a shell positional parameter rather than interpolating it into a
// script string.
var dangerousChars = []byte{';', '&', '|', '`', '$', '(', ')', '<', '>', '"', '\'', '{', '}', '\\', '#', '\n', '\r'}

var scriptNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateCommand rejects any argument too long, containing a shell
// metacharacter, or containing a traversal segment.
func ValidateCommand(arg string) error {
	if arg == "" {
		return apperrors.CommandRejected("", errors.New("empty command argument"))
	}
	if len(arg) > maxCommandLength {
		return apperrors.CommandRejected("Command too long", errors.New("command exceeds max length"))
	}
	for _, b := range []byte(arg) {
		for _, d := range dangerousChars {
			if b == d {
				return apperrors.CommandRejected("Unsafe command detected", errors.Errorf("disallowed character %q in command", b))
			}
		}
	}
	if strings.Contains(arg, "..") {
		return apperrors.CommandRejected("Unsafe command detected", errors.New("traversal sequence in command"))
	}
	return nil
}

// ValidateScriptName rejects any script filename that is not a bare,
// non-hidden, alphanumeric/dot/underscore/hyphen name, so a script path
// can never escape the case directory or be interpreted as a flag.
func ValidateScriptName(name string) error {
	if name == "" {
		return apperrors.CommandRejected("", errors.New("empty script name"))
	}
	if len(name) > maxScriptNameLength {
		return apperrors.CommandRejected("Script name too long", errors.New("script name exceeds max length"))
	}
	if strings.HasPrefix(name, ".") {
		return apperrors.CommandRejected("Unsafe script name", errors.New("hidden script name"))
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return apperrors.CommandRejected("Unsafe script name", errors.New("script name contains a path separator"))
	}
	if !scriptNamePattern.MatchString(name) {
		return apperrors.CommandRejected("Unsafe script name", errors.New("script name contains disallowed characters"))
	}
	return nil
}

// envScript is the fixed (never user-controlled) shell snippet every run
// executes under "bash -c": it sources the solver environment, enters the
// bind-mounted case directory, and then hands off to the script named by
// $0 with $@ as its arguments — so a command-line value is always bound
// to a positional parameter, never spliced into script text.
const envScript = `source /opt/openfoam/etc/bashrc 2>/dev/null; cd /case && exec "$0" "$@"`

// BuildArgv composes ["bash", "-c", envScript, "./"+script, args...]. Every
// user-controlled value after envScript becomes bash's $0/$1.../$@, so
// none of ValidateCommand's blocked metacharacters could be reinterpreted
// as shell syntax even if one slipped through validation.
func BuildArgv(script string, args []string) []string {
	argv := make([]string, 0, len(args)+4)
	argv = append(argv, "bash", "-c", envScript, "./"+script)
	argv = append(argv, args...)
	return argv
}
