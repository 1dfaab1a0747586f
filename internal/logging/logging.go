// Package logging provides the leveled, tag-prefixed logging helpers used
// throughout FoamCore: package-level functions over a swappable writer
// rather than a logger threaded through every call site. Callers pass a
// short component tag ("api", "container", "series", ...) instead of a
// structured field set, in a terse, printf-style convention.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

// Level controls which severities are emitted.
type Level int32

const (
	LevelError Level = iota
	LevelInfo
	LevelDebug
)

var (
	mu       sync.Mutex
	out      io.Writer = os.Stderr
	logger             = log.New(out, "", log.LstdFlags)
	minLevel atomic.Int32
)

func init() { minLevel.Store(int32(LevelInfo)) }

// SetOutput redirects all log output; used by tests to capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	logger = log.New(w, "", log.LstdFlags)
}

// SetLevel sets the minimum level emitted.
func SetLevel(l Level) { minLevel.Store(int32(l)) }

func emit(l Level, tag, prefix, format string, args ...interface{}) {
	if Level(minLevel.Load()) < l {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	logger.Printf("%s %s: %s", prefix, tag, fmt.Sprintf(format, args...))
}

// Errorf logs at error level. tag is a short component name, e.g. "container".
func Errorf(tag, format string, args ...interface{}) { emit(LevelError, tag, "ERROR", format, args...) }

// Infof logs at info level.
func Infof(tag, format string, args ...interface{}) { emit(LevelInfo, tag, "INFO", format, args...) }

// Debugf logs at debug level. Disabled by default.
func Debugf(tag, format string, args ...interface{}) { emit(LevelDebug, tag, "DEBUG", format, args...) }
