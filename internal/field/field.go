// Package field parses a single OpenFOAM-style field file into a scalar or
// vector value. Reads are zero-copy over a memory map and cached by
// (path, mtime); a header-type lookaside cache is kept per (case,
// filename) because a given field name's type never changes across time
// steps within one case.
package field

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/apperrors"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindScalar Kind = iota
	KindVector
	KindUnresolvable
)

// Value is the sum type {Scalar(float), Vector(float,float,float),
// Unresolvable} the series engine dispatches on.
type Value struct {
	Kind   Kind
	Scalar float64
	Vector [3]float64
}

// Magnitude returns sqrt(x^2+y^2+z^2) for a vector value; it is the
// derived U_mag quantity exposed alongside a vector field's components.
func (v Value) Magnitude() float64 {
	x, y, z := v.Vector[0], v.Vector[1], v.Vector[2]
	return math.Sqrt(x*x + y*y + z*z)
}

// knownScalars / knownVectorField are the fast-path filenames recognized
// without reading the header.
var knownScalars = map[string]bool{
	"p": true, "T": true, "rho": true, "k": true, "epsilon": true,
	"omega": true, "nut": true, "nuTilda": true, "alpha.water": true,
	"p_rgh": true, "phi": true,
}

const knownVectorField = "U"

// headerProbeSize is how much of the file front we search for the class
// declaration when the fast path does not apply.
const headerProbeSize = 2048

type cacheKey struct {
	path  string
	mtime int64
}

type cacheEntry struct {
	value Value
	err   error
}

type headerKey struct {
	caseDir  string
	filename string
}

// Cache is C2's map-level-locked file cache plus the per-(case,filename)
// header-type lookaside. One Cache is shared by every case the process is
// serving; internal/cachegov clears entries by case prefix on eviction.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
	byPath  map[string]int64 // path -> mtime of its one cached entry

	headerMu sync.RWMutex
	headers  map[headerKey]Kind

	parseCount atomic.Int64 // opens of the underlying file; test-observable
}

// ParseCount reports how many times the cache has actually opened and
// parsed a field file (as opposed to serving a cached value). Tests use it
// to assert that a second read of an unchanged file does not re-open it.
func (c *Cache) ParseCount() int64 { return c.parseCount.Load() }

// NewCache builds an empty, ready-to-use Cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[cacheKey]cacheEntry),
		byPath:  make(map[string]int64),
		headers: make(map[headerKey]Kind),
	}
}

// Read parses path, returning the cached value unchanged if the file's
// mtime has not moved since the last Read. checkMtime=false skips the stat
// entirely and trusts any cached entry — used by the time-series engine
// for stable (immutable) time steps that are never rewritten.
func (c *Cache) Read(caseDir, path string, checkMtime bool) (Value, error) {
	if !checkMtime {
		c.mu.RLock()
		if cachedMtime, ok := c.byPath[path]; ok {
			e := c.entries[cacheKey{path: path, mtime: cachedMtime}]
			c.mu.RUnlock()
			return e.value, e.err
		}
		c.mu.RUnlock()
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Value{}, apperrors.NotFound("field file", err)
		}
		return Value{}, apperrors.IOFailure(err)
	}
	mtime := info.ModTime().UnixNano()
	key := cacheKey{path: path, mtime: mtime}

	if checkMtime {
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return e.value, e.err
		}
	}

	value, err := c.parse(caseDir, path, info.Size())
	c.mu.Lock()
	if prevMtime, ok := c.byPath[path]; ok && prevMtime != mtime {
		delete(c.entries, cacheKey{path: path, mtime: prevMtime})
	}
	c.entries[key] = cacheEntry{value: value, err: err}
	c.byPath[path] = mtime
	c.mu.Unlock()
	return value, err
}

// ClearCase drops every cached entry (file cache and header cache) whose
// key belongs to caseDir, implementing C6's per-case purge for C2.
func (c *Cache) ClearCase(caseDir string) {
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k.path, caseDir) {
			delete(c.entries, k)
		}
	}
	for p := range c.byPath {
		if strings.HasPrefix(p, caseDir) {
			delete(c.byPath, p)
		}
	}
	c.mu.Unlock()

	c.headerMu.Lock()
	for k := range c.headers {
		if k.caseDir == caseDir {
			delete(c.headers, k)
		}
	}
	c.headerMu.Unlock()
}

func (c *Cache) parse(caseDir, path string, size int64) (Value, error) {
	filename := filepath.Base(path)

	if knownScalars[filename] {
		return c.parseBody(caseDir, filename, path, size, KindScalar)
	}
	if filename == knownVectorField {
		return c.parseBody(caseDir, filename, path, size, KindVector)
	}

	if kind, ok := c.cachedHeaderKind(caseDir, filename); ok {
		return c.parseBody(caseDir, filename, path, size, kind)
	}

	kind, err := c.detectHeaderKind(path, size)
	if err != nil {
		return Value{}, err
	}
	c.setHeaderKind(caseDir, filename, kind)
	return c.parseBody(caseDir, filename, path, size, kind)
}

func (c *Cache) cachedHeaderKind(caseDir, filename string) (Kind, bool) {
	c.headerMu.RLock()
	defer c.headerMu.RUnlock()
	k, ok := c.headers[headerKey{caseDir: caseDir, filename: filename}]
	return k, ok
}

func (c *Cache) setHeaderKind(caseDir, filename string, kind Kind) {
	c.headerMu.Lock()
	c.headers[headerKey{caseDir: caseDir, filename: filename}] = kind
	c.headerMu.Unlock()
}

// detectHeaderKind maps the first headerProbeSize bytes of the file and
// searches for the class declaration.
func (c *Cache) detectHeaderKind(path string, size int64) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, apperrors.IOFailure(err)
	}
	defer f.Close()

	probeSize := size
	if probeSize > headerProbeSize {
		probeSize = headerProbeSize
	}
	if probeSize == 0 {
		return 0, apperrors.Parse(errors.New("empty field file"))
	}

	data, unmap, err := mapFile(f, probeSize)
	if err != nil {
		return 0, apperrors.IOFailure(err)
	}
	defer unmap()

	switch {
	case bytes.Contains(data, []byte("class volScalarField;")):
		return KindScalar, nil
	case bytes.Contains(data, []byte("class volVectorField;")):
		return KindVector, nil
	default:
		return 0, apperrors.Parse(errors.Errorf("no recognized field class in %s", filepath.Base(path)))
	}
}

// parseBody maps the whole file and extracts the internalField value.
func (c *Cache) parseBody(caseDir, filename, path string, size int64, kind Kind) (Value, error) {
	if size == 0 {
		return Value{}, apperrors.Parse(errors.New("empty field file"))
	}
	f, err := os.Open(path)
	if err != nil {
		return Value{}, apperrors.IOFailure(err)
	}
	defer f.Close()
	c.parseCount.Add(1)

	data, unmap, err := mapFile(f, size)
	if err != nil {
		return Value{}, apperrors.IOFailure(err)
	}
	defer unmap()

	return parseInternalField(data, kind)
}

const internalFieldToken = "internalField"

// parseInternalField locates the internalField statement and dispatches to
// the nonuniform / uniform-variable / uniform-literal parse paths.
func parseInternalField(data []byte, kind Kind) (Value, error) {
	idx := bytes.Index(data, []byte(internalFieldToken))
	if idx < 0 {
		return Value{}, apperrors.Parse(errors.New("internalField not found"))
	}
	rest := data[idx+len(internalFieldToken):]
	window := rest
	if len(window) > 220 {
		window = window[:220]
	}
	trimmed := bytes.TrimLeft(window, " \t\r\n")

	switch {
	case bytes.HasPrefix(trimmed, []byte("nonuniform")):
		return parseNonuniform(rest, kind)
	case bytes.HasPrefix(trimmed, []byte("uniform")):
		afterUniform := bytes.TrimLeft(trimmed[len("uniform"):], " \t")
		if len(afterUniform) > 0 && afterUniform[0] == '$' {
			name := readVarName(afterUniform[1:])
			return resolveVariable(data, idx, name, kind, 0)
		}
		return parseUniformLiteral(afterUniform, kind)
	default:
		return Value{}, apperrors.Parse(errors.New("unrecognized internalField form"))
	}
}

func readVarName(b []byte) string {
	end := 0
	for end < len(b) && b[end] != ';' && !isSpace(b[end]) {
		end++
	}
	return string(b[:end])
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }

// parseNonuniform finds the enclosing parentheses (constrained to end
// before the following boundaryField block) and parses all floats between
// them with a comment-tolerant numeric-token extractor.
func parseNonuniform(rest []byte, kind Kind) (Value, error) {
	boundary := bytes.Index(rest, []byte("boundaryField"))
	scope := rest
	if boundary >= 0 {
		scope = rest[:boundary]
	}
	open := bytes.IndexByte(scope, '(')
	if open < 0 {
		return Value{}, apperrors.Parse(errors.New("nonuniform list missing ("))
	}
	closeIdx := matchingParen(scope, open)
	if closeIdx < 0 {
		return Value{}, apperrors.Parse(errors.New("nonuniform list missing matching )"))
	}
	numbers := extractNumbers(scope[open+1 : closeIdx])
	if len(numbers) == 0 {
		return Value{}, apperrors.Parse(errors.New("nonuniform list has no numbers"))
	}
	return reduce(numbers, kind)
}

// matchingParen finds the index (within s) of the ')' matching the '(' at
// openIdx, skipping over C-style and C++-style comments so that a ')'
// inside a comment is never mistaken for the list terminator.
func matchingParen(s []byte, openIdx int) int {
	depth := 0
	i := openIdx
	for i < len(s) {
		switch {
		case s[i] == '/' && i+1 < len(s) && s[i+1] == '*':
			end := bytes.Index(s[i+2:], []byte("*/"))
			if end < 0 {
				return -1
			}
			i += 2 + end + 2
			continue
		case s[i] == '/' && i+1 < len(s) && s[i+1] == '/':
			end := bytes.IndexByte(s[i:], '\n')
			if end < 0 {
				return -1
			}
			i += end + 1
			continue
		case s[i] == '(':
			depth++
		case s[i] == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
		i++
	}
	return -1
}

// extractNumbers pulls every numeric token out of s, tolerating interleaved
// comments and parenthesis grouping for vector tuples.
func extractNumbers(s []byte) []float64 {
	var out []float64
	i := 0
	for i < len(s) {
		switch {
		case s[i] == '/' && i+1 < len(s) && s[i+1] == '*':
			end := bytes.Index(s[i+2:], []byte("*/"))
			if end < 0 {
				i = len(s)
				continue
			}
			i += 2 + end + 2
			continue
		case s[i] == '/' && i+1 < len(s) && s[i+1] == '/':
			end := bytes.IndexByte(s[i:], '\n')
			if end < 0 {
				i = len(s)
				continue
			}
			i += end + 1
			continue
		case isNumberStart(s[i]):
			start := i
			i++
			for i < len(s) && isNumberBody(s[i]) {
				i++
			}
			if v, err := strconv.ParseFloat(string(s[start:i]), 64); err == nil {
				out = append(out, v)
			}
		default:
			i++
		}
	}
	return out
}

func isNumberStart(b byte) bool {
	return (b >= '0' && b <= '9') || b == '-' || b == '+' || b == '.'
}

func isNumberBody(b byte) bool {
	return (b >= '0' && b <= '9') || b == '.' || b == 'e' || b == 'E' || b == '-' || b == '+'
}

// reduce turns a flat number list into the scalar mean or vector
// component-wise mean.
func reduce(numbers []float64, kind Kind) (Value, error) {
	if kind == KindScalar {
		var sum float64
		for _, n := range numbers {
			sum += n
		}
		return Value{Kind: KindScalar, Scalar: sum / float64(len(numbers))}, nil
	}

	if len(numbers)%3 != 0 {
		return Value{}, apperrors.Parse(errors.New("vector list length not a multiple of 3"))
	}
	var sx, sy, sz float64
	triples := len(numbers) / 3
	for t := 0; t < triples; t++ {
		sx += numbers[t*3]
		sy += numbers[t*3+1]
		sz += numbers[t*3+2]
	}
	n := float64(triples)
	return Value{Kind: KindVector, Vector: [3]float64{sx / n, sy / n, sz / n}}, nil
}

// parseUniformLiteral parses "uniform <value>;" (scalar) or
// "uniform (x y z);" (vector), trimming any comment that precedes the
// semicolon — a bare regex would misread a value followed by a comment
// before ';'.
func parseUniformLiteral(b []byte, kind Kind) (Value, error) {
	semi := bytes.IndexByte(b, ';')
	if semi < 0 {
		return Value{}, apperrors.Parse(errors.New("uniform literal missing ;"))
	}
	literal := stripTrailingComment(b[:semi])

	if kind == KindScalar {
		numbers := extractNumbers(literal)
		if len(numbers) != 1 {
			return Value{}, apperrors.Parse(errors.New("uniform scalar literal malformed"))
		}
		return Value{Kind: KindScalar, Scalar: numbers[0]}, nil
	}

	numbers := extractNumbers(literal)
	if len(numbers) != 3 {
		return Value{}, apperrors.Parse(errors.New("uniform vector literal malformed"))
	}
	return Value{Kind: KindVector, Vector: [3]float64{numbers[0], numbers[1], numbers[2]}}, nil
}

func stripTrailingComment(b []byte) []byte {
	if i := bytes.Index(b, []byte("//")); i >= 0 {
		b = b[:i]
	}
	if i := bytes.Index(b, []byte("/*")); i >= 0 {
		b = b[:i]
	}
	return b
}

const maxVariableRecursion = 8

// resolveVariable searches backward from internalField's offset for a
// "name <value>;" definition, recursing (bounded) if that value is itself
// a $-reference. A value containing "#calc" is unresolvable; callers
// treat Unresolvable as zero.
func resolveVariable(data []byte, beforeOffset int, name string, kind Kind, depth int) (Value, error) {
	if depth > maxVariableRecursion {
		return Value{}, apperrors.Parse(errors.New("variable resolution recursion too deep"))
	}
	prefix := data[:beforeOffset]
	needle := []byte(name + " ")
	idx := bytes.LastIndex(prefix, needle)
	if idx < 0 {
		needle = []byte(name + "\t")
		idx = bytes.LastIndex(prefix, needle)
	}
	if idx < 0 {
		return Value{}, apperrors.Parse(errors.Errorf("variable %s not defined", name))
	}

	after := prefix[idx+len(name):]
	semi := bytes.IndexByte(after, ';')
	if semi < 0 {
		return Value{}, apperrors.Parse(errors.Errorf("variable %s definition missing ;", name))
	}
	valueBytes := bytes.TrimSpace(after[:semi])

	if bytes.Contains(valueBytes, []byte("#calc")) {
		return Value{Kind: KindUnresolvable}, nil
	}
	if len(valueBytes) > 0 && valueBytes[0] == '$' {
		return resolveVariable(data, idx, string(valueBytes[1:]), kind, depth+1)
	}

	return parseUniformLiteral(append(valueBytes, ';'), kind)
}
