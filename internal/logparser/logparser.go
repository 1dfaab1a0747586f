// Package logparser incrementally extracts residual time series from a
// solver log that grows append-only. Each call does O(delta) work:
// unchanged (mtime, size) short-circuits to the cached result; a grown
// file reads only the new tail; a shrunk or reset file is reparsed from
// scratch.
package logparser

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/apperrors"
)

var errSymlink = errors.New("refusing to follow symlinked log file")

// Residuals is the per-case result: parallel Time list plus one ordered
// list per solved field, all equal length.
type Residuals struct {
	Time   []float64
	Fields map[string][]float64
}

// clone returns a deep copy so callers can't mutate the cached slices: a
// reader must receive a fresh slice, never alias the cache's own.
func (r *Residuals) clone() *Residuals {
	out := &Residuals{
		Time:   append([]float64(nil), r.Time...),
		Fields: make(map[string][]float64, len(r.Fields)),
	}
	for k, v := range r.Fields {
		out.Fields[k] = append([]float64(nil), v...)
	}
	return out
}

type state struct {
	mtime  int64
	size   int64
	offset int64
	data   *Residuals
}

// Cache holds one resumable state per log path under a single map-level
// lock.
type Cache struct {
	mu     sync.Mutex
	states map[string]*state
}

// NewCache builds an empty, ready-to-use Cache.
func NewCache() *Cache {
	return &Cache{states: make(map[string]*state)}
}

// Residuals parses (or resumes parsing) logPath and returns the current
// residual series. The file descriptor is held only for the duration of
// this call.
func (c *Cache) Residuals(logPath string) (*Residuals, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := openNoFollow(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Residuals{Fields: map[string][]float64{}}, nil
		}
		return nil, apperrors.IOFailure(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, apperrors.IOFailure(err)
	}
	mtime := info.ModTime().UnixNano()
	size := info.Size()

	prev := c.states[logPath]

	if prev != nil && prev.mtime == mtime && prev.size == size {
		return prev.data.clone(), nil
	}

	var st *state
	if prev != nil && size > prev.size && prev.size > 0 {
		st = &state{mtime: prev.mtime, size: prev.size, offset: prev.offset, data: prev.data}
		if _, err := f.Seek(prev.offset, io.SeekStart); err != nil {
			return nil, apperrors.IOFailure(err)
		}
	} else {
		st = &state{data: &Residuals{Fields: map[string][]float64{}}}
	}

	if err := parseTail(f, st); err != nil {
		return nil, err
	}
	st.mtime = mtime
	st.size = size
	c.states[logPath] = st

	return st.data.clone(), nil
}

// parseTail reads complete lines from r (positioned at the resume offset)
// and folds them into st.data, advancing st.offset by exactly the bytes of
// each successfully processed line. The trailing partial line (no
// terminating newline) is never consumed, so the next call re-reads it
// complete.
func parseTail(r io.Reader, st *state) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// line (if any) is the trailing partial line; leave it unread
				// by not advancing the offset for it.
				return nil
			}
			return apperrors.IOFailure(err)
		}
		processLine(st.data, strings.TrimRight(line, "\r\n"))
		st.offset += int64(len(line))
	}
}

const (
	timePrefix       = "Time"
	solvingForToken  = "Solving for "
	initialResidTok  = "Initial residual ="
)

// processLine parses one complete log line, isolating errors to that
// line: a malformed line is simply skipped, never discarding prior state.
func processLine(data *Residuals, line string) {
	trimmed := strings.TrimLeft(line, " \t")
	switch {
	case strings.HasPrefix(trimmed, timePrefix):
		if v, ok := parseTimeLine(trimmed); ok {
			data.Time = append(data.Time, v)
		}
	case strings.Contains(line, solvingForToken):
		if len(data.Time) == 0 {
			return
		}
		parseSolvingLine(data, line)
	}
}

// parseTimeLine accepts "Time = <float>[unit]" only when the text between
// "Time" and the first "=" is whitespace-only, rejecting lines like
// "Time step = ...". A trailing unit suffix on the value ("24s") is
// ignored.
func parseTimeLine(line string) (float64, bool) {
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return 0, false
	}
	between := line[len(timePrefix):eq]
	if strings.TrimSpace(between) != "" {
		return 0, false
	}
	valueField := strings.TrimSpace(line[eq+1:])
	numEnd := 0
	for numEnd < len(valueField) && isFloatByte(valueField[numEnd]) {
		numEnd++
	}
	if numEnd == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(valueField[:numEnd], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isFloatByte(b byte) bool {
	return (b >= '0' && b <= '9') || b == '.' || b == '-' || b == '+' || b == 'e' || b == 'E'
}

// parseSolvingLine extracts the field name and its initial residual,
// back-filling zeros for any field first seen after the log's first time
// step so every field's list stays the same length as Time.
func parseSolvingLine(data *Residuals, line string) {
	start := strings.Index(line, solvingForToken)
	if start < 0 {
		return
	}
	rest := line[start+len(solvingForToken):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return
	}
	fieldName := strings.TrimSpace(rest[:comma])
	if fieldName == "" {
		return
	}

	residIdx := strings.Index(line, initialResidTok)
	if residIdx < 0 {
		return
	}
	valuePart := strings.TrimLeft(line[residIdx+len(initialResidTok):], " \t")
	end := 0
	for end < len(valuePart) && valuePart[end] != ' ' && valuePart[end] != ',' && valuePart[end] != '\t' {
		end++
	}
	v, err := strconv.ParseFloat(valuePart[:end], 64)
	if err != nil {
		return
	}

	if _, ok := data.Fields[fieldName]; !ok {
		backfill := len(data.Time) - 1
		if backfill < 0 {
			backfill = 0
		}
		data.Fields[fieldName] = make([]float64, backfill)
	}
	data.Fields[fieldName] = append(data.Fields[fieldName], v)
}

// ClearCase drops every cached log state under caseDir, used by the
// cache governor's eviction fan-out.
func (c *Cache) ClearCase(caseDir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p := range c.states {
		if strings.HasPrefix(p, caseDir) {
			delete(c.states, p)
		}
	}
}
