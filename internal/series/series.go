// Package series builds per-field time series for a case and keeps an
// append-only history cache, with case eviction governed externally by
// internal/cachegov. Only stable (immutable) time steps are cached; the
// latest (volatile) step is reparsed on every call.
package series

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/apperrors"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/cachegov"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/field"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/logging"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/timeindex"
)

const logTag = "series"

// Snapshot is the per-call result: a Time list and one list per derived
// series (scalar fields by name; vector fields decomposed into
// "<name>x"/"<name>y"/"<name>z"/"<name>_mag"), every list the same length
// as Time.
type Snapshot struct {
	Time   []float64
	Fields map[string][]float64
}

// caseState is the only long-lived mutable structure per case; it is
// guarded by its own mutex so two cases never contend.
type caseState struct {
	mu          sync.Mutex
	stableNames []string // directory names already folded into history, in order
	stableTime  []float64
	stableField map[string][]float64
}

// Engine owns every case's caseState plus the caches it reads through.
type Engine struct {
	fieldCache *field.Cache
	timeCache  *timeindex.Cache
	governor   *cachegov.Governor

	mu    sync.Mutex
	cases map[string]*caseState
}

// NewEngine wires the time-series engine to its dependency caches and
// registers it with the governor so it is cleared on case eviction.
func NewEngine(fieldCache *field.Cache, timeCache *timeindex.Cache, governor *cachegov.Governor) *Engine {
	e := &Engine{
		fieldCache: fieldCache,
		timeCache:  timeCache,
		governor:   governor,
		cases:      make(map[string]*caseState),
	}
	governor.Register(e)
	return e
}

// ClearCase implements cachegov.Evictor.
func (e *Engine) ClearCase(caseDir string) {
	e.mu.Lock()
	delete(e.cases, caseDir)
	e.mu.Unlock()
}

func (e *Engine) getCaseState(caseDir string) *caseState {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs, ok := e.cases[caseDir]
	if !ok {
		cs = &caseState{stableField: make(map[string][]float64)}
		e.cases[caseDir] = cs
	}
	return cs
}

// Snapshot returns the last maxPoints stable points plus one volatile
// point per series. An empty case returns an empty Snapshot with no
// series at all.
func (e *Engine) Snapshot(caseDir string, maxPoints int) (*Snapshot, error) {
	e.governor.Touch(caseDir)

	times, err := e.timeCache.List(caseDir)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return &Snapshot{Fields: map[string][]float64{}}, nil
	}

	cs := e.getCaseState(caseDir)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	latest := times[len(times)-1]
	stableDirs := times[:len(times)-1]

	e.reconcileStablePrefix(cs, stableDirs)

	for i := len(cs.stableNames); i < len(stableDirs); i++ {
		e.appendStableStep(cs, caseDir, stableDirs[i])
	}

	volatileFlat, volatileTime, err := e.scanFlatStep(caseDir, latest.Name, latest.Time, true)
	if err != nil {
		return nil, err
	}

	return buildSnapshot(cs, maxPoints, volatileTime, volatileFlat), nil
}

// reconcileStablePrefix finds the longest prefix of cs.stableNames that
// still matches allStable element-wise, truncating cached history to that
// prefix. A divergent tail means the case restarted and wrote different
// time directories than before.
func (e *Engine) reconcileStablePrefix(cs *caseState, allStable []timeindex.TimeDir) {
	match := 0
	for match < len(cs.stableNames) && match < len(allStable) && cs.stableNames[match] == allStable[match].Name {
		match++
	}
	if match == len(cs.stableNames) {
		return
	}
	logging.Infof(logTag, "stable history diverged at index %d, truncating", match)
	cs.stableNames = cs.stableNames[:match]
	cs.stableTime = cs.stableTime[:match]
	for name, list := range cs.stableField {
		if len(list) > match {
			cs.stableField[name] = list[:match]
		}
	}
}

// appendStableStep folds one newly-stable time directory into the case's
// history cache.
func (e *Engine) appendStableStep(cs *caseState, caseDir string, td timeindex.TimeDir) {
	flat, _, err := e.scanFlatStep(caseDir, td.Name, td.Time, false)
	if err != nil {
		logging.Errorf(logTag, "scanning stable step %s: %v", td.Name, err)
		flat = map[string]float64{}
	}

	cs.stableNames = append(cs.stableNames, td.Name)
	cs.stableTime = append(cs.stableTime, td.Time)
	newLen := len(cs.stableTime)

	seen := make(map[string]bool, len(flat))
	for name, v := range flat {
		seen[name] = true
		list, ok := cs.stableField[name]
		if !ok {
			list = make([]float64, newLen-1) // back-fill zeros for prior indices
		}
		cs.stableField[name] = append(list, v)
	}
	for name, list := range cs.stableField {
		if !seen[name] && len(list) < newLen {
			cs.stableField[name] = append(list, 0)
		}
	}
}

// scanFlatStep reads every recognized field file in caseDir/dirName and
// flattens scalar/vector values into named float series points. checkMtime
// controls whether C2's cache trusts a prior read for this path (false for
// stable, immutable steps; true for the always-volatile latest step).
func (e *Engine) scanFlatStep(caseDir, dirName string, t float64, checkMtime bool) (map[string]float64, float64, error) {
	timeDir := filepath.Join(caseDir, dirName)
	files, err := timeindex.ListFiles(timeDir)
	if err != nil {
		return nil, t, err
	}

	flat := make(map[string]float64, len(files))
	for _, fe := range files {
		path := filepath.Join(timeDir, fe.Name)
		v, err := e.fieldCache.Read(caseDir, path, checkMtime)
		if err != nil {
			if apperrors.IsParse(err) {
				continue // not a recognized field file; skip silently
			}
			logging.Errorf(logTag, "reading %s: %v", fe.Name, err)
			continue
		}
		flattenInto(flat, fe.Name, v)
	}
	return flat, t, nil
}

func flattenInto(flat map[string]float64, name string, v field.Value) {
	switch v.Kind {
	case field.KindScalar:
		flat[name] = v.Scalar
	case field.KindVector:
		flat[name+"x"] = v.Vector[0]
		flat[name+"y"] = v.Vector[1]
		flat[name+"z"] = v.Vector[2]
		flat[name+"_mag"] = v.Magnitude()
	case field.KindUnresolvable:
		flat[name] = 0
	}
}

// buildSnapshot combines the cached stable window (bounded to maxPoints)
// with the one volatile point into fresh, independently-owned slices,
// never aliasing the cache's backing arrays: a reader that held a raw
// slice into growing cache storage could see a later append stomp values
// it already returned, so every call pays a bounded copy instead.
func buildSnapshot(cs *caseState, maxPoints int, volatileTime float64, volatileFlat map[string]float64) *Snapshot {
	stableLen := len(cs.stableTime)
	start := 0
	if maxPoints > 0 && stableLen > maxPoints {
		start = stableLen - maxPoints
	}
	window := stableLen - start

	out := &Snapshot{
		Time:   make([]float64, window+1),
		Fields: make(map[string][]float64, len(cs.stableField)+len(volatileFlat)),
	}
	copy(out.Time, cs.stableTime[start:])
	out.Time[window] = volatileTime

	names := make(map[string]bool, len(cs.stableField)+len(volatileFlat))
	for n := range cs.stableField {
		names[n] = true
	}
	for n := range volatileFlat {
		names[n] = true
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		series := make([]float64, window+1)
		if list, ok := cs.stableField[name]; ok {
			copy(series, list[start:])
		}
		series[window] = volatileFlat[name]
		out.Fields[name] = series
	}
	return out
}

// AvailableFields reports the recognized field names present in a case's
// latest time step, by filename for the known fast-path set and by header
// probe otherwise, so a UI can offer plotting fields the case actually
// wrote rather than a hardcoded list.
func (e *Engine) AvailableFields(caseDir string) ([]string, error) {
	times, err := e.timeCache.List(caseDir)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, nil
	}
	latest := times[len(times)-1]
	timeDir := filepath.Join(caseDir, latest.Name)
	files, err := timeindex.ListFiles(timeDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, fe := range files {
		path := filepath.Join(timeDir, fe.Name)
		if _, err := e.fieldCache.Read(caseDir, path, true); err != nil {
			if apperrors.IsParse(err) {
				continue
			}
			continue
		}
		names = append(names, fe.Name)
	}
	sort.Strings(names)
	return names, nil
}

// PressureCoefficient computes Cp = (p - pInf) / (0.5 * rhoInf * uInf^2).
func PressureCoefficient(p, pInf, rhoInf, uInf float64) float64 {
	dynamicPressure := 0.5 * rhoInf * uInf * uInf
	if dynamicPressure == 0 {
		return 0
	}
	return (p - pInf) / dynamicPressure
}
