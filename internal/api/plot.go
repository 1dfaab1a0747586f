package api

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/apperrors"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/pathsafe"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/series"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/timeindex"
)

const logFileName = "log.foamRun"

func (d *Deps) resolveTutorial(r *http.Request) (string, error) {
	tutorial := r.URL.Query().Get("tutorial")
	if tutorial == "" {
		return "", apperrors.InvalidPath(nil)
	}
	return pathsafe.Resolve(d.Config.Snapshot().CaseRoot, tutorial)
}

// resolveWithinRoot validates a caller-supplied relative path against
// root, used anywhere a request body (rather than a query parameter)
// names the case.
func resolveWithinRoot(root, relative string) (string, error) {
	if relative == "" {
		return "", apperrors.InvalidPath(nil)
	}
	return pathsafe.Resolve(root, relative)
}

func latestDirMtime(caseDir string, times []timeindex.TimeDir) (int64, error) {
	if len(times) == 0 {
		return 0, nil
	}
	return statMtimeNanos(filepath.Join(caseDir, times[len(times)-1].Name))
}

func (d *Deps) handlePlotData(w http.ResponseWriter, r *http.Request) {
	caseDir, err := d.resolveTutorial(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caseMtime, err := statMtimeNanos(caseDir)
	if err != nil {
		writeError(w, apperrors.NotFound("Case directory", err))
		return
	}
	times, err := d.Times.List(caseDir)
	if err != nil {
		writeError(w, err)
		return
	}
	latestMtime, err := latestDirMtime(caseDir, times)
	if err != nil {
		writeError(w, err)
		return
	}

	if checkETag(w, r, plotDataETag(caseMtime, latestMtime)) {
		return
	}

	snap, err := d.Series.Snapshot(caseDir, d.MaxPoints)
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("cp") == "1" {
		applyPressureCoefficient(snap, r)
	}
	writeJSON(w, http.StatusOK, snap)
}

// applyPressureCoefficient adds a "Cp" series computed from "p" and the
// reference values carried as query parameters, when a "p" series is
// present. A missing or unparsable reference value falls back to p_inf=0,
// rho_inf=1, u_inf=1.
func applyPressureCoefficient(snap *series.Snapshot, r *http.Request) {
	p, ok := snap.Fields["p"]
	if !ok {
		return
	}
	pInf := queryFloat(r, "p_inf", 0)
	rhoInf := queryFloat(r, "rho_inf", 1)
	uInf := queryFloat(r, "u_inf", 1)

	cp := make([]float64, len(p))
	for i, v := range p {
		cp[i] = series.PressureCoefficient(v, pInf, rhoInf, uInf)
	}
	snap.Fields["Cp"] = cp
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func (d *Deps) handleResiduals(w http.ResponseWriter, r *http.Request) {
	caseDir, err := d.resolveTutorial(r)
	if err != nil {
		writeError(w, err)
		return
	}
	logPath := filepath.Join(caseDir, logFileName)

	var logMtime, logSize int64
	if mtime, err := statMtimeNanos(logPath); err == nil {
		logMtime = mtime
		if size, statErr := osStat(logPath); statErr == nil {
			logSize = size
		}
	}

	if checkETag(w, r, residualsETag(logMtime, logSize)) {
		return
	}

	res, err := d.Residuals.Residuals(logPath)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Last-Modified", httpDate(logMtime))
	writeJSON(w, http.StatusOK, res)
}

func (d *Deps) handleLatestData(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	caseDir, err := d.resolveTutorial(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := d.Series.Snapshot(caseDir, 0)
	if err != nil {
		writeError(w, err)
		return
	}

	latest := map[string]float64{}
	if n := len(snap.Time); n > 0 {
		latest["time"] = snap.Time[n-1]
		for name, values := range snap.Fields {
			if len(values) == n {
				latest[name] = values[n-1]
			}
		}
	}
	writeJSON(w, http.StatusOK, latest)
}

func (d *Deps) handleAvailableFields(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	caseDir, err := d.resolveTutorial(r)
	if err != nil {
		writeError(w, err)
		return
	}
	fields, err := d.Series.AvailableFields(caseDir)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"fields": fields})
}
