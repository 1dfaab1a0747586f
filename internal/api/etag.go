package api

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

// plotDataETag computes the ETag for /api/plot_data from the case
// directory's own mtime and the latest time step directory's mtime, per
// the (case_mtime, latest_time_mtime) validator pair.
func plotDataETag(caseMtime, latestMtime int64) string {
	return fmt.Sprintf(`"%d-%d"`, caseMtime, latestMtime)
}

// residualsETag computes the ETag for /api/residuals from the solver
// log's (mtime, size) pair.
func residualsETag(logMtime, logSize int64) string {
	return fmt.Sprintf(`"%d-%d"`, logMtime, logSize)
}

// checkETag writes a 304 and returns true if the request's
// If-None-Match matches etag exactly (weak comparison is not needed here
// since every etag this surface issues is already a quoted strong tag).
func checkETag(w http.ResponseWriter, r *http.Request, etag string) bool {
	w.Header().Set("ETag", etag)
	noCache(w)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

func statMtimeNanos(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.ModTime().UnixNano(), nil
}

// osStat returns a file's size, isolated into its own helper so call
// sites that already have the mtime via statMtimeNanos don't need to
// import os directly.
func osStat(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func httpDate(nanos int64) string {
	return time.Unix(0, nanos).UTC().Format(http.TimeFormat)
}
