package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/apperrors"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/container"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/logging"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/metrics"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/pathsafe"
)

type runRequest struct {
	Tutorial string `json:"tutorial"`
	Command  string `json:"command"`
	CaseDir  string `json:"caseDir"`
}

// handleRun streams a container's stdout as chunked text/plain, journals
// exactly one run, and guarantees teardown on every exit path including
// the client disconnecting mid-stream.
func (d *Deps) handleRun(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	var req runRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxUploadBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.Command == "" || req.CaseDir == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing command or caseDir"})
		return
	}
	if d.Runner == nil {
		writeError(w, apperrors.RuntimeUnavailable(nil))
		return
	}
	if err := container.ValidateCommand(req.Command); err != nil {
		writeError(w, err)
		return
	}

	caseDir, err := pathsafe.Resolve(d.Config.Snapshot().CaseRoot, req.CaseDir)
	if err != nil {
		writeError(w, err)
		return
	}

	script, args := splitCommand(req.Command)
	if err := container.ValidateScriptName(script); err != nil {
		writeError(w, err)
		return
	}
	for _, a := range args {
		if err := container.ValidateCommand(a); err != nil {
			writeError(w, err)
			return
		}
	}

	cfg := d.Config.Snapshot()
	opts := container.RunOptions{CaseDir: caseDir, Script: script, Args: args}
	if cfg.DockerRunAsUser && cfg.DockerUID != "" && cfg.DockerGID != "" {
		opts.User = cfg.DockerUID + ":" + cfg.DockerGID
	}

	start := time.Now()
	runID, err := d.Journal.StartRun(req.CaseDir, req.Tutorial, req.Command, start)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.RunStarted()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	// r.Context() is canceled by net/http itself when the client
	// disconnects, which is exactly the cancellation signal
	// RunStreaming's teardown needs.
	lines, done := d.Runner.RunStreaming(r.Context(), opts)
	for line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			logging.Errorf(logTag, "writing streamed output: %v", err)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	runErr := <-done
	ok := runErr == nil
	if err := d.Journal.Finish(runID, ok, time.Now()); err != nil {
		logging.Errorf(logTag, "finishing run journal entry %d: %v", runID, err)
	}
	if ok {
		metrics.RunFinished("Completed")
	} else {
		metrics.RunFinished("Failed")
		fmt.Fprintf(w, "[FoamCore] run failed: %v\n", runErr)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// splitCommand divides a validated command string into its script name
// (first whitespace-delimited token) and remaining arguments, so the
// runner can bind each to its own bash positional parameter rather than
// re-joining them into a single interpolated string.
func splitCommand(command string) (script string, args []string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

func (d *Deps) handleRuns(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	runs, err := d.Journal.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}
