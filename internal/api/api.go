// Package api implements the HTTP surface: JSON endpoints for snapshot
// data, a streaming endpoint for container logs, and the ETag/
// If-None-Match/Last-Modified validation that lets steady-state polling
// resolve to 304s. Routing is gorilla/mux, matching the teacher's go.mod
// (no full non-test source for a mux-based server survived retrieval, so
// this router is this project's own composition of the dependency).
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/apperrors"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/cachegov"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/config"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/container"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/journal"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/logparser"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/logging"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/metrics"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/series"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/timeindex"
)

const logTag = "api"

// MaxUploadBytes bounds every request body the surface reads, per the
// 500 MiB geometry/upload ceiling.
const MaxUploadBytes = 500 * 1024 * 1024

// Deps wires every component the HTTP surface calls through to. It holds
// no state of its own beyond what each component already guards.
type Deps struct {
	Config         *config.Store
	Series         *series.Engine
	Residuals      *logparser.Cache
	Times          *timeindex.Cache
	Governor       *cachegov.Governor
	Runner         *container.Runner
	Journal        *journal.Journal
	Collaborators  Collaborators
	AllowedOrigins []string
	MaxPoints      int
}

// NewRouter builds the full mux.Router for a running FoamCore instance.
func NewRouter(d *Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(originCheckMiddleware(d.AllowedOrigins))

	r.HandleFunc("/", d.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/get_case_root", d.handleGetCaseRoot).Methods(http.MethodGet)
	r.HandleFunc("/set_case", d.handleSetCase).Methods(http.MethodPost)
	r.HandleFunc("/get_docker_config", d.handleGetDockerConfig).Methods(http.MethodGet)
	r.HandleFunc("/set_docker_config", d.handleSetDockerConfig).Methods(http.MethodPost)
	r.HandleFunc("/load_tutorial", d.handleLoadTutorial).Methods(http.MethodPost)
	r.HandleFunc("/run", d.handleRun).Methods(http.MethodPost)

	r.HandleFunc("/api/plot_data", d.handlePlotData).Methods(http.MethodGet)
	r.HandleFunc("/api/residuals", d.handleResiduals).Methods(http.MethodGet)
	r.HandleFunc("/api/latest_data", d.handleLatestData).Methods(http.MethodGet)
	r.HandleFunc("/api/available_fields", d.handleAvailableFields).Methods(http.MethodGet)
	r.HandleFunc("/api/runs", d.handleRuns).Methods(http.MethodGet)

	r.HandleFunc("/api/case/create", d.handleCaseCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/geometry/upload", d.handleGeometryUpload).Methods(http.MethodPost)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return r
}

func (d *Deps) handleIndex(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	setCSRFCookie(w, r)
	if d.Collaborators.UI == nil {
		http.Error(w, "UI not configured", http.StatusNotImplemented)
		return
	}
	page, err := d.Collaborators.UI.Render(r.URL.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Errorf(logTag, "encoding JSON response: %v", err)
	}
}

// writeError maps an apperrors.Coded to its HTTP status and public-safe
// message. Anything else (a programming error that escaped a component's
// own taxonomy) becomes a generic 500, never echoing err.Error() — that
// text may carry a filesystem path.
func writeError(w http.ResponseWriter, err error) {
	if coded, ok := err.(*apperrors.Coded); ok {
		writeJSON(w, coded.Status, map[string]string{"error": coded.Public})
		return
	}
	logging.Errorf(logTag, "unclassified error: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "An I/O error occurred."})
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache")
}
