// Package wsfanout pushes new snapshots to WebSocket subscribers of a
// case: one poll loop per connection, woken every 500 ms, pushing a
// frame only when the case's observable state has actually changed.
package wsfanout

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/api"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/logging"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/logparser"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/series"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/timeindex"
)

const logTag = "wsfanout"
const pollInterval = 500 * time.Millisecond
const logFileName = "log.foamRun"

// Frame is the JSON payload pushed on every observable-state change.
type Frame struct {
	PlotData  *series.Snapshot    `json:"plot_data"`
	Residuals *logparser.Residuals `json:"residuals"`
	Timestamp int64               `json:"timestamp"`
}

// Deps wires the fan-out handler to the same engines the HTTP surface
// uses, so both read through the identical caches and governor.
type Deps struct {
	Series         *series.Engine
	Residuals      *logparser.Cache
	Times          *timeindex.Cache
	AllowedOrigins []string
	MaxPoints      int
	Now            func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Handler returns the http.HandlerFunc for GET /ws/data.
func (d *Deps) Handler(resolveCaseDir func(tutorial string) (string, error)) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return api.OriginAllowed(r.Header.Get("Origin"), d.AllowedOrigins)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tutorial := r.URL.Query().Get("tutorial")
		caseDir, err := resolveCaseDir(tutorial)
		if err != nil {
			http.Error(w, "invalid tutorial", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Errorf(logTag, "upgrading connection: %v", err)
			return
		}
		defer conn.Close()

		d.pollLoop(r.Context(), conn, caseDir)
	}
}

// pollLoop runs for the lifetime of one connection: every tick it
// recomputes the observable-state key and pushes a frame only when that
// key changed since the last push. A WebSocket close (detected via
// ReadMessage returning an error, since the client never sends data on
// this connection) stops the loop immediately.
func (d *Deps) pollLoop(ctx interface{ Done() <-chan struct{} }, conn *websocket.Conn, caseDir string) {
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastKey stateKey
	first := true

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-ticker.C:
			key, err := d.computeKey(caseDir)
			if err != nil {
				logging.Errorf(logTag, "computing state key for %s: %v", caseDir, err)
				continue
			}
			if !first && key == lastKey {
				continue
			}
			first = false
			lastKey = key

			frame, err := d.buildFrame(caseDir)
			if err != nil {
				logging.Errorf(logTag, "building frame for %s: %v", caseDir, err)
				continue
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}

type stateKey struct {
	logMtime      int64
	latestDirMtime int64
}

func (d *Deps) computeKey(caseDir string) (stateKey, error) {
	var key stateKey

	if info, err := statMtime(filepath.Join(caseDir, logFileName)); err == nil {
		key.logMtime = info
	}

	times, err := d.Times.List(caseDir)
	if err != nil {
		return key, err
	}
	if len(times) > 0 {
		if m, err := statMtime(filepath.Join(caseDir, times[len(times)-1].Name)); err == nil {
			key.latestDirMtime = m
		}
	}
	return key, nil
}

func (d *Deps) buildFrame(caseDir string) (*Frame, error) {
	snap, err := d.Series.Snapshot(caseDir, d.MaxPoints)
	if err != nil {
		return nil, err
	}
	res, err := d.Residuals.Residuals(filepath.Join(caseDir, logFileName))
	if err != nil {
		return nil, err
	}
	return &Frame{PlotData: snap, Residuals: res, Timestamp: d.now().Unix()}, nil
}

func statMtime(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.ModTime().UnixNano(), nil
}
