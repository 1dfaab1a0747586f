package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/cachegov"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/config"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/field"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/journal"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/logparser"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/series"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/timeindex"
)

func newTestDeps(t *testing.T, allowedOrigins []string) *Deps {
	t.Helper()
	dir := t.TempDir()

	cfg, err := config.Load(filepath.Join(dir, "case_config.json"), config.Data{CaseRoot: dir})
	require.NoError(t, err)

	jrn, err := journal.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = jrn.Close() })

	timeCache := timeindex.NewCache()
	gov := cachegov.New(5)

	return &Deps{
		Config:         cfg,
		Series:         series.NewEngine(field.NewCache(), timeCache, gov),
		Residuals:      logparser.NewCache(),
		Times:          timeCache,
		Governor:       gov,
		Runner:         nil,
		Journal:        jrn,
		AllowedOrigins: allowedOrigins,
		MaxPoints:      0,
	}
}

func TestHandleGetCaseRootReturnsConfiguredRoot(t *testing.T) {
	d := newTestDeps(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/get_case_root", nil)
	rec := httptest.NewRecorder()

	d.handleGetCaseRoot(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, d.Config.Snapshot().CaseRoot, body["caseDir"])
}

func TestHandleSetCaseRejectsSystemDirectory(t *testing.T) {
	d := newTestDeps(t, nil)
	body := strings.NewReader(`{"caseDir": "/etc"}`)
	req := httptest.NewRequest(http.MethodPost, "/set_case", body)
	rec := httptest.NewRecorder()

	d.handleSetCase(rec, req)

	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestHandleSetDockerConfigUpdatesFields(t *testing.T) {
	d := newTestDeps(t, nil)
	body := strings.NewReader(`{"dockerImage": "openfoam/openfoam10-paraview56", "openfoamVersion": "10"}`)
	req := httptest.NewRequest(http.MethodPost, "/set_docker_config", body)
	rec := httptest.NewRecorder()

	d.handleSetDockerConfig(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "openfoam/openfoam10-paraview56", got["dockerImage"])
	assert.Equal(t, "10", got["openfoamVersion"])
}

func TestHandleRunsReturnsEmptyListInitially(t *testing.T) {
	d := newTestDeps(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()

	d.handleRuns(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string][]journal.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Empty(t, got["runs"])
}

func TestHandleRunReturns503WithoutRunner(t *testing.T) {
	d := newTestDeps(t, nil)
	body := strings.NewReader(`{"tutorial": "pitzDaily", "command": "Allrun", "caseDir": "."}`)
	req := httptest.NewRequest(http.MethodPost, "/run", body)
	rec := httptest.NewRecorder()

	d.handleRun(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCheckETagShortCircuitsOnMatch(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/residuals", nil)
	req.Header.Set("If-None-Match", `"1-2"`)

	notModified := checkETag(rec, req, `"1-2"`)

	assert.True(t, notModified)
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestCheckETagServesFreshOnMismatch(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/residuals", nil)
	req.Header.Set("If-None-Match", `"1-2"`)

	notModified := checkETag(rec, req, `"1-3"`)

	assert.False(t, notModified)
	assert.Equal(t, `"1-3"`, rec.Header().Get("ETag"))
}

func TestOriginAllowedEmptyListAllowsEverything(t *testing.T) {
	assert.True(t, OriginAllowed("https://anything.example", nil))
}

func TestOriginAllowedRejectsUnlistedOrigin(t *testing.T) {
	assert.False(t, OriginAllowed("https://evil.example", []string{"https://ok.example"}))
	assert.True(t, OriginAllowed("https://ok.example", []string{"https://ok.example"}))
}

func TestOriginAllowedRejectsEmptyOriginWhenListNonEmpty(t *testing.T) {
	assert.False(t, OriginAllowed("", []string{"https://ok.example"}))
}

func TestOriginCheckMiddlewareBlocksDisallowedStateChange(t *testing.T) {
	handler := originCheckMiddleware([]string{"https://ok.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/set_case", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOriginCheckMiddlewareAllowsGETRegardlessOfOrigin(t *testing.T) {
	handler := originCheckMiddleware([]string{"https://ok.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/get_case_root", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleIndexSetsCSRFCookie(t *testing.T) {
	d := newTestDeps(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	d.handleIndex(rec, req)

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrfCookieName {
			found = true
		}
	}
	assert.True(t, found)
}

func TestStatMtimeNanosReflectsFileModTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	mtime, err := statMtimeNanos(path)
	require.NoError(t, err)
	assert.Positive(t, mtime)
}
