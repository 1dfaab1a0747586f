// Package config loads, saves, and guards the single case_config.json
// that backs the HTTP surface's case-root and Docker settings. It keeps
// one live struct behind a RWMutex rather than re-reading the file on
// every request, the way backend/cache.Fs guards its live options.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/apperrors"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/pathsafe"
)

const defaultCacheMaxCases = 5

// Data is the persisted shape of case_config.json.
type Data struct {
	CaseRoot         string `json:"CASE_ROOT"`
	DockerImage      string `json:"DOCKER_IMAGE"`
	OpenFOAMVersion  string `json:"OPENFOAM_VERSION"`
	InitialSetupDone bool   `json:"initial_setup_done,omitempty"`
	DockerRunAsUser  bool   `json:"docker_run_as_user,omitempty"`
	DockerUID        string `json:"docker_uid,omitempty"`
	DockerGID        string `json:"docker_gid,omitempty"`
}

// Store is a RWMutex-guarded live Data, persisted to a JSON file on disk.
type Store struct {
	mu   sync.RWMutex
	path string
	data Data
}

// Load reads path if it exists, or seeds a Store with defaults otherwise.
// The loaded case root is not validated here; SetCaseRoot runs
// pathsafe.AssertSafeRoot on every new root before persisting it.
func Load(path string, defaults Data) (*Store, error) {
	s := &Store{path: path, data: defaults}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, apperrors.IOFailure(errors.Wrapf(err, "reading config at %q", path))
	}

	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, apperrors.IOFailure(errors.Wrapf(err, "parsing config at %q", path))
	}
	s.data = d
	return s, nil
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// CacheMaxCases returns the configured LRU size, or the default if unset.
func (s *Store) CacheMaxCases(envOverride int) int {
	if envOverride > 0 {
		return envOverride
	}
	return defaultCacheMaxCases
}

// SetCaseRoot validates and persists a new case root.
func (s *Store) SetCaseRoot(root string) (Data, error) {
	if err := pathsafe.AssertSafeRoot(root); err != nil {
		return Data{}, err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Data{}, apperrors.UnsafeRoot(errors.Wrap(err, "resolving case root"))
	}

	s.mu.Lock()
	s.data.CaseRoot = abs
	snapshot := s.data
	s.mu.Unlock()

	if err := s.save(snapshot); err != nil {
		return Data{}, err
	}
	return snapshot, nil
}

// SetDockerConfig updates whichever of image/version is non-empty and
// persists the result.
func (s *Store) SetDockerConfig(image, version string) (Data, error) {
	s.mu.Lock()
	if image != "" {
		s.data.DockerImage = image
	}
	if version != "" {
		s.data.OpenFOAMVersion = version
	}
	snapshot := s.data
	s.mu.Unlock()

	if err := s.save(snapshot); err != nil {
		return Data{}, err
	}
	return snapshot, nil
}

// save writes d to s.path atomically: a temp file in the same directory
// is written and fsynced, then renamed over the target, so a concurrent
// reader never observes a partially written file.
func (s *Store) save(d Data) error {
	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.IOFailure(errors.Wrapf(err, "creating config directory %q", dir))
		}
	}

	tmp, err := os.CreateTemp(dir, ".case_config-*.json.tmp")
	if err != nil {
		return apperrors.IOFailure(errors.Wrap(err, "creating temp config file"))
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		tmp.Close()
		return apperrors.IOFailure(errors.Wrap(err, "encoding config"))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperrors.IOFailure(errors.Wrap(err, "flushing config to disk"))
	}
	if err := tmp.Close(); err != nil {
		return apperrors.IOFailure(errors.Wrap(err, "closing temp config file"))
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return apperrors.IOFailure(errors.Wrap(err, "renaming temp config file into place"))
	}
	return nil
}
