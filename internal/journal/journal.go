// Package journal persists a record of every container run to a bbolt
// database: one row inserted when a run starts, updated exactly once
// when it terminates.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/apperrors"
)

// Status is the lifecycle state of a Run.
type Status string

const (
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

const runsBucket = "runs"

// Run is one persisted container invocation.
type Run struct {
	ID              uint64     `json:"id"`
	CaseName        string     `json:"case_name"`
	Tutorial        string     `json:"tutorial"`
	Command         string     `json:"command"`
	Status          Status     `json:"status"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds *float64   `json:"duration,omitempty"`
}

// Journal is a single bbolt-backed connection, safe for concurrent use.
type Journal struct {
	mu sync.Mutex
	db *bolt.DB
}

// Open connects to (creating if necessary) the bbolt file at dbPath.
func Open(dbPath string) (*Journal, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.IOFailure(errors.Wrapf(err, "creating journal directory for %q", dbPath))
		}
	}
	db, err := bolt.Open(dbPath, 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, apperrors.IOFailure(errors.Wrapf(err, "opening journal at %q", dbPath))
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, apperrors.IOFailure(errors.Wrap(err, "initializing journal bucket"))
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun inserts a new Running record and returns its id.
func (j *Journal) StartRun(caseName, tutorial, command string, start time.Time) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var id uint64
	err := j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = seq
		run := Run{
			ID:        id,
			CaseName:  caseName,
			Tutorial:  tutorial,
			Command:   command,
			Status:    StatusRunning,
			StartTime: start,
		}
		data, err := json.Marshal(run)
		if err != nil {
			return err
		}
		return b.Put(idKey(id), data)
	})
	if err != nil {
		return 0, apperrors.IOFailure(errors.Wrap(err, "inserting run record"))
	}
	return id, nil
}

// Finish updates a run's status exactly once, on its first call: ok
// selects Completed vs Failed, end becomes its end_time and determines
// duration. Later calls for the same id are no-ops.
func (j *Journal) Finish(id uint64, ok bool, end time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		data := b.Get(idKey(id))
		if data == nil {
			return apperrors.NotFound("run", errors.Errorf("run %d not found", id))
		}
		var run Run
		if err := json.Unmarshal(data, &run); err != nil {
			return apperrors.IOFailure(errors.Wrap(err, "decoding run record"))
		}
		if run.Status != StatusRunning {
			return nil
		}
		if ok {
			run.Status = StatusCompleted
		} else {
			run.Status = StatusFailed
		}
		run.EndTime = &end
		duration := end.Sub(run.StartTime).Seconds()
		run.DurationSeconds = &duration

		out, err := json.Marshal(run)
		if err != nil {
			return err
		}
		return b.Put(idKey(id), out)
	})
}

// List returns every run ordered by start_time descending.
func (j *Journal) List() ([]Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var runs []Run
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		return b.ForEach(func(_, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return err
			}
			runs = append(runs, run)
			return nil
		})
	})
	if err != nil {
		return nil, apperrors.IOFailure(errors.Wrap(err, "listing run records"))
	}
	sort.Slice(runs, func(i, k int) bool {
		return runs[i].StartTime.After(runs[k].StartTime)
	})
	return runs, nil
}

func idKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}
