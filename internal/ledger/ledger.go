package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/MikeSquared-Agency/winnow/internal/safety"
)

var (
	bucketRuns  = []byte("runs")
	bucketFiles = []byte("files")
)

// Entry is the latest-run summary kept per file path.
type Entry struct {
	RunID          string    `json:"run_id"`
	Timestamp      time.Time `json:"timestamp"`
	Level          string    `json:"level"`
	Success        bool      `json:"success"`
	DryRun         bool      `json:"dry_run"`
	PrunedBytes    int       `json:"pruned_bytes"`
	PrunedChecksum string    `json:"pruned_checksum,omitempty"`
	BackupPath     string    `json:"backup_path,omitempty"`
}

// Ledger is the local prune history: one bucket of full run records keyed by
// run id, one bucket of latest-run entries keyed by file path. Single-writer,
// opened per invocation.
type Ledger struct {
	db *bolt.DB
}

// Open opens (or creates) the ledger file and its buckets.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRuns, bucketFiles} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// RecordRun stores the full result under its run id and refreshes the
// latest-run entry for the file.
func (l *Ledger) RecordRun(res *safety.PruneResult) error {
	full, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	entry, err := json.Marshal(Entry{
		RunID:          res.RunID,
		Timestamp:      time.Now().UTC(),
		Level:          string(res.Level),
		Success:        res.Success,
		DryRun:         res.DryRun,
		PrunedBytes:    res.PrunedBytes,
		PrunedChecksum: res.PrunedChecksum,
		BackupPath:     res.BackupPath,
	})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	return l.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRuns).Put([]byte(res.RunID), full); err != nil {
			return err
		}
		return tx.Bucket(bucketFiles).Put([]byte(res.Path), entry)
	})
}

// LastRun returns the latest-run entry for a file path, or nil when the file
// has never been pruned. Malformed entries are skipped rather than failing
// the read.
func (l *Ledger) LastRun(path string) (*Entry, error) {
	var entry *Entry
	err := l.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketFiles).Get([]byte(path))
		if v == nil {
			return nil
		}
		var e Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return nil
		}
		entry = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Run returns the full stored result for a run id, or nil when unknown.
func (l *Ledger) Run(runID string) (*safety.PruneResult, error) {
	var res *safety.PruneResult
	err := l.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRuns).Get([]byte(runID))
		if v == nil {
			return nil
		}
		var r safety.PruneResult
		if err := json.Unmarshal(v, &r); err != nil {
			return nil
		}
		res = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AlreadyPruned reports whether the file's current checksum matches the
// recorded post-prune checksum of a successful non-dry run at the same
// level. Batch mode uses this to skip files that have not changed since
// their last prune.
func (l *Ledger) AlreadyPruned(path, currentChecksum, level string) (bool, error) {
	entry, err := l.LastRun(path)
	if err != nil || entry == nil {
		return false, err
	}
	return entry.Success && !entry.DryRun && entry.Level == level && entry.PrunedChecksum == currentChecksum, nil
}
