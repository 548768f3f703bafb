package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BackupError means the pre-mutation backup could not be created or verified.
// It always aborts before any other state transition.
type BackupError struct {
	Path string
	Err  error
}

func (e *BackupError) Error() string { return fmt.Sprintf("backup %s: %v", e.Path, e.Err) }
func (e *BackupError) Unwrap() error { return e.Err }

// CommitError means the atomic replace failed. The rename either happened
// completely or not at all, so the original is intact either way.
type CommitError struct {
	Path string
	Err  error
}

func (e *CommitError) Error() string { return fmt.Sprintf("commit %s: %v", e.Path, e.Err) }
func (e *CommitError) Unwrap() error { return e.Err }

// Backup is a checksummed, timestamped copy of the original file. The manager
// owns it until commit, then hands the reference to the caller; retention and
// cleanup are the caller's policy.
type Backup struct {
	Path      string
	Checksum  string
	CreatedAt time.Time
}

// createBackup copies the original bytes next to the source (or into dir),
// then reads the copy back and verifies its checksum before reporting
// success.
func (m *Manager) createBackup(path string, data []byte, dir, runID string) (*Backup, error) {
	if dir == "" {
		dir = filepath.Dir(path)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &BackupError{Path: dir, Err: err}
	}

	now := time.Now().UTC()
	name := fmt.Sprintf("%s.%s.%s.bak", filepath.Base(path), now.Format("20060102T150405"), shortID(runID))
	dest := filepath.Join(dir, name)

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return nil, &BackupError{Path: dest, Err: err}
	}

	written, err := os.ReadFile(dest)
	if err != nil {
		return nil, &BackupError{Path: dest, Err: fmt.Errorf("verify read: %w", err)}
	}
	want, got := Checksum(data), Checksum(written)
	if want != got {
		return nil, &BackupError{Path: dest, Err: fmt.Errorf("checksum mismatch: %s != %s", got, want)}
	}

	return &Backup{Path: dest, Checksum: got, CreatedAt: now}, nil
}

// commit atomically replaces dest with data: same-directory temp file,
// rename, then best-effort fsync of the parent directory. No external
// observer ever sees a partial file.
func commit(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".winnow-*")
	if err != nil {
		return &CommitError{Path: dest, Err: err}
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return &CommitError{Path: dest, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return &CommitError{Path: dest, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &CommitError{Path: dest, Err: err}
	}

	if fi, err := os.Stat(dest); err == nil {
		_ = os.Chmod(tmpPath, fi.Mode())
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		cleanup()
		return &CommitError{Path: dest, Err: err}
	}
	syncDir(dir)
	return nil
}

// syncDir best-effort fsyncs a directory to persist the rename.
func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	defer f.Close()
	_ = f.Sync()
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
