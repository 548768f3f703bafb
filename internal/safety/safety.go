package safety

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/winnow/internal/config"
	"github.com/MikeSquared-Agency/winnow/internal/graph"
	"github.com/MikeSquared-Agency/winnow/internal/prune"
	"github.com/MikeSquared-Agency/winnow/internal/transcript"
	"github.com/MikeSquared-Agency/winnow/internal/validate"
)

// State is the safety manager's position in the backup → process → validate →
// commit lifecycle for one file.
type State int

const (
	StateIdle State = iota
	StateBackupCreated
	StateProcessing
	StateValidated
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBackupCreated:
		return "backup-created"
	case StateProcessing:
		return "processing"
	case StateValidated:
		return "validated"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// Options control a single prune invocation.
type Options struct {
	// DryRun computes the full result, including validation, without
	// creating a backup or touching the original file.
	DryRun bool
	// Backup enables the pre-mutation backup copy. Ignored under DryRun.
	Backup bool
	// BackupDir overrides where the backup lands; empty means alongside the
	// original.
	BackupDir string
}

// PruneResult is the caller-owned summary of one invocation. It is always
// populated, on failure paths included, and never mutated after Prune
// returns.
type PruneResult struct {
	RunID  string       `json:"run_id"`
	Path   string       `json:"path"`
	Level  config.Level `json:"level"`
	DryRun bool         `json:"dry_run"`

	Success bool   `json:"success"`
	State   string `json:"state"`
	Err     string `json:"error,omitempty"`

	OriginalRecords int `json:"original_records"`
	RetainedRecords int `json:"retained_records"`
	ElidedRecords   int `json:"elided_records"`
	OriginalBytes   int `json:"original_bytes"`
	PrunedBytes     int `json:"pruned_bytes"`

	Orphans int `json:"orphans"`
	Cycles  int `json:"cycles"`

	BackupPath     string `json:"backup_path,omitempty"`
	SourceChecksum string `json:"source_checksum,omitempty"`
	PrunedChecksum string `json:"pruned_checksum,omitempty"`

	Load       *transcript.LoadReport `json:"load,omitempty"`
	Validation *validate.Report       `json:"validation,omitempty"`
}

// Manager brackets the pruning pipeline with backup and atomic commit. The
// original file is opened read-only until the final rename; every failure
// path leaves it byte-identical.
type Manager struct {
	rules  config.Rules
	loader *transcript.Loader
	orch   *prune.Orchestrator
	valid  *validate.Validator
	logger *slog.Logger
}

func NewManager(rules config.Rules, logger *slog.Logger) (*Manager, error) {
	orch, err := prune.New(rules, logger)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	valid, err := validate.New(rules)
	if err != nil {
		return nil, fmt.Errorf("validator: %w", err)
	}
	return &Manager{
		rules:  rules,
		loader: transcript.NewLoader(rules),
		orch:   orch,
		valid:  valid,
		logger: logger,
	}, nil
}

// Prune runs the full pipeline on one transcript file. The returned result is
// populated on every path; the error carries the taxonomy type
// (transcript.LoadError, graph.Error, validate.Failure, BackupError,
// CommitError) for callers that want to distinguish.
func (m *Manager) Prune(ctx context.Context, path string, level config.Level, opts Options) (*PruneResult, error) {
	res := &PruneResult{
		RunID:  uuid.NewString(),
		Path:   path,
		Level:  level,
		DryRun: opts.DryRun,
		State:  StateIdle.String(),
	}

	original, err := os.ReadFile(path)
	if err != nil {
		return fail(res, StateIdle, fmt.Errorf("read input: %w", err))
	}
	res.OriginalBytes = len(original)
	res.SourceChecksum = Checksum(original)

	// Backup before any other transition. A backup failure aborts with the
	// original untouched; there is nothing to roll back yet.
	if opts.Backup && !opts.DryRun {
		backup, err := m.createBackup(path, original, opts.BackupDir, res.RunID)
		if err != nil {
			return fail(res, StateIdle, err)
		}
		res.BackupPath = backup.Path
		res.State = StateBackupCreated.String()
		m.logger.Debug("backup created", "path", backup.Path, "checksum", backup.Checksum)
	}

	if err := ctx.Err(); err != nil {
		return fail(res, StateRolledBack, fmt.Errorf("canceled before processing: %w", err))
	}

	// Processing: everything below runs against in-memory buffers only; the
	// original is never opened for writing until commit.
	records, loadReport, err := m.loader.Load(bytes.NewReader(original))
	res.Load = loadReport
	if err != nil {
		return fail(res, StateRolledBack, err)
	}
	res.OriginalRecords = len(records)

	g, err := graph.Build(records)
	if err != nil {
		return fail(res, StateRolledBack, err)
	}
	res.Orphans = len(g.Orphans)
	res.Cycles = len(g.Cycles)

	outcome, err := m.orch.Run(records, g, level)
	if err != nil {
		return fail(res, StateRolledBack, fmt.Errorf("prune: %w", err))
	}
	res.RetainedRecords = outcome.Retained
	res.ElidedRecords = outcome.Elided

	var scratch bytes.Buffer
	if err := transcript.Write(&scratch, outcome.Records); err != nil {
		return fail(res, StateRolledBack, fmt.Errorf("serialize: %w", err))
	}
	outcome.Stage = prune.StageSerialized
	res.PrunedBytes = scratch.Len()
	res.PrunedChecksum = Checksum(scratch.Bytes())

	if err := ctx.Err(); err != nil {
		return fail(res, StateRolledBack, fmt.Errorf("canceled before validation: %w", err))
	}

	report, err := m.valid.Validate(records, scratch.Bytes(), len(original))
	res.Validation = report
	if err != nil {
		return fail(res, StateRolledBack, err)
	}

	if opts.DryRun {
		res.State = StateValidated.String()
		res.Success = true
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return fail(res, StateRolledBack, fmt.Errorf("canceled before commit: %w", err))
	}

	if err := commit(path, scratch.Bytes()); err != nil {
		return fail(res, StateRolledBack, err)
	}

	res.State = StateCommitted.String()
	res.Success = true
	m.logger.Info("pruned",
		"path", path,
		"level", string(level),
		"records", res.OriginalRecords,
		"retained", res.RetainedRecords,
		"bytes_before", res.OriginalBytes,
		"bytes_after", res.PrunedBytes,
	)
	return res, nil
}

func fail(res *PruneResult, state State, err error) (*PruneResult, error) {
	res.State = state.String()
	res.Success = false
	res.Err = err.Error()
	return res, err
}
