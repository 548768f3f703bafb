package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v6"
)

// Level is a pruning aggressiveness setting.
type Level string

const (
	LevelLight      Level = "light"
	LevelMedium     Level = "medium"
	LevelAggressive Level = "aggressive"
)

// ParseLevel validates a level string from flags or env.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelLight, LevelMedium, LevelAggressive:
		return Level(s), nil
	}
	return "", fmt.Errorf("unknown pruning level %q (want light, medium or aggressive)", s)
}

// Config is the process-level configuration, loaded from the environment.
type Config struct {
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	Level      string `env:"WINNOW_LEVEL" envDefault:"medium"`
	BackupDir  string `env:"WINNOW_BACKUP_DIR"`
	LedgerPath string `env:"WINNOW_LEDGER" envDefault:"~/.winnow/ledger.db"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LedgerPath = expandHome(cfg.LedgerPath)
	return cfg, nil
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Weights are the scoring increments for each content pattern.
type Weights struct {
	CodeModification int
	ErrorWithFix     int
	Architecture     int
	UserQuestion     int
	FileReference    int
	DebugTrace       int
	HookBoilerplate  int
	Confirmation     int
	EmptyContent     int
}

// Rules bundles every tunable used by the scorer, compressor, orchestrator
// and validator. Components receive it at construction; nothing reads
// globals. The defaults are heuristic starting points, not calibrated values.
type Rules struct {
	Weights    Weights
	Thresholds map[Level]int

	// HighScoreCeiling marks records whose loss always fails validation.
	HighScoreCeiling int

	// Compression windows: bodies over CompressMinBytes keep the first
	// HeadLines and last TailLines verbatim.
	CompressMinBytes int
	HeadLines        int
	TailLines        int

	// RedactPatterns are removed outright wherever they match a whole line.
	RedactPatterns []string

	// MinParseRatio is the fraction of non-empty lines that must parse
	// before the whole load is rejected.
	MinParseRatio float64

	// ReferenceMinTokenLen is the shortest identifier considered by the
	// reference-preservation pass.
	ReferenceMinTokenLen int

	// Reduction band for the validator's non-fatal sanity warning.
	ReductionWarnLow  float64
	ReductionWarnHigh float64
}

// DefaultRules returns the built-in rule table.
func DefaultRules() Rules {
	return Rules{
		Weights: Weights{
			CodeModification: 40,
			ErrorWithFix:     35,
			Architecture:     30,
			UserQuestion:     20,
			FileReference:    25,
			DebugTrace:       15,
			HookBoilerplate:  -30,
			Confirmation:     -25,
			EmptyContent:     -20,
		},
		Thresholds: map[Level]int{
			LevelLight:      20,
			LevelMedium:     40,
			LevelAggressive: 60,
		},
		HighScoreCeiling: 80,
		CompressMinBytes: 2048,
		HeadLines:        10,
		TailLines:        5,
		RedactPatterns: []string{
			`(?i)^\s*\[?hook\]? (completed|executed|finished).*$`,
			`(?i)^\s*automation (complete|finished).*$`,
			`(?i)^\s*stop hook feedback:.*$`,
		},
		MinParseRatio:        0.5,
		ReferenceMinTokenLen: 4,
		ReductionWarnLow:     0.05,
		ReductionWarnHigh:    0.95,
	}
}

// Threshold returns the retention threshold for a level, falling back to
// medium when the level has no entry.
func (r Rules) Threshold(level Level) int {
	if t, ok := r.Thresholds[level]; ok {
		return t
	}
	return r.Thresholds[LevelMedium]
}
