package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Level != "medium" {
		t.Errorf("Level = %q, want medium", cfg.Level)
	}
	if cfg.LedgerPath == "" {
		t.Error("LedgerPath empty")
	}
	if cfg.LedgerPath[0] == '~' {
		t.Errorf("LedgerPath not expanded: %q", cfg.LedgerPath)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WINNOW_LEVEL", "aggressive")
	t.Setenv("WINNOW_BACKUP_DIR", "/var/backups/winnow")
	t.Setenv("WINNOW_LEDGER", "/var/lib/winnow/ledger.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Level != "aggressive" {
		t.Errorf("Level = %q", cfg.Level)
	}
	if cfg.BackupDir != "/var/backups/winnow" {
		t.Errorf("BackupDir = %q", cfg.BackupDir)
	}
	if cfg.LedgerPath != "/var/lib/winnow/ledger.db" {
		t.Errorf("LedgerPath = %q", cfg.LedgerPath)
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"light", "medium", "aggressive"} {
		lvl, err := ParseLevel(s)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", s, err)
		}
		if string(lvl) != s {
			t.Errorf("ParseLevel(%q) = %q", s, lvl)
		}
	}
	for _, s := range []string{"", "extreme", "Medium", "LIGHT"} {
		if _, err := ParseLevel(s); err == nil {
			t.Errorf("ParseLevel(%q): expected error", s)
		}
	}
}

func TestThresholdFallback(t *testing.T) {
	r := DefaultRules()
	if got := r.Threshold(LevelLight); got != 20 {
		t.Errorf("light = %d", got)
	}
	if got := r.Threshold(LevelMedium); got != 40 {
		t.Errorf("medium = %d", got)
	}
	if got := r.Threshold(LevelAggressive); got != 60 {
		t.Errorf("aggressive = %d", got)
	}
	if got := r.Threshold(Level("bogus")); got != 40 {
		t.Errorf("fallback = %d, want medium threshold", got)
	}
}

func TestDefaultRulesOrdering(t *testing.T) {
	r := DefaultRules()
	if !(r.Thresholds[LevelLight] < r.Thresholds[LevelMedium] && r.Thresholds[LevelMedium] < r.Thresholds[LevelAggressive]) {
		t.Errorf("thresholds not increasing: %v", r.Thresholds)
	}
	if r.HighScoreCeiling <= r.Thresholds[LevelAggressive] {
		t.Errorf("ceiling %d must exceed the aggressive threshold %d", r.HighScoreCeiling, r.Thresholds[LevelAggressive])
	}
	if r.ReductionWarnLow >= r.ReductionWarnHigh {
		t.Errorf("reduction band inverted: %v..%v", r.ReductionWarnLow, r.ReductionWarnHigh)
	}
}
