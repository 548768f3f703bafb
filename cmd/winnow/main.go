package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/winnow/internal/config"
	"github.com/MikeSquared-Agency/winnow/internal/ledger"
	"github.com/MikeSquared-Agency/winnow/internal/safety"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	level := flag.String("level", cfg.Level, "pruning level: light, medium or aggressive")
	dryRun := flag.Bool("dry-run", false, "compute the full result without committing")
	noBackup := flag.Bool("no-backup", false, "skip the pre-mutation backup copy")
	backupDir := flag.String("backup-dir", cfg.BackupDir, "directory for backup copies (default: alongside the original)")
	dir := flag.String("dir", "", "prune every *.jsonl under this directory")
	ledgerPath := flag.String("ledger", cfg.LedgerPath, "prune history ledger path (empty disables)")
	flag.Parse()

	setupLogging(cfg.LogLevel)

	lvl, err := config.ParseLevel(*level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	files := flag.Args()
	if *dir != "" {
		found, err := discover(*dir)
		if err != nil {
			slog.Error("scan directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: winnow [flags] <transcript.jsonl>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	mgr, err := safety.NewManager(config.DefaultRules(), slog.Default())
	if err != nil {
		slog.Error("init", "error", err)
		os.Exit(1)
	}

	var led *ledger.Ledger
	if *ledgerPath != "" {
		led, err = ledger.Open(*ledgerPath)
		if err != nil {
			slog.Warn("ledger unavailable, continuing without history", "path", *ledgerPath, "error", err)
		} else {
			defer led.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := safety.Options{
		DryRun:    *dryRun,
		Backup:    !*noBackup,
		BackupDir: *backupDir,
	}

	failed := 0
	for _, path := range files {
		if led != nil && skipUnchanged(led, path, string(lvl)) {
			fmt.Printf("%s: unchanged since last prune, skipped\n", path)
			continue
		}

		res, err := mgr.Prune(ctx, path, lvl, opts)
		if led != nil {
			if lerr := led.RecordRun(res); lerr != nil {
				slog.Warn("ledger write failed", "path", path, "error", lerr)
			}
		}
		if err != nil {
			slog.Error("prune failed", "path", path, "state", res.State, "error", err)
			failed++
			continue
		}

		mode := string(lvl)
		if res.DryRun {
			mode += ", dry-run"
		}
		fmt.Printf("%s: %d → %d records, %d → %d bytes (%s)\n",
			path, res.OriginalRecords, res.RetainedRecords+res.ElidedRecords,
			res.OriginalBytes, res.PrunedBytes, mode)
		for _, w := range res.Validation.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// discover lists *.jsonl files under dir, sorted by path. Files are processed
// sequentially; parallel scheduling is out of scope here.
func discover(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".jsonl" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func skipUnchanged(led *ledger.Ledger, path, level string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false // let Prune surface the real error
	}
	ok, err := led.AlreadyPruned(path, safety.Checksum(data), level)
	return err == nil && ok
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
