package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"feedcore/internal/infra/worker"
	"feedcore/internal/persist/layout"
	"feedcore/internal/persist/opml"
	"feedcore/internal/tree"
)

// startBackupCron drives the periodic OPML backup job on cfg.BackupSchedule
// using cron.New(cron.WithLocation(loc)) + AddFunc + Start.
func startBackupCron(logger *slog.Logger, t *tree.Tree, dirs layout.Dirs, cfg *worker.DaemonConfig, metrics *worker.WorkerMetrics) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid backup timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.BackupSchedule, func() {
		runBackupJob(logger, t, dirs, metrics)
	})
	if err != nil {
		logger.Error("failed to schedule backup job", slog.Any("error", err))
		return
	}
	c.Start()
	logger.Info("backup cron started", slog.String("schedule", cfg.BackupSchedule), slog.String("timezone", cfg.Timezone))
}

func runBackupJob(logger *slog.Logger, t *tree.Tree, dirs layout.Dirs, metrics *worker.WorkerMetrics) {
	start := time.Now()
	metrics.RecordJobRun("started")

	backupDir := filepath.Join(dirs.Data, "backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		logger.Error("backup job failed", slog.Any("error", err))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(start).Seconds())
		return
	}

	name := fmt.Sprintf("feedlist-%s.opml", start.UTC().Format("20060102T150405Z"))
	path := filepath.Join(backupDir, name)

	f, err := os.Create(path)
	if err != nil {
		logger.Error("backup job failed", slog.Any("error", err))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(start).Seconds())
		return
	}
	defer func() { _ = f.Close() }()

	if err := opml.Save(t, f, true); err != nil {
		logger.Error("backup job failed", slog.Any("error", err))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(start).Seconds())
		return
	}

	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(start).Seconds())
	metrics.RecordLastSuccess()
	logger.Info("backup job completed", slog.String("path", path))
}
