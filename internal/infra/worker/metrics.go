package worker

import (
	"feedcore/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the feedctl daemon process.
// It embeds the standard ConfigMetrics for configuration monitoring and adds
// metrics for the periodic OPML backup job driven by the daemon's cron
// schedule.
type WorkerMetrics struct {
	*config.ConfigMetrics

	// BackupJobRunsTotal counts backup job runs by status (success/failure).
	BackupJobRunsTotal *prometheus.CounterVec

	// BackupJobDurationSeconds measures the duration of a backup job run.
	BackupJobDurationSeconds prometheus.Histogram

	// BackupJobLastSuccessTimestamp records the Unix timestamp of the last
	// successful backup.
	BackupJobLastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates a new WorkerMetrics instance with all metrics
// initialized. Metrics are registered via promauto at creation time.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("feedctl"),

		BackupJobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "feedctl_backup_job_runs_total",
			Help: "Total number of OPML backup job runs by status (success/failure)",
		}, []string{"status"}),

		BackupJobDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedctl_backup_job_duration_seconds",
			Help:    "Duration of OPML backup job execution in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		BackupJobLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "feedctl_backup_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful OPML backup",
		}),
	}
}

// MustRegister is a no-op kept for API compatibility with the initialization
// pattern used across this package; metrics are auto-registered via promauto.
func (m *WorkerMetrics) MustRegister() {}

// RecordJobRun increments the backup job run counter for the given status.
func (m *WorkerMetrics) RecordJobRun(status string) {
	m.BackupJobRunsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes the duration of a backup job execution.
func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.BackupJobDurationSeconds.Observe(seconds)
}

// RecordLastSuccess records the current time as the last successful backup.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.BackupJobLastSuccessTimestamp.SetToCurrentTime()
}
