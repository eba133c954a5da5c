// Package worker hosts the process-level knobs and background machinery
// cmd/feedctl needs around the control loop: daemon configuration, health
// probes, and worker-pool metrics for a continuous tick-based daemon.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"feedcore/internal/pkg/config"
)

// DaemonConfig holds the process-global configuration for cmd/feedctl. It
// extends the scheduler's own Config with knobs the daemon's ambient
// concerns need: a periodic OPML backup schedule, worker pool sizing, and
// the local health-probe port.
type DaemonConfig struct {
	// TickInterval is how often the scheduler re-scans the tree for due
	// subscriptions.
	TickInterval time.Duration

	// DefaultUpdateIntervalMinutes backs subscriptions with no interval
	// of their own.
	DefaultUpdateIntervalMinutes int

	// BackoffCeilingMinutes caps exponential backoff after repeated
	// fetch failures.
	BackoffCeilingMinutes int

	// FaviconRefreshInterval is how often a feed's favicon is eligible
	// for a re-poll.
	FaviconRefreshInterval time.Duration

	// EnqueueRatePerSecond bounds how fast due subscriptions are handed
	// to the fetch queue.
	EnqueueRatePerSecond float64

	// NotifyRatePerSecond bounds how fast the notify hub delivers
	// egress events to sinks.
	NotifyRatePerSecond float64

	// Workers is the size of the I/O worker pool draining the fetch
	// queue.
	Workers int

	// BackupSchedule is a cron expression controlling how often
	// feedlist.opml is snapshotted to a timestamped backup file.
	BackupSchedule string

	// Timezone is the IANA timezone name the backup cron runs in.
	Timezone string

	// HealthPort is the local liveness/readiness probe port.
	HealthPort int
}

// DefaultDaemonConfig returns production-ready defaults.
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		TickInterval:                 10 * time.Second,
		DefaultUpdateIntervalMinutes: 60,
		BackoffCeilingMinutes:        240,
		FaviconRefreshInterval:       7 * 24 * time.Hour,
		EnqueueRatePerSecond:         5,
		NotifyRatePerSecond:          1,
		Workers:                      4,
		BackupSchedule:               "0 3 * * *",
		Timezone:                     "UTC",
		HealthPort:                   9091,
	}
}

// Validate checks every field, aggregating all failures into one error.
func (c *DaemonConfig) Validate() error {
	var errs []error

	if err := config.ValidatePositiveDuration(c.TickInterval); err != nil {
		errs = append(errs, fmt.Errorf("tick interval: %w", err))
	}
	if err := config.ValidateIntRange(c.DefaultUpdateIntervalMinutes, 1, 10080); err != nil {
		errs = append(errs, fmt.Errorf("default update interval minutes: %w", err))
	}
	if err := config.ValidateIntRange(c.BackoffCeilingMinutes, 1, 10080); err != nil {
		errs = append(errs, fmt.Errorf("backoff ceiling minutes: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.FaviconRefreshInterval); err != nil {
		errs = append(errs, fmt.Errorf("favicon refresh interval: %w", err))
	}
	if c.EnqueueRatePerSecond <= 0 {
		errs = append(errs, fmt.Errorf("enqueue rate per second must be positive, got %v", c.EnqueueRatePerSecond))
	}
	if c.NotifyRatePerSecond <= 0 {
		errs = append(errs, fmt.Errorf("notify rate per second must be positive, got %v", c.NotifyRatePerSecond))
	}
	if err := config.ValidateIntRange(c.Workers, 1, 64); err != nil {
		errs = append(errs, fmt.Errorf("workers: %w", err))
	}
	if err := config.ValidateCronSchedule(c.BackupSchedule); err != nil {
		errs = append(errs, fmt.Errorf("backup schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadDaemonConfigFromEnv loads the daemon configuration from environment
// variables with per-field validation and fail-open fallback to defaults,
// recording every fallback via metrics and a structured warning.
func LoadDaemonConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*DaemonConfig, error) {
	cfg := DefaultDaemonConfig()
	fallbackApplied := false

	apply := func(field string, result config.ConfigLoadResult) {
		if !result.FallbackApplied {
			return
		}
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		for _, warning := range result.Warnings {
			logger.Warn("configuration fallback applied", slog.String("field", field), slog.String("warning", warning))
		}
	}

	r := config.LoadEnvDuration("FEEDCTL_TICK_INTERVAL", cfg.TickInterval, config.ValidatePositiveDuration)
	cfg.TickInterval = r.Value.(time.Duration)
	apply("tick_interval", r)

	r = config.LoadEnvInt("FEEDCTL_DEFAULT_UPDATE_INTERVAL_MINUTES", cfg.DefaultUpdateIntervalMinutes, func(v int) error {
		return config.ValidateIntRange(v, 1, 10080)
	})
	cfg.DefaultUpdateIntervalMinutes = r.Value.(int)
	apply("default_update_interval_minutes", r)

	r = config.LoadEnvInt("FEEDCTL_BACKOFF_CEILING_MINUTES", cfg.BackoffCeilingMinutes, func(v int) error {
		return config.ValidateIntRange(v, 1, 10080)
	})
	cfg.BackoffCeilingMinutes = r.Value.(int)
	apply("backoff_ceiling_minutes", r)

	r = config.LoadEnvDuration("FEEDCTL_FAVICON_REFRESH_INTERVAL", cfg.FaviconRefreshInterval, config.ValidatePositiveDuration)
	cfg.FaviconRefreshInterval = r.Value.(time.Duration)
	apply("favicon_refresh_interval", r)

	r = config.LoadEnvFloat("FEEDCTL_ENQUEUE_RATE_PER_SECOND", cfg.EnqueueRatePerSecond, func(v float64) error {
		if v <= 0 {
			return fmt.Errorf("must be positive, got %v", v)
		}
		return nil
	})
	cfg.EnqueueRatePerSecond = r.Value.(float64)
	apply("enqueue_rate_per_second", r)

	r = config.LoadEnvFloat("FEEDCTL_NOTIFY_RATE_PER_SECOND", cfg.NotifyRatePerSecond, func(v float64) error {
		if v <= 0 {
			return fmt.Errorf("must be positive, got %v", v)
		}
		return nil
	})
	cfg.NotifyRatePerSecond = r.Value.(float64)
	apply("notify_rate_per_second", r)

	r = config.LoadEnvInt("FEEDCTL_WORKERS", cfg.Workers, func(v int) error {
		return config.ValidateIntRange(v, 1, 64)
	})
	cfg.Workers = r.Value.(int)
	apply("workers", r)

	r = config.LoadEnvWithFallback("FEEDCTL_BACKUP_SCHEDULE", cfg.BackupSchedule, config.ValidateCronSchedule)
	cfg.BackupSchedule = r.Value.(string)
	apply("backup_schedule", r)

	r = config.LoadEnvWithFallback("FEEDCTL_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = r.Value.(string)
	apply("timezone", r)

	r = config.LoadEnvInt("FEEDCTL_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = r.Value.(int)
	apply("health_port", r)

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
