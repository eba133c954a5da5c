package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWorkerMetrics(t *testing.T) {
	metrics := globalTestMetrics

	if metrics == nil {
		t.Fatal("NewWorkerMetrics returned nil")
	}

	if metrics.ConfigMetrics == nil {
		t.Error("ConfigMetrics is nil")
	}

	if metrics.BackupJobRunsTotal == nil {
		t.Error("BackupJobRunsTotal is nil")
	}

	if metrics.BackupJobDurationSeconds == nil {
		t.Error("BackupJobDurationSeconds is nil")
	}

	if metrics.BackupJobLastSuccessTimestamp == nil {
		t.Error("BackupJobLastSuccessTimestamp is nil")
	}

	metrics.MustRegister()
}

func TestWorkerMetrics_RecordJobRun(t *testing.T) {
	reg := prometheus.NewRegistry()

	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_feedctl_backup_job_runs_total",
		Help: "Test counter",
	}, []string{"status"})
	reg.MustRegister(counter)

	metrics := &WorkerMetrics{
		BackupJobRunsTotal: counter,
	}

	metrics.RecordJobRun("success")
	metrics.RecordJobRun("success")
	metrics.RecordJobRun("failure")

	successCount := testutil.ToFloat64(metrics.BackupJobRunsTotal.WithLabelValues("success"))
	if successCount != 2 {
		t.Errorf("Expected success count 2, got %f", successCount)
	}

	failureCount := testutil.ToFloat64(metrics.BackupJobRunsTotal.WithLabelValues("failure"))
	if failureCount != 1 {
		t.Errorf("Expected failure count 1, got %f", failureCount)
	}
}

func TestWorkerMetrics_RecordJobDuration(t *testing.T) {
	reg := prometheus.NewRegistry()

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_feedctl_backup_job_duration_seconds",
		Help:    "Test histogram",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})
	reg.MustRegister(histogram)

	metrics := &WorkerMetrics{
		BackupJobDurationSeconds: histogram,
	}

	metrics.RecordJobDuration(0.05)
	metrics.RecordJobDuration(0.2)
	metrics.RecordJobDuration(1.5)

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "test_feedctl_backup_job_duration_seconds" {
			found = true
			if mf.GetType() != 4 { // 4 = HISTOGRAM
				t.Errorf("Expected histogram type, got %v", mf.GetType())
			}
			if len(mf.GetMetric()) == 0 {
				t.Error("Expected metrics to be recorded")
			}
			if mf.GetMetric()[0].GetHistogram().GetSampleCount() != 3 {
				t.Errorf("Expected 3 observations, got %d", mf.GetMetric()[0].GetHistogram().GetSampleCount())
			}
		}
	}

	if !found {
		t.Error("Histogram metric not found in registry")
	}
}

func TestWorkerMetrics_RecordLastSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_feedctl_backup_job_last_success_timestamp",
		Help: "Test gauge",
	})
	reg.MustRegister(gauge)

	metrics := &WorkerMetrics{
		BackupJobLastSuccessTimestamp: gauge,
	}

	initialValue := testutil.ToFloat64(metrics.BackupJobLastSuccessTimestamp)
	if initialValue != 0 {
		t.Errorf("Expected initial value 0, got %f", initialValue)
	}

	metrics.RecordLastSuccess()

	afterValue := testutil.ToFloat64(metrics.BackupJobLastSuccessTimestamp)
	if afterValue <= 0 {
		t.Errorf("Expected positive timestamp, got %f", afterValue)
	}
}

func TestWorkerMetrics_MultipleJobRuns(t *testing.T) {
	reg := prometheus.NewRegistry()

	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_feedctl_backup_job_runs_multiple",
		Help: "Test counter",
	}, []string{"status"})
	reg.MustRegister(counter)

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_feedctl_backup_job_duration_multiple",
		Help:    "Test histogram",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})
	reg.MustRegister(histogram)

	lastSuccessGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_feedctl_backup_job_last_success_multiple",
		Help: "Test gauge",
	})
	reg.MustRegister(lastSuccessGauge)

	metrics := &WorkerMetrics{
		BackupJobRunsTotal:            counter,
		BackupJobDurationSeconds:      histogram,
		BackupJobLastSuccessTimestamp: lastSuccessGauge,
	}

	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(0.3)
	metrics.RecordLastSuccess()

	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(0.2)
	metrics.RecordLastSuccess()

	metrics.RecordJobRun("failure")
	metrics.RecordJobDuration(0.05)

	successCount := testutil.ToFloat64(metrics.BackupJobRunsTotal.WithLabelValues("success"))
	if successCount != 2 {
		t.Errorf("Expected 2 successful runs, got %f", successCount)
	}

	failureCount := testutil.ToFloat64(metrics.BackupJobRunsTotal.WithLabelValues("failure"))
	if failureCount != 1 {
		t.Errorf("Expected 1 failed run, got %f", failureCount)
	}

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() == "test_feedctl_backup_job_duration_multiple" {
			if mf.GetMetric()[0].GetHistogram().GetSampleCount() != 3 {
				t.Errorf("Expected 3 duration observations, got %d", mf.GetMetric()[0].GetHistogram().GetSampleCount())
			}
		}
	}

	lastSuccess := testutil.ToFloat64(metrics.BackupJobLastSuccessTimestamp)
	if lastSuccess <= 0 {
		t.Errorf("Expected positive last success timestamp, got %f", lastSuccess)
	}
}
