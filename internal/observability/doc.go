// Package observability provides observability infrastructure for the
// feedctl daemon: structured logging and Prometheus metrics.
//
// This package centralizes observability concerns to enable:
//   - Structured logging, with helpers that carry an operation id in a
//     context and tag log lines with it
//   - Prometheus metrics for feed crawl activity, queue depth, and
//     database performance
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//
// Example usage:
//
//	import (
//	    "feedcore/internal/observability/logging"
//	    "feedcore/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("daemon started")
//
//	    metrics.RecordFeedCrawl("node-1", time.Second, 4, 1, 0)
//	}
package observability
