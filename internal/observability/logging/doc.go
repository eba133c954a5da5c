// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the application.
//
// Key features:
//   - JSON and text output formats
//   - Operation ID propagation (correlating one subscription's fetch,
//     parse, and merge steps across log lines)
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "feedcore/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("daemon started", slog.String("version", "1.0"))
//	}
//
//	func crawlSubscription(ctx context.Context) {
//	    ctx = logging.WithOperationContext(ctx, nodeID)
//	    logger := logging.WithOperationID(logging.FromContext(ctx), logging.OperationIDFromContext(ctx))
//	    logger.Info("fetching subscription")
//	}
package logging
