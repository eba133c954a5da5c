// Package tracing exposes the process-wide OpenTelemetry tracer the
// control loop spans its fetch/parse/merge cycle with. No exporter is
// configured by default, so spans are recorded against the global
// no-op provider unless a caller (e.g. a future diagnostics build)
// installs a real one via otel.SetTracerProvider.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("feedcore")

// Tracer returns the shared tracer for creating spans.
//
//	ctx, span := tracing.Tracer().Start(ctx, "operation-name")
//	defer span.End()
func Tracer() trace.Tracer {
	return tracer
}
