// Package telemetry wires OpenTelemetry tracing and metrics for observerd.
//
// Spans cover one event through the reduction pipeline (stream.process) and
// each reducer step inside it (stream.reduce). Metrics go out over OTLP next
// to the Prometheus registry served on /metrics.
//
//	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
// A disabled or failed exporter never stops the server. New returns a
// degraded instance whose Tracer and Meter fall back to the global no-op
// providers.
//
// Tests use NewTestTelemetry, which records spans in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	tt.AssertSpanExists(t, "stream.process")
package telemetry
