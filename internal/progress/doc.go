// Package progress carries run telemetry for the fetch and classify commands.
// Pipelines emit Events into a Hub, which batches them on a background
// goroutine and fans them out to sinks (structured logs, Prometheus). Emitting
// never blocks the pipeline.
package progress
