// Package trace records runtime scheduling events: thread state
// transitions, message-queue traffic, timer fires and event dispatches.
//
// Tracing is off by default. When enabled, the kernel emits events through
// a Tracer; storage is either a bounded in-memory ring (crash forensics),
// an immediate stream to a writer (offline analysis), or both. Events can
// be rendered as human-readable text, NDJSON, or binary msgpack.
package trace
