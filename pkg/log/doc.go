// Package log captures protocol events of a mesh node.
//
// Protocol capture is separate from operational logging (slog): it records
// a complete, machine-readable trace of pairing decisions, table mutations
// and Observe traffic for later analysis.
//
// # Basic Usage
//
//	// Development: print events through slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// Field devices: append to a binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/lib/meshpair/node.mlog")
//
//	// Both
//	cfg.EventLogger = log.NewMultiLogger(console, file)
//
// # Event Types
//
//   - MessageEvent: an envelope sent or received by the transport
//   - TableEvent: a mutation of the directory, registry or observation table
//   - QueueEvent: a pairing candidate queued, dropped, approved or rejected
//   - ErrorEventData: an error at any layer
//
// Every event carries the node's session ID, a UUID drawn once per boot, so
// traces from several restarts can be told apart in one file.
//
// # File Format
//
// Files are a concatenation of CBOR-encoded events with integer keys,
// conventionally named *.mlog. Reader streams them back with optional
// filtering.
package log
