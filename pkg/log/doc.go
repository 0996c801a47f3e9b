// Package log provides structured protocol capture for monitor connections.
//
// This package defines the Logger interface and Event types for recording
// every frame, event and state change on a monitor connection. It is separate
// from operational logging (slog): protocol capture is a complete,
// machine-readable trace for debugging a session after the fact.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to a CBOR file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/simtap/monitor.tlog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(console, file)
//
// # Event Types
//
// Events are captured at three layers:
//   - Transport: raw Engine.IO frames (FrameEvent)
//   - Event: decoded Socket.IO events with their JSON arguments (MessageEvent)
//   - Monitor: connection and subscription state changes (StateChangeEvent)
//
// Control packets (open/ping/pong/close) and errors have dedicated types.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys, using the
// .tlog extension. "simtap log view" and "simtap log stats" read them.
package log
