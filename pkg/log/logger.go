package log

// Logger receives protocol log events.
// Pass nil or NoopLogger to disable protocol capture.
type Logger interface {
	// Log records a protocol event. Implementations must be thread-safe.
	// Log is called on the connection's read path, so it must not block for long.
	Log(event Event)
}

// NoopLogger discards all events.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// OrNoop returns l, or NoopLogger if l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
